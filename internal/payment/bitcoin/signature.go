package bitcoin

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/joao-fontenele/glassworks-checkout/internal/domain"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Zaprite-Signature"

var ErrInvalidSignature = errors.New("invalid zaprite signature")

func VerifyWebhookSignature(payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil))
}

type webhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ParseWebhook verifies and normalizes a Zaprite webhook delivery.
func ParseWebhook(payload []byte, signature, secret string) (domain.PaymentEvent, error) {
	if !VerifyWebhookSignature(payload, signature, secret) {
		return domain.PaymentEvent{}, ErrInvalidSignature
	}

	var ev webhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return domain.PaymentEvent{}, err
	}
	if ev.Type == "" || ev.Data.ID == "" {
		return domain.PaymentEvent{}, errors.New("zaprite event missing type or invoice id")
	}

	eventID := ev.ID
	if eventID == "" {
		eventID = ev.Type + ":" + ev.Data.ID
	}

	return domain.PaymentEvent{
		EventID:    eventID,
		Rail:       domain.RailBitcoin,
		Type:       ev.Type,
		Reference:  ev.Data.ID,
		ReceivedAt: time.Now().UTC(),
	}, nil
}
