package card

import (
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/joao-fontenele/glassworks-checkout/internal/domain"
)

var ErrInvalidSignature = errors.New("invalid stripe signature")

// VerifyEvent checks the Stripe-Signature header over the raw payload and normalizes the
// event. Events that carry no object id are rejected.
func VerifyEvent(payload []byte, signatureHeader, secret string) (domain.PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return domain.PaymentEvent{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var ref string
	if event.Data != nil {
		ref, _ = event.Data.Object["id"].(string)
	}
	if ref == "" {
		return domain.PaymentEvent{}, errors.New("stripe event has no object id")
	}

	return domain.PaymentEvent{
		EventID:    event.ID,
		Rail:       domain.RailCard,
		Type:       string(event.Type),
		Reference:  ref,
		ReceivedAt: time.Now().UTC(),
	}, nil
}
