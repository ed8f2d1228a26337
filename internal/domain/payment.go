package domain

import (
	"time"
)

type Rail string

const (
	RailCard    Rail = "card"
	RailBitcoin Rail = "bitcoin"
)

type IntentStatus string

const (
	IntentStatusRequiresPayment IntentStatus = "requires_payment"
	IntentStatusSucceeded       IntentStatus = "succeeded"
	IntentStatusFailed          IntentStatus = "failed"
)

type CardIntent struct {
	ProviderIntentID       string            `json:"id"`
	ClientSecret           string            `json:"clientSecret"`
	Status                 IntentStatus      `json:"status"`
	ChargeAmountMinorUnits int64             `json:"amount"`
	Metadata               map[string]string `json:"-"`
}

type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusExpired   InvoiceStatus = "expired"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusExpired || s == InvoiceStatusCancelled
}

type BitcoinInvoice struct {
	InvoiceID        string            `json:"id"`
	Status           InvoiceStatus     `json:"status"`
	AmountMinorUnits int64             `json:"amount"`
	BTCAmount        string            `json:"btcAmount"`
	LightningPayload string            `json:"lightningInvoice"`
	OnchainAddress   string            `json:"onchainAddress"`
	ExpiresAt        time.Time         `json:"expiresAt"`
	PaymentURL       string            `json:"paymentUrl"`
	Metadata         map[string]string `json:"-"`
}

// EffectiveStatus treats a pending invoice past its expiry as expired, even if the
// processor has not reported it yet.
func (i *BitcoinInvoice) EffectiveStatus(now time.Time) InvoiceStatus {
	if i.Status == InvoiceStatusPending && !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt) {
		return InvoiceStatusExpired
	}
	return i.Status
}

// PaymentArtifact is the rail specific object backing one checkout attempt.
// Exactly one of Card and Invoice is set.
type PaymentArtifact struct {
	CheckoutID string          `json:"checkoutId"`
	Rail       Rail            `json:"rail"`
	Reference  string          `json:"providerReferenceId"`
	Quote      Quote           `json:"quote"`
	Card       *CardIntent     `json:"card,omitempty"`
	Invoice    *BitcoinInvoice `json:"invoice,omitempty"`
}
