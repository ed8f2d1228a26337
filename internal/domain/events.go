package domain

import "time"

const (
	EventCardPaymentSucceeded = "payment_intent.succeeded"
	EventCardPaymentFailed    = "payment_intent.payment_failed"
	EventInvoicePaid          = "invoice.paid"
	EventInvoiceExpired       = "invoice.expired"
	EventInvoiceCancelled     = "invoice.cancelled"
)

// PaymentEvent is a verified provider webhook, normalized for both rails.
type PaymentEvent struct {
	EventID    string    `json:"event_id"`
	Rail       Rail      `json:"rail"`
	Type       string    `json:"type"`
	Reference  string    `json:"reference"`
	ReceivedAt time.Time `json:"received_at"`
}
