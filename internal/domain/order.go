package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
)

type PaymentMethod string

const (
	PaymentMethodStripe  PaymentMethod = "stripe"
	PaymentMethodBitcoin PaymentMethod = "bitcoin"
)

func PaymentMethodForRail(r Rail) PaymentMethod {
	if r == RailBitcoin {
		return PaymentMethodBitcoin
	}
	return PaymentMethodStripe
}

type OrderLine struct {
	DesignID     int64           `json:"designId"`
	SizeOptionID int64           `json:"sizeOptionId"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
}

type Order struct {
	ID                  string          `json:"id"`
	Number              int64           `json:"orderNumber"`
	CheckoutID          string          `json:"checkoutId"`
	DesignID            int64           `json:"designId"`
	SizeOptionID        int64           `json:"sizeOptionId"`
	CustomerName        string          `json:"customerName"`
	CustomerEmail       string          `json:"customerEmail"`
	ShippingAddress     string          `json:"shippingAddress"`
	Notes               string          `json:"notes"`
	Amount              decimal.Decimal `json:"amount"`
	PaymentMethod       PaymentMethod   `json:"paymentMethod"`
	ProviderReferenceID string          `json:"providerReferenceId"`
	ShippingMethod      ShippingService `json:"shippingMethod"`
	ShippingRate        decimal.Decimal `json:"shippingRate"`
	Status              OrderStatus     `json:"status"`
	Lines               []OrderLine     `json:"lines"`
	CreatedAt           time.Time       `json:"createdAt"`
}

// OrderDetails is the order together with the catalog records of its first line.
type OrderDetails struct {
	Order      *Order      `json:"order"`
	Design     *Design     `json:"design"`
	SizeOption *SizeOption `json:"sizeOption"`
}

// DisplayNumber is the customer-facing order number, e.g. #BTC-GLASS-000123.
func (o *Order) DisplayNumber() string {
	return fmt.Sprintf("#BTC-GLASS-%06d", o.Number)
}
