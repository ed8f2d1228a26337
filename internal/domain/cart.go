package domain

import "github.com/shopspring/decimal"

// CartLine is what the client holds. It never carries a price the server trusts.
type CartLine struct {
	DesignID     int64 `json:"designId"`
	SizeOptionID int64 `json:"sizeOptionId"`
	Quantity     int   `json:"quantity"`
}

type Customer struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Address    string `json:"address"`
	PostalCode string `json:"customerZip,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// PricedLine is a cart line priced from the catalog at checkout time.
type PricedLine struct {
	CartLine
	DesignTitle string          `json:"designTitle"`
	SizeName    string          `json:"sizeName"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type Quote struct {
	Lines    []PricedLine      `json:"lines"`
	Subtotal decimal.Decimal   `json:"subtotal"`
	Shipping ShippingSelection `json:"shipping"`
	Total    decimal.Decimal   `json:"total"`
}

// MinorUnits converts a USD amount to cents, rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
