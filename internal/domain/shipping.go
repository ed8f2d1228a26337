package domain

import "github.com/shopspring/decimal"

type ShippingService string

const (
	ShippingServiceStandard ShippingService = "STANDARD"
	ShippingServiceExpress  ShippingService = "EXPRESS"
)

type ShippingOption struct {
	Service               ShippingService `json:"service"`
	Description           string          `json:"description"`
	Price                 decimal.Decimal `json:"price"`
	EstimatedDeliveryDays string          `json:"deliveryDays"`
	CarrierIcon           string          `json:"icon"`
	// Estimated marks options that came from the fallback table instead of the carrier.
	Estimated bool `json:"estimated"`
}

// ShippingSelection is the option the customer picked, captured onto the order.
type ShippingSelection struct {
	Service ShippingService `json:"service"`
	Price   decimal.Decimal `json:"price"`
}
