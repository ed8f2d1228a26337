package shipping

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/glassworks-checkout/internal/domain"
)

type Zone string

const (
	ZoneNearby   Zone = "nearby"
	ZoneRegional Zone = "regional"
	ZoneDistant  Zone = "distant"
)

type zoneRates struct {
	standard decimal.Decimal
	express  decimal.Decimal
}

var fallbackTable = map[Zone]zoneRates{
	ZoneNearby:   {standard: decimal.NewFromInt(10), express: decimal.NewFromInt(27)},
	ZoneRegional: {standard: decimal.NewFromInt(15), express: decimal.NewFromInt(35)},
	ZoneDistant:  {standard: decimal.NewFromInt(22), express: decimal.NewFromInt(45)},
}

// ZoneFor derives a coarse zone from the first three digits of a ZIP code, measured
// from a west coast origin.
func ZoneFor(postalCode string) Zone {
	if len(postalCode) < 3 {
		return ZoneDistant
	}
	prefix, err := strconv.Atoi(postalCode[:3])
	if err != nil {
		return ZoneDistant
	}
	switch {
	case prefix >= 800 && prefix <= 961:
		return ZoneNearby
	case prefix >= 500 && prefix <= 799:
		return ZoneRegional
	default:
		return ZoneDistant
	}
}

// FallbackOptions returns the static rate table for the destination's zone.
func FallbackOptions(postalCode string) []domain.ShippingOption {
	rates := fallbackTable[ZoneFor(postalCode)]

	standard := tiers[0].option(rates.standard)
	standard.Estimated = true
	express := tiers[1].option(rates.express)
	express.Estimated = true

	return []domain.ShippingOption{standard, express}
}
