package checkout

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/glassworks-checkout/internal/domain"
)

// Metadata keys written onto every payment artifact. Together they are enough to build
// the order with no other session state.
const (
	metaCheckoutID     = "checkout_id"
	metaOrderType      = "order_type"
	metaItemCount      = "item_count"
	metaCart           = "cart"
	metaSubtotal       = "subtotal"
	metaTotal          = "total"
	metaCustomerName   = "customer_name"
	metaCustomerEmail  = "customer_email"
	metaCustomerAddr   = "customer_address"
	metaCustomerZip    = "customer_zip"
	metaNotes          = "notes"
	metaShippingMethod = "shipping_method"
	metaShippingRate   = "shipping_rate"
)

// providerValueLimit is the longest metadata value Stripe stores.
const providerValueLimit = 500

type recovered struct {
	CheckoutID string
	Quote      domain.Quote
	Customer   domain.Customer
}

func encodeMetadata(checkoutID string, q domain.Quote, c domain.Customer) map[string]string {
	orderType := "single"
	if len(q.Lines) > 1 {
		orderType = "cart"
	}

	parts := make([]string, len(q.Lines))
	for i, l := range q.Lines {
		parts[i] = fmt.Sprintf("%d:%d:%d:%s", l.DesignID, l.SizeOptionID, l.Quantity, l.UnitPrice.StringFixed(2))
	}

	return map[string]string{
		metaCheckoutID:     checkoutID,
		metaOrderType:      orderType,
		metaItemCount:      strconv.Itoa(len(q.Lines)),
		metaCart:           strings.Join(parts, ";"),
		metaSubtotal:       q.Subtotal.StringFixed(2),
		metaTotal:          q.Total.StringFixed(2),
		metaCustomerName:   c.Name,
		metaCustomerEmail:  c.Email,
		metaCustomerAddr:   c.Address,
		metaCustomerZip:    c.PostalCode,
		metaNotes:          c.Notes,
		metaShippingMethod: string(q.Shipping.Service),
		metaShippingRate:   q.Shipping.Price.StringFixed(2),
	}
}

// forProvider trims values to what the processor will keep. The untrimmed copy stays
// with the artifact record.
func forProvider(meta map[string]string) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		if r := []rune(v); len(r) > providerValueLimit {
			v = string(r[:providerValueLimit])
		}
		out[k] = v
	}
	return out
}

func decodeMetadata(meta map[string]string) (*recovered, error) {
	cart := meta[metaCart]
	if cart == "" {
		return nil, fmt.Errorf("metadata has no cart")
	}

	var q domain.Quote
	for _, part := range strings.Split(cart, ";") {
		fields := strings.Split(part, ":")
		if len(fields) != 4 {
			return nil, fmt.Errorf("malformed cart line %q", part)
		}
		designID, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cart line %q: %w", part, err)
		}
		sizeID, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cart line %q: %w", part, err)
		}
		qty, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("cart line %q: %w", part, err)
		}
		price, err := decimal.NewFromString(fields[3])
		if err != nil {
			return nil, fmt.Errorf("cart line %q: %w", part, err)
		}

		line := domain.PricedLine{
			CartLine:  domain.CartLine{DesignID: designID, SizeOptionID: sizeID, Quantity: qty},
			UnitPrice: price,
			Subtotal:  price.Mul(decimal.NewFromInt(int64(qty))),
		}
		q.Lines = append(q.Lines, line)
		q.Subtotal = q.Subtotal.Add(line.Subtotal)
	}

	rate, err := decimal.NewFromString(meta[metaShippingRate])
	if err != nil {
		rate = decimal.Zero
	}
	q.Shipping = domain.ShippingSelection{
		Service: domain.ShippingService(meta[metaShippingMethod]),
		Price:   rate,
	}
	q.Total = q.Subtotal.Add(rate)

	return &recovered{
		CheckoutID: meta[metaCheckoutID],
		Quote:      q,
		Customer: domain.Customer{
			Name:       meta[metaCustomerName],
			Email:      meta[metaCustomerEmail],
			Address:    meta[metaCustomerAddr],
			PostalCode: meta[metaCustomerZip],
			Notes:      meta[metaNotes],
		},
	}, nil
}

func describe(q domain.Quote) string {
	if len(q.Lines) == 1 {
		return q.Lines[0].DesignTitle + " - " + q.Lines[0].SizeName
	}
	parts := make([]string, len(q.Lines))
	for i, l := range q.Lines {
		parts[i] = fmt.Sprintf("%s (%s) x%d", l.DesignTitle, l.SizeName, l.Quantity)
	}
	return "Cart: " + strings.Join(parts, ", ")
}
