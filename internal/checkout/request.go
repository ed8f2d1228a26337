package checkout

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/glassworks-checkout/internal/domain"
	"github.com/joao-fontenele/glassworks-checkout/internal/shipping"
)

// PaymentRequest starts a payment artifact for a cart. Either Lines or the single
// DesignID/SizeOptionID pair is set.
type PaymentRequest struct {
	CheckoutID   string
	Rail         domain.Rail
	Lines        []domain.CartLine
	DesignID     int64
	SizeOptionID int64
	Customer     domain.Customer
	Shipping     domain.ShippingSelection
	// AdvisoryAmount is what the client believes the total is. It is compared and
	// logged, never charged.
	AdvisoryAmount *decimal.Decimal
}

func (r *PaymentRequest) cartLines() ([]domain.CartLine, error) {
	lines := r.Lines
	if len(lines) == 0 && (r.DesignID != 0 || r.SizeOptionID != 0) {
		lines = []domain.CartLine{{DesignID: r.DesignID, SizeOptionID: r.SizeOptionID, Quantity: 1}}
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	for i, l := range lines {
		if l.DesignID <= 0 || l.SizeOptionID <= 0 {
			return nil, fmt.Errorf("%w: line %d references no item", ErrInvalidCart, i)
		}
		if l.Quantity < 1 {
			return nil, fmt.Errorf("%w: line %d has quantity %d", ErrInvalidCart, i, l.Quantity)
		}
	}
	return lines, nil
}

func validateCustomer(c domain.Customer) error {
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Address) == "" {
		return ErrMissingCustomer
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return fmt.Errorf("%w: bad email", ErrMissingCustomer)
	}
	if c.PostalCode != "" && !shipping.ValidPostalCode(c.PostalCode) {
		return ErrInvalidDestination
	}
	return nil
}

// normalizeShipping accepts the carrier mail class names older clients send.
func normalizeShipping(s domain.ShippingSelection) (domain.ShippingSelection, error) {
	switch strings.ToUpper(string(s.Service)) {
	case string(domain.ShippingServiceStandard), "PRIORITY_MAIL":
		s.Service = domain.ShippingServiceStandard
	case string(domain.ShippingServiceExpress), "PRIORITY_MAIL_EXPRESS":
		s.Service = domain.ShippingServiceExpress
	default:
		return s, fmt.Errorf("%w: unknown shipping service %q", ErrInvalidCart, s.Service)
	}
	if s.Price.IsNegative() {
		return s, fmt.Errorf("%w: negative shipping price", ErrInvalidCart)
	}
	return s, nil
}
