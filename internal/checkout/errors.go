package checkout

import "errors"

// Caller-facing failures. Adapter and store errors are translated into these before they
// leave the package.
var (
	ErrInvalidDestination         = errors.New("invalid destination")
	ErrEmptyCart                  = errors.New("cart is empty")
	ErrInvalidCart                = errors.New("invalid cart")
	ErrMissingCustomer            = errors.New("customer name, email and address are required")
	ErrCatalogItemNotFound        = errors.New("catalog item not found")
	ErrPaymentProviderUnavailable = errors.New("payment provider unavailable")
	ErrPaymentNotConfirmed        = errors.New("payment not confirmed")
	ErrPaymentFailed              = errors.New("payment failed")
	ErrPaymentExpired             = errors.New("payment expired")
	ErrStaleArtifact              = errors.New("payment artifact is not active for its checkout")
	ErrRailDisabled               = errors.New("payment rail not enabled")
	ErrCheckoutCompleted          = errors.New("checkout already completed")
)

// errUnrecoverableOrder means the artifact metadata cannot be turned back into an order.
var errUnrecoverableOrder = errors.New("cannot recover order from payment metadata")
