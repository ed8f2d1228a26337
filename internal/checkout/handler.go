package checkout

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/glassworks-checkout/internal/domain"
)

type Watcher interface {
	Watch(inv *domain.BitcoinInvoice)
}

type Handler struct {
	svc     *Service
	watcher Watcher
	logger  *slog.Logger
}

// NewHandler builds the checkout HTTP handler. watcher may be nil, in which case invoices
// are only confirmed by polling clients and webhooks.
func NewHandler(svc *Service, watcher Watcher, logger *slog.Logger) *Handler {
	return &Handler{
		svc:     svc,
		watcher: watcher,
		logger:  logger,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/shipping/calculate", h.HandleCalculateShipping)
	r.Post("/create-payment-intent", h.HandleCreatePaymentIntent)
	r.Post("/complete-stripe-order", h.HandleCompleteStripeOrder)
	r.Post("/create-bitcoin-invoice", h.HandleCreateBitcoinInvoice)
	r.Get("/bitcoin-invoice/{invoiceId}", h.HandleGetBitcoinInvoice)
}

type calculateShippingRequest struct {
	DestinationZip string `json:"destinationZip"`
	SizeOptionID   int64  `json:"sizeOptionId"`
}

func (h *Handler) HandleCalculateShipping(w http.ResponseWriter, r *http.Request) {
	var req calculateShippingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DestinationZip == "" || req.SizeOptionID == 0 {
		h.writeError(w, http.StatusBadRequest, "destination zip code and size option id are required")
		return
	}

	quote, err := h.svc.QuoteShipping(r.Context(), req.DestinationZip, req.SizeOptionID)
	if err != nil {
		h.fail(w, "failed to calculate shipping", err)
		return
	}

	h.writeJSON(w, http.StatusOK, quote)
}

// paymentRequest accepts both the cart shape and the older single item shape.
type paymentRequest struct {
	CheckoutID     string            `json:"checkoutId"`
	Items          []domain.CartLine `json:"items"`
	CartItems      []domain.CartLine `json:"cartItems"`
	DesignID       int64             `json:"designId"`
	SizeOptionID   int64             `json:"sizeOptionId"`
	CustomerInfo   domain.Customer   `json:"customerInfo"`
	Amount         *decimal.Decimal  `json:"amount"`
	ShippingMethod string            `json:"shippingMethod"`
	ShippingRate   *decimal.Decimal  `json:"shippingRate"`
	ShippingCost   *decimal.Decimal  `json:"shippingCost"`
}

func (p *paymentRequest) toRequest(rail domain.Rail) PaymentRequest {
	lines := p.Items
	if len(lines) == 0 {
		lines = p.CartItems
	}

	rate := decimal.Zero
	switch {
	case p.ShippingRate != nil:
		rate = *p.ShippingRate
	case p.ShippingCost != nil:
		rate = *p.ShippingCost
	}

	return PaymentRequest{
		CheckoutID:     p.CheckoutID,
		Rail:           rail,
		Lines:          lines,
		DesignID:       p.DesignID,
		SizeOptionID:   p.SizeOptionID,
		Customer:       p.CustomerInfo,
		Shipping:       domain.ShippingSelection{Service: domain.ShippingService(p.ShippingMethod), Price: rate},
		AdvisoryAmount: p.Amount,
	}
}

type paymentIntentResponse struct {
	ClientSecret    string          `json:"clientSecret"`
	PaymentIntentID string          `json:"paymentIntentId"`
	CheckoutID      string          `json:"checkoutId"`
	Amount          decimal.Decimal `json:"amount"`
	Quote           domain.Quote    `json:"quote"`
}

func (h *Handler) HandleCreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	artifact, err := h.svc.BeginPayment(r.Context(), req.toRequest(domain.RailCard))
	if err != nil {
		h.fail(w, "failed to create payment intent", err)
		return
	}

	h.writeJSON(w, http.StatusOK, paymentIntentResponse{
		ClientSecret:    artifact.Card.ClientSecret,
		PaymentIntentID: artifact.Reference,
		CheckoutID:      artifact.CheckoutID,
		Amount:          domain.FromMinorUnits(artifact.Card.ChargeAmountMinorUnits),
		Quote:           artifact.Quote,
	})
}

type completeOrderRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
}

type completeOrderResponse struct {
	Success   bool          `json:"success"`
	OrderID   string        `json:"orderId"`
	Order     *domain.Order `json:"order"`
	Duplicate bool          `json:"duplicate"`
}

func (h *Handler) HandleCompleteStripeOrder(w http.ResponseWriter, r *http.Request) {
	var req completeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PaymentIntentID == "" {
		h.writeError(w, http.StatusBadRequest, "payment intent id is required")
		return
	}

	completion, err := h.svc.CompleteCardPayment(r.Context(), req.PaymentIntentID)
	if err != nil {
		h.fail(w, "failed to complete card order", err)
		return
	}

	h.writeJSON(w, http.StatusOK, completeOrderResponse{
		Success:   true,
		OrderID:   completion.Order.ID,
		Order:     completion.Order,
		Duplicate: completion.Duplicate,
	})
}

type bitcoinInvoiceResponse struct {
	*domain.BitcoinInvoice
	CheckoutID string       `json:"checkoutId"`
	Quote      domain.Quote `json:"quote"`
}

func (h *Handler) HandleCreateBitcoinInvoice(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	artifact, err := h.svc.BeginPayment(r.Context(), req.toRequest(domain.RailBitcoin))
	if err != nil {
		h.fail(w, "failed to create bitcoin invoice", err)
		return
	}

	if h.watcher != nil {
		h.watcher.Watch(artifact.Invoice)
	}

	h.writeJSON(w, http.StatusOK, bitcoinInvoiceResponse{
		BitcoinInvoice: artifact.Invoice,
		CheckoutID:     artifact.CheckoutID,
		Quote:          artifact.Quote,
	})
}

func (h *Handler) HandleGetBitcoinInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID := chi.URLParam(r, "invoiceId")
	if invoiceID == "" {
		h.writeError(w, http.StatusBadRequest, "missing invoice id")
		return
	}

	view, err := h.svc.PollInvoice(r.Context(), invoiceID)
	if err != nil {
		h.fail(w, "failed to fetch bitcoin invoice", err)
		return
	}

	h.writeJSON(w, http.StatusOK, view)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidDestination),
		errors.Is(err, ErrEmptyCart),
		errors.Is(err, ErrInvalidCart),
		errors.Is(err, ErrMissingCustomer):
		return http.StatusBadRequest
	case errors.Is(err, ErrCatalogItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPaymentNotConfirmed),
		errors.Is(err, ErrStaleArtifact),
		errors.Is(err, ErrCheckoutCompleted):
		return http.StatusConflict
	case errors.Is(err, ErrPaymentFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrPaymentExpired):
		return http.StatusGone
	case errors.Is(err, ErrPaymentProviderUnavailable),
		errors.Is(err, ErrRailDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(msg, "error", err)
		h.writeError(w, status, "internal server error")
		return
	}

	h.logger.Info(msg, "error", err, "status", status)
	h.writeError(w, status, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
