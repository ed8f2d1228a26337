// Package checkout drives a cart from shipping selection through payment to exactly one
// order per confirmed payment.
package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/glassworks-checkout/internal/domain"
	"github.com/joao-fontenele/glassworks-checkout/internal/payment/bitcoin"
	"github.com/joao-fontenele/glassworks-checkout/internal/payment/card"
	"github.com/joao-fontenele/glassworks-checkout/internal/shipping"
)

// settleTimeout bounds the work done after an order is committed: closing the attempt,
// the emails and the confirmed status.
const settleTimeout = 30 * time.Second

type Catalog interface {
	GetDesign(ctx context.Context, id int64) (*domain.Design, error)
	GetSizeOption(ctx context.Context, id int64) (*domain.SizeOption, error)
}

type RateQuoter interface {
	GetShippingOptions(ctx context.Context, postalCode, sizeName string) ([]domain.ShippingOption, error)
}

type CardProcessor interface {
	CreateIntent(ctx context.Context, amountMinorUnits int64, metadata map[string]string, idempotencyKey string) (*domain.CardIntent, error)
	RetrieveIntent(ctx context.Context, id string) (*domain.CardIntent, error)
}

type BitcoinProcessor interface {
	CreateInvoice(ctx context.Context, amountMinorUnits int64, description, customerEmail string, metadata map[string]string) (*domain.BitcoinInvoice, error)
	GetInvoice(ctx context.Context, id string) (*domain.BitcoinInvoice, error)
}

type OrderStore interface {
	CreateOrGet(ctx context.Context, order *domain.Order) (*domain.Order, bool, error)
	FindByProviderReference(ctx context.Context, ref string) (*domain.Order, error)
	GetWithDetails(ctx context.Context, id string) (*domain.OrderDetails, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
}

type AttemptStore interface {
	Open(ctx context.Context, checkoutID string) (AttemptStatus, error)
	RecordArtifact(ctx context.Context, rec ArtifactRecord) error
	Artifact(ctx context.Context, ref string) (*ArtifactRecord, error)
	Finish(ctx context.Context, checkoutID string, status AttemptStatus) error
}

type Notifier interface {
	NotifyManufacturer(ctx context.Context, details *domain.OrderDetails) error
	NotifyCustomer(ctx context.Context, details *domain.OrderDetails) error
}

// Deps are the collaborators of a Service. Card and Bitcoin may be nil, which disables
// that rail.
type Deps struct {
	Catalog  Catalog
	Rates    RateQuoter
	Card     CardProcessor
	Bitcoin  BitcoinProcessor
	Orders   OrderStore
	Attempts AttemptStore
	Notifier Notifier
}

type Service struct {
	deps    Deps
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(deps Deps, providerTimeout time.Duration, logger *slog.Logger) *Service {
	return &Service{
		deps:    deps,
		timeout: providerTimeout,
		logger:  logger,
		now:     time.Now,
	}
}

// ShippingQuote is the answer to a shipping calculation for one size option.
type ShippingQuote struct {
	DestinationZip  string                  `json:"destinationZip"`
	SizeOption      QuotedSize              `json:"sizeOption"`
	ShippingOptions []domain.ShippingOption `json:"shippingOptions"`
}

type QuotedSize struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Size string `json:"size"`
}

// Completion is the outcome of a confirmed payment. Duplicate is set when the order
// already existed and this call changed nothing.
type Completion struct {
	Order     *domain.Order `json:"order"`
	Duplicate bool          `json:"duplicate"`
}

// InvoiceView is an invoice as the polling client sees it, with the order id once the
// payment has been turned into an order.
type InvoiceView struct {
	*domain.BitcoinInvoice
	OrderID string `json:"orderId,omitempty"`
}

func (s *Service) QuoteShipping(ctx context.Context, postalCode string, sizeOptionID int64) (*ShippingQuote, error) {
	if !shipping.ValidPostalCode(postalCode) {
		return nil, ErrInvalidDestination
	}

	size, err := s.deps.Catalog.GetSizeOption(ctx, sizeOptionID)
	if err != nil {
		return nil, fmt.Errorf("load size option: %w", err)
	}
	if size == nil {
		return nil, fmt.Errorf("%w: size option %d", ErrCatalogItemNotFound, sizeOptionID)
	}

	options, err := s.deps.Rates.GetShippingOptions(ctx, postalCode, size.Name)
	if err != nil {
		if errors.Is(err, shipping.ErrInvalidDestination) {
			return nil, ErrInvalidDestination
		}
		return nil, err
	}

	return &ShippingQuote{
		DestinationZip:  postalCode,
		SizeOption:      QuotedSize{ID: size.ID, Name: size.Name, Size: size.Size},
		ShippingOptions: options,
	}, nil
}

// BeginPayment prices the cart from the catalog and creates the payment artifact on the
// requested rail. It supersedes any artifact created earlier for the same checkout.
func (s *Service) BeginPayment(ctx context.Context, req PaymentRequest) (*domain.PaymentArtifact, error) {
	lines, err := req.cartLines()
	if err != nil {
		return nil, err
	}
	if err := validateCustomer(req.Customer); err != nil {
		return nil, err
	}
	selection, err := normalizeShipping(req.Shipping)
	if err != nil {
		return nil, err
	}
	if err := s.railEnabled(req.Rail); err != nil {
		return nil, err
	}

	checkoutID := req.CheckoutID
	if checkoutID == "" {
		checkoutID = uuid.New().String()
	} else if _, err := uuid.Parse(checkoutID); err != nil {
		return nil, fmt.Errorf("%w: malformed checkout id", ErrInvalidCart)
	}

	quote, err := s.price(ctx, lines, selection)
	if err != nil {
		return nil, err
	}

	if req.AdvisoryAmount != nil && !req.AdvisoryAmount.Equal(quote.Total) {
		s.logger.Warn("client amount differs from catalog total",
			"checkout_id", checkoutID, "client_amount", req.AdvisoryAmount.String(), "total", quote.Total.String())
	}

	status, err := s.deps.Attempts.Open(ctx, checkoutID)
	if err != nil {
		return nil, fmt.Errorf("open checkout attempt: %w", err)
	}
	if status == AttemptCompleted {
		return nil, ErrCheckoutCompleted
	}

	meta := encodeMetadata(checkoutID, *quote, req.Customer)
	amount := domain.MinorUnits(quote.Total)

	artifact := &domain.PaymentArtifact{
		CheckoutID: checkoutID,
		Rail:       req.Rail,
		Quote:      *quote,
	}
	rec := ArtifactRecord{
		CheckoutID:       checkoutID,
		Rail:             req.Rail,
		AmountMinorUnits: amount,
		Metadata:         meta,
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	switch req.Rail {
	case domain.RailCard:
		intent, err := s.deps.Card.CreateIntent(callCtx, amount, forProvider(meta), idempotencyKey(checkoutID, amount, meta))
		if err != nil {
			return nil, s.providerError(req.Rail, "create intent", err)
		}
		artifact.Reference = intent.ProviderIntentID
		artifact.Card = intent
		rec.AmountMinorUnits = intent.ChargeAmountMinorUnits
	case domain.RailBitcoin:
		invoice, err := s.deps.Bitcoin.CreateInvoice(callCtx, amount, describe(*quote), req.Customer.Email, forProvider(meta))
		if err != nil {
			return nil, s.providerError(req.Rail, "create invoice", err)
		}
		artifact.Reference = invoice.InvoiceID
		artifact.Invoice = invoice
		rec.ExpiresAt = invoice.ExpiresAt
	}

	rec.Reference = artifact.Reference
	if err := s.deps.Attempts.RecordArtifact(ctx, rec); err != nil {
		if errors.Is(err, ErrCheckoutCompleted) {
			return nil, err
		}
		return nil, fmt.Errorf("record payment artifact: %w", err)
	}

	s.logger.Info("payment artifact created",
		"checkout_id", checkoutID, "rail", req.Rail, "provider_reference", artifact.Reference,
		"total", quote.Total.String(), "lines", len(quote.Lines))

	return artifact, nil
}

func (s *Service) railEnabled(rail domain.Rail) error {
	switch rail {
	case domain.RailCard:
		if s.deps.Card == nil {
			return fmt.Errorf("%w: card", ErrRailDisabled)
		}
	case domain.RailBitcoin:
		if s.deps.Bitcoin == nil {
			return fmt.Errorf("%w: bitcoin", ErrRailDisabled)
		}
	default:
		return fmt.Errorf("%w: unknown rail %q", ErrRailDisabled, rail)
	}
	return nil
}

// price reads every line's current catalog price. A missing design or size fails the
// whole cart.
func (s *Service) price(ctx context.Context, lines []domain.CartLine, selection domain.ShippingSelection) (*domain.Quote, error) {
	q := &domain.Quote{Shipping: selection}

	for _, l := range lines {
		size, err := s.deps.Catalog.GetSizeOption(ctx, l.SizeOptionID)
		if err != nil {
			return nil, fmt.Errorf("load size option: %w", err)
		}
		if size == nil {
			return nil, fmt.Errorf("%w: size option %d", ErrCatalogItemNotFound, l.SizeOptionID)
		}

		design, err := s.deps.Catalog.GetDesign(ctx, l.DesignID)
		if err != nil {
			return nil, fmt.Errorf("load design: %w", err)
		}
		if design == nil {
			return nil, fmt.Errorf("%w: design %d", ErrCatalogItemNotFound, l.DesignID)
		}

		subtotal := size.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		q.Lines = append(q.Lines, domain.PricedLine{
			CartLine:    l,
			DesignTitle: design.Title,
			SizeName:    size.Name,
			UnitPrice:   size.Price,
			Subtotal:    subtotal,
		})
		q.Subtotal = q.Subtotal.Add(subtotal)
	}

	q.Total = q.Subtotal.Add(selection.Price)
	return q, nil
}

// CompleteCardPayment re-reads the intent from the processor and turns a succeeded
// intent into an order. What the client claims about the payment is never used.
func (s *Service) CompleteCardPayment(ctx context.Context, intentID string) (*Completion, error) {
	if s.deps.Card == nil {
		return nil, fmt.Errorf("%w: card", ErrRailDisabled)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	intent, err := s.deps.Card.RetrieveIntent(callCtx, intentID)
	cancel()
	if err != nil {
		if errors.Is(err, card.ErrIntentNotFound) {
			return nil, fmt.Errorf("%w: unknown intent", ErrPaymentNotConfirmed)
		}
		return nil, s.providerError(domain.RailCard, "retrieve intent", err)
	}

	switch intent.Status {
	case domain.IntentStatusSucceeded:
		return s.finalize(ctx, domain.RailCard, intent.ProviderIntentID, intent.ChargeAmountMinorUnits, intent.Metadata)
	case domain.IntentStatusFailed:
		return nil, ErrPaymentFailed
	default:
		return nil, ErrPaymentNotConfirmed
	}
}

// ConfirmInvoice fetches the invoice and turns a paid one into an order.
func (s *Service) ConfirmInvoice(ctx context.Context, invoiceID string) (*Completion, error) {
	view, completion, err := s.observeInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if completion != nil {
		return completion, nil
	}

	switch view.Status {
	case domain.InvoiceStatusExpired:
		return nil, ErrPaymentExpired
	case domain.InvoiceStatusCancelled:
		return nil, ErrPaymentFailed
	default:
		return nil, ErrPaymentNotConfirmed
	}
}

// PollInvoice returns the invoice with its effective status for a polling client. A paid
// invoice is confirmed on the way out, so the first poll to see it yields the order id.
func (s *Service) PollInvoice(ctx context.Context, invoiceID string) (*InvoiceView, error) {
	view, _, err := s.observeInvoice(ctx, invoiceID)
	return view, err
}

// ConfirmPaidInvoice finalizes an invoice already observed as paid, without fetching it
// again. It is the poller's success callback.
func (s *Service) ConfirmPaidInvoice(ctx context.Context, inv *domain.BitcoinInvoice) (*Completion, error) {
	return s.finalize(ctx, domain.RailBitcoin, inv.InvoiceID, inv.AmountMinorUnits, inv.Metadata)
}

func (s *Service) observeInvoice(ctx context.Context, invoiceID string) (*InvoiceView, *Completion, error) {
	if s.deps.Bitcoin == nil {
		return nil, nil, fmt.Errorf("%w: bitcoin", ErrRailDisabled)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	inv, err := s.deps.Bitcoin.GetInvoice(callCtx, invoiceID)
	cancel()
	if err != nil {
		if errors.Is(err, bitcoin.ErrInvoiceNotFound) {
			return nil, nil, fmt.Errorf("%w: unknown invoice", ErrPaymentNotConfirmed)
		}
		return nil, nil, s.providerError(domain.RailBitcoin, "get invoice", err)
	}

	rec, err := s.deps.Attempts.Artifact(ctx, invoiceID)
	if err != nil {
		return nil, nil, fmt.Errorf("load payment artifact: %w", err)
	}
	if rec != nil && inv.ExpiresAt.IsZero() {
		inv.ExpiresAt = rec.ExpiresAt
	}

	inv.Status = inv.EffectiveStatus(s.now())
	view := &InvoiceView{BitcoinInvoice: inv}

	switch inv.Status {
	case domain.InvoiceStatusPaid:
		completion, err := s.finalize(ctx, domain.RailBitcoin, inv.InvoiceID, inv.AmountMinorUnits, inv.Metadata)
		if err != nil {
			return view, nil, err
		}
		view.OrderID = completion.Order.ID
		return view, completion, nil
	case domain.InvoiceStatusExpired, domain.InvoiceStatusCancelled:
		if rec != nil && !rec.Superseded {
			s.finishAttempt(ctx, rec.CheckoutID, terminalAttemptStatus(inv.Status))
		}
	}

	return view, nil, nil
}

// HandlePaymentEvent applies a verified provider webhook. Provider and store failures are
// returned so the delivery is retried; outcomes about the payment itself are final.
func (s *Service) HandlePaymentEvent(ctx context.Context, ev domain.PaymentEvent) error {
	logger := s.logger.With("event_id", ev.EventID, "event_type", ev.Type, "provider_reference", ev.Reference)

	var err error
	switch ev.Type {
	case domain.EventCardPaymentSucceeded:
		_, err = s.CompleteCardPayment(ctx, ev.Reference)
	case domain.EventInvoicePaid:
		_, err = s.ConfirmInvoice(ctx, ev.Reference)
	case domain.EventCardPaymentFailed, domain.EventInvoiceExpired, domain.EventInvoiceCancelled:
		s.recordTerminalFailure(ctx, ev)
		return nil
	default:
		logger.Debug("ignoring payment event")
		return nil
	}

	if err == nil {
		return nil
	}
	if finalOutcome(err) {
		logger.Warn("payment event not applied", "error", err)
		return nil
	}
	logger.Error("payment event failed, delivery will be retried", "error", err)
	return err
}

// finalOutcome reports whether err is a decision about the payment rather than a failure
// to reach a provider or the store. Redelivering the event cannot change it.
func finalOutcome(err error) bool {
	for _, target := range []error{
		ErrStaleArtifact,
		ErrPaymentNotConfirmed,
		ErrPaymentFailed,
		ErrPaymentExpired,
		ErrRailDisabled,
		errUnrecoverableOrder,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *Service) recordTerminalFailure(ctx context.Context, ev domain.PaymentEvent) {
	status := AttemptFailed
	if ev.Type == domain.EventInvoiceExpired {
		status = AttemptExpired
	}
	s.closeArtifact(ctx, ev.Reference, status)
}

// closeArtifact ends the attempt behind ref, unless the artifact has been superseded by
// another rail.
func (s *Service) closeArtifact(ctx context.Context, ref string, status AttemptStatus) {
	rec, err := s.deps.Attempts.Artifact(ctx, ref)
	if err != nil {
		s.logger.Error("failed to load payment artifact", "error", err, "provider_reference", ref)
		return
	}
	if rec == nil || rec.Superseded {
		return
	}
	s.finishAttempt(ctx, rec.CheckoutID, status)
}

// finalize is the only path that creates orders. It ignores artifacts the customer has
// abandoned and returns the existing order for repeated signals.
func (s *Service) finalize(ctx context.Context, rail domain.Rail, ref string, amountMinorUnits int64, providerMeta map[string]string) (*Completion, error) {
	logger := s.logger.With("rail", rail, "provider_reference", ref)

	existing, err := s.deps.Orders.FindByProviderReference(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("look up order: %w", err)
	}
	if existing != nil {
		duplicateCompletions.Add(ctx, 1, metric.WithAttributes(attribute.String("rail", string(rail))))
		logger.Info("duplicate completion suppressed", "order_id", existing.ID)
		return &Completion{Order: existing, Duplicate: true}, nil
	}

	rec, err := s.deps.Attempts.Artifact(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("load payment artifact: %w", err)
	}
	if rec == nil || rec.Superseded || rec.Rail != rail {
		staleCompletions.Add(ctx, 1, metric.WithAttributes(attribute.String("rail", string(rail))))
		logger.Warn("ignoring completion of inactive payment artifact", "known", rec != nil)
		return nil, ErrStaleArtifact
	}

	meta := rec.Metadata
	if len(meta) == 0 {
		meta = providerMeta
	}
	data, err := decodeMetadata(meta)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUnrecoverableOrder, err)
	}
	if amountMinorUnits <= 0 {
		amountMinorUnits = rec.AmountMinorUnits
	}

	order := buildOrder(rec.CheckoutID, rail, ref, amountMinorUnits, data)

	order, created, err := s.deps.Orders.CreateOrGet(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if !created {
		duplicateCompletions.Add(ctx, 1, metric.WithAttributes(attribute.String("rail", string(rail))))
		logger.Info("duplicate completion suppressed", "order_id", order.ID)
		return &Completion{Order: order, Duplicate: true}, nil
	}

	ordersCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("rail", string(rail))))
	logger.Info("order created", "order_id", order.ID, "checkout_id", rec.CheckoutID, "amount", order.Amount.String())

	// The order is committed; settle it even if the caller goes away.
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	s.finishAttempt(settleCtx, rec.CheckoutID, AttemptCompleted)
	s.notify(settleCtx, order)

	if updated, err := s.deps.Orders.UpdateStatus(settleCtx, order.ID, domain.OrderStatusConfirmed); err != nil {
		logger.Error("failed to confirm order", "error", err, "order_id", order.ID)
	} else if updated != nil {
		order = updated
	}

	return &Completion{Order: order}, nil
}

func buildOrder(checkoutID string, rail domain.Rail, ref string, amountMinorUnits int64, data *recovered) *domain.Order {
	first := data.Quote.Lines[0]

	notes := data.Customer.Notes
	if notes == "" && len(data.Quote.Lines) > 1 {
		notes = fmt.Sprintf("Cart order: %d items", len(data.Quote.Lines))
	}

	lines := make([]domain.OrderLine, len(data.Quote.Lines))
	for i, l := range data.Quote.Lines {
		lines[i] = domain.OrderLine{
			DesignID:     l.DesignID,
			SizeOptionID: l.SizeOptionID,
			Quantity:     l.Quantity,
			UnitPrice:    l.UnitPrice,
		}
	}

	if checkoutID == "" {
		checkoutID = data.CheckoutID
	}

	return &domain.Order{
		CheckoutID:          checkoutID,
		DesignID:            first.DesignID,
		SizeOptionID:        first.SizeOptionID,
		CustomerName:        data.Customer.Name,
		CustomerEmail:       data.Customer.Email,
		ShippingAddress:     data.Customer.Address,
		Notes:               notes,
		Amount:              domain.FromMinorUnits(amountMinorUnits),
		PaymentMethod:       domain.PaymentMethodForRail(rail),
		ProviderReferenceID: ref,
		ShippingMethod:      data.Quote.Shipping.Service,
		ShippingRate:        data.Quote.Shipping.Price,
		Status:              domain.OrderStatusPending,
		Lines:               lines,
	}
}

// notify sends both order emails independently. Failures are logged and counted; the
// order stands regardless.
func (s *Service) notify(ctx context.Context, order *domain.Order) {
	if s.deps.Notifier == nil {
		return
	}

	details, err := s.deps.Orders.GetWithDetails(ctx, order.ID)
	if err != nil || details == nil {
		s.logger.Warn("order details unavailable for notification", "order_id", order.ID, "error", err)
		details = &domain.OrderDetails{Order: order}
	}

	if err := s.deps.Notifier.NotifyManufacturer(ctx, details); err != nil {
		notificationFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("recipient", "manufacturer")))
		s.logger.Error("failed to notify manufacturer", "error", err, "order_id", order.ID)
	}
	if err := s.deps.Notifier.NotifyCustomer(ctx, details); err != nil {
		notificationFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("recipient", "customer")))
		s.logger.Error("failed to notify customer", "error", err, "order_id", order.ID)
	}
}

func (s *Service) finishAttempt(ctx context.Context, checkoutID string, status AttemptStatus) {
	if err := s.deps.Attempts.Finish(ctx, checkoutID, status); err != nil {
		s.logger.Error("failed to update checkout attempt", "error", err, "checkout_id", checkoutID, "status", status)
	}
}

func (s *Service) providerError(rail domain.Rail, op string, err error) error {
	s.logger.Error("payment provider call failed", "rail", rail, "op", op, "error", err)
	return fmt.Errorf("%w: %s: %v", ErrPaymentProviderUnavailable, op, err)
}

func terminalAttemptStatus(status domain.InvoiceStatus) AttemptStatus {
	if status == domain.InvoiceStatusExpired {
		return AttemptExpired
	}
	return AttemptFailed
}

// idempotencyKey is stable for identical requests on one checkout, so a retried request
// reuses the intent while a changed cart gets a new one.
func idempotencyKey(checkoutID string, amount int64, meta map[string]string) string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%d", amount)
	for _, k := range keys {
		_, _ = fmt.Fprintf(h, "|%s=%s", k, meta[k])
	}
	return "checkout-" + checkoutID + "-" + hex.EncodeToString(h.Sum(nil))[:16]
}
