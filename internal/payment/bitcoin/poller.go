package bitcoin

import (
	"context"
	"log/slog"
	"time"

	"github.com/joao-fontenele/glassworks-checkout/internal/domain"
)

type InvoiceGetter interface {
	GetInvoice(ctx context.Context, id string) (*domain.BitcoinInvoice, error)
}

// Poller watches one invoice at a fixed interval until it reaches a terminal state.
type Poller struct {
	invoices InvoiceGetter
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewPoller(invoices InvoiceGetter, interval, timeout time.Duration, logger *slog.Logger) *Poller {
	return &Poller{
		invoices: invoices,
		interval: interval,
		timeout:  timeout,
		now:      time.Now,
		logger:   logger,
	}
}

// Poll fetches the invoice every interval. It returns on the first terminal status, when
// expiresAt passes, or when ctx ends. Expiry is only reported after a fetch made at or
// past expiresAt, so a payment landing just before the deadline is still seen. onPaid
// runs at most once, on the first paid observation, and no fetch follows it.
func (p *Poller) Poll(ctx context.Context, invoiceID string, expiresAt time.Time, onPaid func(context.Context, *domain.BitcoinInvoice)) (domain.InvoiceStatus, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		fetchedAt := p.now()
		status, done := p.check(ctx, invoiceID, expiresAt, onPaid)
		if done {
			return status, nil
		}
		if !expiresAt.IsZero() && !fetchedAt.Before(expiresAt) {
			return domain.InvoiceStatusExpired, nil
		}

		select {
		case <-ctx.Done():
			return domain.InvoiceStatusPending, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Poller) check(ctx context.Context, invoiceID string, expiresAt time.Time, onPaid func(context.Context, *domain.BitcoinInvoice)) (domain.InvoiceStatus, bool) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	inv, err := p.invoices.GetInvoice(callCtx, invoiceID)
	if err != nil {
		p.logger.Warn("invoice poll failed", "invoice_id", invoiceID, "error", err)
		return domain.InvoiceStatusPending, false
	}
	if inv.ExpiresAt.IsZero() {
		inv.ExpiresAt = expiresAt
	}

	status := inv.EffectiveStatus(p.now())
	if !status.IsTerminal() {
		return status, false
	}

	if status == domain.InvoiceStatusPaid && onPaid != nil {
		onPaid(ctx, inv)
	}
	p.logger.Info("invoice reached terminal state", "invoice_id", invoiceID, "status", status)
	return status, true
}
