package checkout

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joao-fontenele/glassworks-checkout/internal/domain"
)

type InvoicePoller interface {
	Poll(ctx context.Context, invoiceID string, expiresAt time.Time, onPaid func(context.Context, *domain.BitcoinInvoice)) (domain.InvoiceStatus, error)
}

// InvoiceWatcher polls new invoices in the background so a paid invoice becomes an order
// even when the customer closes the page. Watches end with ctx.
type InvoiceWatcher struct {
	ctx    context.Context
	poller InvoicePoller
	svc    *Service
	logger *slog.Logger

	wg     sync.WaitGroup
	mu     sync.Mutex
	active map[string]struct{}
}

func NewInvoiceWatcher(ctx context.Context, poller InvoicePoller, svc *Service, logger *slog.Logger) *InvoiceWatcher {
	return &InvoiceWatcher{
		ctx:    ctx,
		poller: poller,
		svc:    svc,
		logger: logger,
		active: make(map[string]struct{}),
	}
}

// Watch starts polling inv unless it is already being watched.
func (w *InvoiceWatcher) Watch(inv *domain.BitcoinInvoice) {
	w.mu.Lock()
	if _, ok := w.active[inv.InvoiceID]; ok {
		w.mu.Unlock()
		return
	}
	w.active[inv.InvoiceID] = struct{}{}
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			delete(w.active, inv.InvoiceID)
			w.mu.Unlock()
		}()

		status, err := w.poller.Poll(w.ctx, inv.InvoiceID, inv.ExpiresAt, func(ctx context.Context, paid *domain.BitcoinInvoice) {
			if _, err := w.svc.ConfirmPaidInvoice(ctx, paid); err != nil {
				w.logger.Warn("paid invoice not confirmed", "invoice_id", paid.InvoiceID, "error", err)
			}
		})
		if err != nil {
			w.logger.Info("invoice watch stopped", "invoice_id", inv.InvoiceID, "error", err)
			return
		}

		switch status {
		case domain.InvoiceStatusExpired:
			w.svc.closeArtifact(w.ctx, inv.InvoiceID, AttemptExpired)
		case domain.InvoiceStatusCancelled:
			w.svc.closeArtifact(w.ctx, inv.InvoiceID, AttemptFailed)
		}
	}()
}

// Wait blocks until every watch has returned.
func (w *InvoiceWatcher) Wait() {
	w.wg.Wait()
}
