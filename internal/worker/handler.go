package worker

import (
	"context"
	"log/slog"

	"github.com/joao-fontenele/glassworks-checkout/internal/domain"
)

// EventApplier is the checkout service as the worker sees it. It returns errors only for
// failures worth retrying.
type EventApplier interface {
	HandlePaymentEvent(ctx context.Context, ev domain.PaymentEvent) error
}

type PaymentEventHandler struct {
	applier EventApplier
	logger  *slog.Logger
}

func NewPaymentEventHandler(applier EventApplier, logger *slog.Logger) *PaymentEventHandler {
	return &PaymentEventHandler{
		applier: applier,
		logger:  logger,
	}
}

func (h *PaymentEventHandler) Handle(ctx context.Context, ev domain.PaymentEvent) error {
	logger := h.logger.With("event_id", ev.EventID, "event_type", ev.Type, "provider_reference", ev.Reference)

	if ev.Reference == "" {
		logger.Warn("payment event without reference dropped")
		return nil
	}

	logger.Info("processing payment event", "rail", ev.Rail)

	if err := h.applier.HandlePaymentEvent(ctx, ev); err != nil {
		logger.Error("failed to apply payment event", "error", err)
		return err
	}

	logger.Info("payment event applied")
	return nil
}
