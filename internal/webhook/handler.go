// Package webhook takes in payment provider notifications. Deliveries are verified,
// deduplicated by event id and then either published for the worker or applied inline.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/glassworks-checkout/internal/domain"
	"github.com/joao-fontenele/glassworks-checkout/internal/payment/bitcoin"
	"github.com/joao-fontenele/glassworks-checkout/internal/payment/card"
)

const maxPayloadBytes = 64 << 10

var meter = otel.Meter("webhook")

var deliveries, _ = meter.Int64Counter("webhook.deliveries",
	metric.WithDescription("Webhook deliveries by rail and outcome"))

type Deduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type Publisher interface {
	Publish(ctx context.Context, ev domain.PaymentEvent) error
}

type Applier interface {
	HandlePaymentEvent(ctx context.Context, ev domain.PaymentEvent) error
}

type Config struct {
	StripeSecret  string
	ZapriteSecret string
}

// Handler serves provider webhooks. dedupe and publisher may be nil; without a publisher
// events are applied inline.
type Handler struct {
	cfg       Config
	dedupe    Deduper
	publisher Publisher
	applier   Applier
	logger    *slog.Logger
}

func NewHandler(cfg Config, dedupe Deduper, publisher Publisher, applier Applier, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:       cfg,
		dedupe:    dedupe,
		publisher: publisher,
		applier:   applier,
		logger:    logger,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/webhooks/stripe", h.HandleStripe)
	r.Post("/webhooks/zaprite", h.HandleZaprite)
}

type ackResponse struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

func (h *Handler) HandleStripe(w http.ResponseWriter, r *http.Request) {
	if h.cfg.StripeSecret == "" {
		h.writeError(w, http.StatusNotFound, "stripe webhooks not configured")
		return
	}

	payload, err := readPayload(w, r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ev, err := card.VerifyEvent(payload, r.Header.Get("Stripe-Signature"), h.cfg.StripeSecret)
	if err != nil {
		h.reject(w, r, domain.RailCard, err)
		return
	}

	h.accept(w, r, ev)
}

func (h *Handler) HandleZaprite(w http.ResponseWriter, r *http.Request) {
	if h.cfg.ZapriteSecret == "" {
		h.writeError(w, http.StatusNotFound, "zaprite webhooks not configured")
		return
	}

	payload, err := readPayload(w, r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ev, err := bitcoin.ParseWebhook(payload, r.Header.Get(bitcoin.SignatureHeader), h.cfg.ZapriteSecret)
	if err != nil {
		h.reject(w, r, domain.RailBitcoin, err)
		return
	}

	h.accept(w, r, ev)
}

func readPayload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, rail domain.Rail, err error) {
	deliveries.Add(r.Context(), 1, metric.WithAttributes(
		attribute.String("rail", string(rail)), attribute.String("outcome", "rejected")))

	if errors.Is(err, card.ErrInvalidSignature) || errors.Is(err, bitcoin.ErrInvalidSignature) {
		h.logger.Warn("webhook signature rejected", "rail", rail, "error", err)
		h.writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}
	h.logger.Warn("webhook payload rejected", "rail", rail, "error", err)
	h.writeError(w, http.StatusBadRequest, "invalid payload")
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request, ev domain.PaymentEvent) {
	ctx := r.Context()
	logger := h.logger.With("rail", ev.Rail, "event_id", ev.EventID, "event_type", ev.Type, "provider_reference", ev.Reference)

	if h.dedupe != nil {
		first, err := h.dedupe.Claim(ctx, ev.EventID)
		if err != nil {
			logger.Warn("webhook dedupe unavailable", "error", err)
		} else if !first {
			deliveries.Add(ctx, 1, metric.WithAttributes(
				attribute.String("rail", string(ev.Rail)), attribute.String("outcome", "duplicate")))
			logger.Info("duplicate webhook delivery acknowledged")
			h.writeJSON(w, http.StatusOK, ackResponse{Received: true, Duplicate: true})
			return
		}
	}

	if err := h.dispatch(ctx, ev); err != nil {
		if h.dedupe != nil {
			if rerr := h.dedupe.Release(ctx, ev.EventID); rerr != nil {
				logger.Error("failed to release webhook claim", "error", rerr)
			}
		}
		deliveries.Add(ctx, 1, metric.WithAttributes(
			attribute.String("rail", string(ev.Rail)), attribute.String("outcome", "failed")))
		logger.Error("failed to dispatch webhook", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	deliveries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("rail", string(ev.Rail)), attribute.String("outcome", "accepted")))
	logger.Info("webhook accepted")
	h.writeJSON(w, http.StatusOK, ackResponse{Received: true})
}

func (h *Handler) dispatch(ctx context.Context, ev domain.PaymentEvent) error {
	if h.publisher != nil {
		return h.publisher.Publish(ctx, ev)
	}
	return h.applier.HandlePaymentEvent(ctx, ev)
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
