package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/joao-fontenele/glassworks-checkout/internal/domain"
	"github.com/joao-fontenele/glassworks-checkout/internal/payment/bitcoin"
)

const (
	stripeSecret  = "whsec_test"
	zapriteSecret = "zap_secret"
)

type memDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *memDeduper) Claim(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *memDeduper) Release(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.PaymentEvent
	err    error
}

func (s *recordingSink) Publish(_ context.Context, ev domain.PaymentEvent) error {
	return s.record(ev)
}

func (s *recordingSink) HandlePaymentEvent(_ context.Context, ev domain.PaymentEvent) error {
	return s.record(ev)
}

func (s *recordingSink) record(ev domain.PaymentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func stripeRequest(t *testing.T, secret string) *http.Request {
	t.Helper()
	payload := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_123","object":"payment_intent"}}}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: secret})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	return req
}

func zapriteRequest(secret string) *http.Request {
	payload := []byte(`{"type":"invoice.paid","data":{"id":"inv_42"}}`)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/zaprite", bytes.NewReader(payload))
	req.Header.Set(bitcoin.SignatureHeader, hex.EncodeToString(mac.Sum(nil)))
	return req
}

func newHandler(dedupe Deduper, publisher Publisher, applier Applier) *Handler {
	return NewHandler(Config{StripeSecret: stripeSecret, ZapriteSecret: zapriteSecret},
		dedupe, publisher, applier, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandler_Stripe(t *testing.T) {
	sink := &recordingSink{}
	h := newRouter(newHandler(nil, nil, sink))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, stripeRequest(t, stripeSecret))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var ack ackResponse
	if err := json.NewDecoder(rec.Body).Decode(&ack); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !ack.Received {
		t.Error("expected received acknowledgement")
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected 1 event applied, got %d", len(sink.events))
	}
	ev := sink.events[0]
	if ev.Rail != domain.RailCard || ev.Reference != "pi_123" || ev.Type != domain.EventCardPaymentSucceeded {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestHandler_RejectsBadSignatures(t *testing.T) {
	sink := &recordingSink{}
	h := newRouter(newHandler(nil, nil, sink))

	for name, req := range map[string]*http.Request{
		"stripe":  stripeRequest(t, "whsec_other"),
		"zaprite": zapriteRequest("other"),
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", rec.Code)
			}
		})
	}

	if len(sink.events) != 0 {
		t.Errorf("expected no events, got %d", len(sink.events))
	}
}

func TestHandler_ZapritePublishesAndDedupes(t *testing.T) {
	publisher := &recordingSink{}
	applier := &recordingSink{}
	h := newRouter(newHandler(&memDeduper{seen: map[string]bool{}}, publisher, applier))

	for i := range 2 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, zapriteRequest(zapriteSecret))
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected status 200, got %d", i, rec.Code)
		}
	}

	if len(publisher.events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(publisher.events))
	}
	if len(applier.events) != 0 {
		t.Errorf("expected no inline application, got %d", len(applier.events))
	}
	ev := publisher.events[0]
	if ev.EventID != "invoice.paid:inv_42" || ev.Reference != "inv_42" || ev.Rail != domain.RailBitcoin {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestHandler_FailedDispatchCanBeRetried(t *testing.T) {
	applier := &recordingSink{err: errors.New("provider unavailable")}
	h := newRouter(newHandler(&memDeduper{seen: map[string]bool{}}, nil, applier))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, zapriteRequest(zapriteSecret))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}

	applier.err = nil
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, zapriteRequest(zapriteSecret))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 on redelivery, got %d", rec.Code)
	}
	if len(applier.events) != 1 {
		t.Errorf("expected redelivery to be applied, got %d events", len(applier.events))
	}
}

func TestHandler_UnconfiguredRail(t *testing.T) {
	h := newRouter(NewHandler(Config{}, nil, nil, &recordingSink{}, slog.New(slog.NewTextHandler(io.Discard, nil))))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, zapriteRequest(zapriteSecret))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}
