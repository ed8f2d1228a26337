package shipping

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type Handler struct {
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

type validateZipRequest struct {
	ZipCode string `json:"zipCode"`
}

type validateZipResponse struct {
	ZipCode string `json:"zipCode"`
	IsValid bool   `json:"isValid"`
	Message string `json:"message"`
}

func (h *Handler) HandleValidateZip(w http.ResponseWriter, r *http.Request) {
	var req validateZipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ZipCode == "" {
		h.writeError(w, http.StatusBadRequest, "zip code is required")
		return
	}

	resp := validateZipResponse{ZipCode: req.ZipCode, IsValid: ValidPostalCode(req.ZipCode)}
	if resp.IsValid {
		resp.Message = "Valid zip code"
	} else {
		resp.Message = "Invalid zip code format. Please use 5-digit format (e.g., 12345)"
	}

	h.writeJSON(w, http.StatusOK, resp)
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
