package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/joao-fontenele/glassworks-checkout/internal/domain"
)

// Reader is the read side of the catalog the storefront serves.
type Reader interface {
	GetDesign(ctx context.Context, id int64) (*domain.Design, error)
	GetSizeOption(ctx context.Context, id int64) (*domain.SizeOption, error)
	ListDesigns(ctx context.Context) ([]domain.Design, error)
	ListSizeOptions(ctx context.Context) ([]domain.SizeOption, error)
}

type Handler struct {
	repo   Reader
	logger *slog.Logger
}

func NewHandler(repo Reader, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/designs", h.HandleListDesigns)
	r.Get("/designs/{id}", h.HandleGetDesign)
	r.Get("/size-options", h.HandleListSizeOptions)
	r.Get("/size-options/{id}", h.HandleGetSizeOption)
}

func (h *Handler) HandleListDesigns(w http.ResponseWriter, r *http.Request) {
	designs, err := h.repo.ListDesigns(r.Context())
	if err != nil {
		h.logger.Error("failed to list designs", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, designs)
}

func (h *Handler) HandleGetDesign(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid design id")
		return
	}

	design, err := h.repo.GetDesign(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get design", "error", err, "design_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if design == nil {
		h.writeError(w, http.StatusNotFound, "design not found")
		return
	}

	h.writeJSON(w, http.StatusOK, design)
}

func (h *Handler) HandleListSizeOptions(w http.ResponseWriter, r *http.Request) {
	sizes, err := h.repo.ListSizeOptions(r.Context())
	if err != nil {
		h.logger.Error("failed to list size options", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, sizes)
}

func (h *Handler) HandleGetSizeOption(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid size option id")
		return
	}

	size, err := h.repo.GetSizeOption(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get size option", "error", err, "size_option_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if size == nil {
		h.writeError(w, http.StatusNotFound, "size option not found")
		return
	}

	h.writeJSON(w, http.StatusOK, size)
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
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
