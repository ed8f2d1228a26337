package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/glassworks-checkout/internal/domain"
)

type stubReader struct {
	designs []domain.Design
	sizes   []domain.SizeOption
	err     error
}

func (s *stubReader) GetDesign(_ context.Context, id int64) (*domain.Design, error) {
	if s.err != nil {
		return nil, s.err
	}
	for i := range s.designs {
		if s.designs[i].ID == id {
			return &s.designs[i], nil
		}
	}
	return nil, nil
}

func (s *stubReader) GetSizeOption(_ context.Context, id int64) (*domain.SizeOption, error) {
	if s.err != nil {
		return nil, s.err
	}
	for i := range s.sizes {
		if s.sizes[i].ID == id {
			return &s.sizes[i], nil
		}
	}
	return nil, nil
}

func (s *stubReader) ListDesigns(context.Context) ([]domain.Design, error) {
	return s.designs, s.err
}

func (s *stubReader) ListSizeOptions(context.Context) ([]domain.SizeOption, error) {
	return s.sizes, s.err
}

func newTestRouter(reader Reader) http.Handler {
	r := chi.NewRouter()
	NewHandler(reader, slog.New(slog.NewTextHandler(io.Discard, nil))).Routes(r)
	return r
}

func TestHandler_Designs(t *testing.T) {
	reader := &stubReader{
		designs: []domain.Design{{ID: 1, Title: "Genesis Block"}, {ID: 2, Title: "Digital Gold"}},
	}
	router := newTestRouter(reader)

	t.Run("lists designs", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/designs", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var got []domain.Design
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 designs, got %d", len(got))
		}
	})

	t.Run("gets one design", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/designs/2", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var got domain.Design
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Title != "Digital Gold" {
			t.Errorf("expected Digital Gold, got %s", got.Title)
		}
	})

	t.Run("returns 404 for unknown design", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/designs/99", nil))

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})

	t.Run("returns 400 for malformed id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/designs/abc", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})
}

func TestHandler_SizeOptions(t *testing.T) {
	t.Run("serves price as a decimal string", func(t *testing.T) {
		reader := &stubReader{
			sizes: []domain.SizeOption{{ID: 3, Name: "15 Inch Glass Art", Size: "15", Price: decimal.RequireFromString("449.99")}},
		}
		rec := httptest.NewRecorder()
		newTestRouter(reader).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/size-options/3", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var body map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["price"] != "449.99" {
			t.Errorf("expected price \"449.99\", got %v", body["price"])
		}
	})

	t.Run("returns 500 when the store fails", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestRouter(&stubReader{err: errors.New("db down")}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/size-options", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rec.Code)
		}
	})
}

func TestLaunchCatalog(t *testing.T) {
	sizes := LaunchSizeOptions()
	if len(sizes) != 3 {
		t.Fatalf("expected 3 size options, got %d", len(sizes))
	}
	for _, s := range sizes {
		if !s.Price.IsPositive() {
			t.Errorf("size %s has non-positive price %s", s.Name, s.Price)
		}
	}
	if len(LaunchDesigns()) != 5 {
		t.Errorf("expected 5 designs, got %d", len(LaunchDesigns()))
	}
}
