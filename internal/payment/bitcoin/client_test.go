package bitcoin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/glassworks-checkout/internal/domain"
)

func TestClient_CreateInvoice(t *testing.T) {
	var got createOrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/order", r.URL.Path)
		assert.Equal(t, "Bearer zk_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"inv_1","btcAmount":"0.0051","lightningInvoice":"lnbc1...","onchainAddress":"bc1q...","checkoutUrl":"https://pay.zaprite.com/inv_1"}`))
	}))
	defer srv.Close()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	client := NewClient(srv.URL, "zk_test", srv.Client())
	client.now = func() time.Time { return now }

	inv, err := client.CreateInvoice(context.Background(), 31499, "Genesis Block - 12 Inch Glass Art", "sam@example.com", map[string]string{"checkout_id": "c-1"})
	require.NoError(t, err)

	assert.Equal(t, int64(31499), got.Amount)
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, "sam@example.com", got.CustomerEmail)
	assert.Equal(t, "c-1", got.Metadata["checkout_id"])

	assert.Equal(t, "inv_1", inv.InvoiceID)
	assert.Equal(t, domain.InvoiceStatusPending, inv.Status)
	assert.Equal(t, "lnbc1...", inv.LightningPayload)
	assert.Equal(t, "https://pay.zaprite.com/inv_1", inv.PaymentURL)
	assert.Equal(t, now.Add(30*time.Minute), inv.ExpiresAt)
}

func TestClient_GetInvoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/invoices/inv_1":
			_, _ = w.Write([]byte(`{"id":"inv_1","status":"paid","amount":31499,"expiresAt":"2026-03-01T10:30:00Z"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "zk_test", srv.Client())

	inv, err := client.GetInvoice(context.Background(), "inv_1")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, inv.Status)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC), inv.ExpiresAt)

	_, err = client.GetInvoice(context.Background(), "inv_missing")
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestClient_ServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "zk_test", srv.Client())
	_, err := client.CreateInvoice(context.Background(), 1000, "x", "", nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, domain.InvoiceStatusPaid, parseStatus("paid"))
	assert.Equal(t, domain.InvoiceStatusCancelled, parseStatus("canceled"))
	assert.Equal(t, domain.InvoiceStatusExpired, parseStatus("expired"))
	assert.Equal(t, domain.InvoiceStatusPending, parseStatus("processing"))
}
