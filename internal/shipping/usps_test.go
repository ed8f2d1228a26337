package shipping

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type uspsStub struct {
	tokenCalls atomic.Int32
	rateCalls  atomic.Int32
	rateStatus int
	rateBody   string

	mu      sync.Mutex
	lastReq rateRequest
}

func (s *uspsStub) last() rateRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReq
}

func (s *uspsStub) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth2/v3/token", func(w http.ResponseWriter, r *http.Request) {
		s.tokenCalls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "id", r.PostForm.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"abc","token_type":"Bearer","expires_in":28800}`))
	})
	mux.HandleFunc("POST /prices/v3/base-rates/search", func(w http.ResponseWriter, r *http.Request) {
		s.rateCalls.Add(1)
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		var req rateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.mu.Lock()
		s.lastReq = req
		s.mu.Unlock()
		status := s.rateStatus
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(s.rateBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestUSPS(srv *httptest.Server) *USPSClient {
	return NewUSPSClient(USPSConfig{
		BaseURL:      srv.URL,
		ClientID:     "id",
		ClientSecret: "secret",
		OriginZip:    "97201",
	}, srv.Client())
}

func TestUSPSClient_Rate(t *testing.T) {
	stub := &uspsStub{rateBody: `{"totalBasePrice": 11.75}`}
	client := newTestUSPS(stub.server(t))

	price, err := client.Rate(context.Background(), "10001", PackageFor(SizeLarge), "PRIORITY_MAIL")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("11.75")))

	_, err = client.Rate(context.Background(), "10001", PackageFor(SizeLarge), "PRIORITY_MAIL_EXPRESS")
	require.NoError(t, err)

	assert.Equal(t, int32(1), stub.tokenCalls.Load(), "token should be reused")
	last := stub.last()
	assert.Equal(t, "97201", last.OriginZIPCode)
	assert.Equal(t, "PRIORITY_MAIL_EXPRESS", last.MailClass)
	assert.Equal(t, float64(22), last.Length)
	assert.Equal(t, "SP", last.RateIndicator)
}

func TestUSPSClient_RateFromRatesList(t *testing.T) {
	stub := &uspsStub{rateBody: `{"rates":[{"totalBasePrice": 38.2,"mailClass":"PRIORITY_MAIL_EXPRESS","zone":"08"}]}`}
	client := newTestUSPS(stub.server(t))

	price, err := client.Rate(context.Background(), "10001", PackageFor(SizeMedium), "PRIORITY_MAIL_EXPRESS")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("38.2")))
}

func TestUSPSClient_NoRate(t *testing.T) {
	stub := &uspsStub{rateBody: `{"rates":[]}`}
	client := newTestUSPS(stub.server(t))

	_, err := client.Rate(context.Background(), "10001", PackageFor(SizeMedium), "PRIORITY_MAIL")
	assert.ErrorIs(t, err, ErrNoRate)
}

func TestUSPSClient_UnauthorizedDropsToken(t *testing.T) {
	stub := &uspsStub{rateStatus: http.StatusUnauthorized, rateBody: `{"error":"expired"}`}
	client := newTestUSPS(stub.server(t))

	_, err := client.Rate(context.Background(), "10001", PackageFor(SizeMedium), "PRIORITY_MAIL")
	require.Error(t, err)

	_, _ = client.Rate(context.Background(), "10001", PackageFor(SizeMedium), "PRIORITY_MAIL")
	assert.Equal(t, int32(2), stub.tokenCalls.Load())
}

func TestUSPSClient_BreakerOpensOnServerErrors(t *testing.T) {
	stub := &uspsStub{rateStatus: http.StatusBadGateway, rateBody: "upstream"}
	client := newTestUSPS(stub.server(t))

	for range 8 {
		_, err := client.Rate(context.Background(), "10001", PackageFor(SizeMedium), "PRIORITY_MAIL")
		require.Error(t, err)
	}

	assert.Equal(t, int32(5), stub.rateCalls.Load())
}

func TestCarrierHealthy(t *testing.T) {
	assert.True(t, carrierHealthy(nil))
	assert.True(t, carrierHealthy(ErrNoRate))
	assert.True(t, carrierHealthy(&statusError{code: http.StatusBadRequest}))
	assert.False(t, carrierHealthy(&statusError{code: http.StatusServiceUnavailable}))
}
