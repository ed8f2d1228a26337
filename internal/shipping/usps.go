package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

// ErrNoRate means the carrier answered but quoted nothing for the mail class.
var ErrNoRate = errors.New("carrier returned no rate")

type statusError struct {
	op   string
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("usps %s: status %d: %s", e.op, e.code, e.body)
}

type USPSConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	OriginZip    string
}

// USPSClient quotes base rates from the USPS prices API.
type USPSClient struct {
	cfg        USPSConfig
	httpClient *http.Client
	tokens     *tokenCache
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

func NewUSPSClient(cfg USPSConfig, httpClient *http.Client) *USPSClient {
	c := &USPSClient{
		cfg:        cfg,
		httpClient: httpClient,
	}
	c.tokens = newTokenCache(c.fetchToken)
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "usps",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: carrierHealthy,
	})
	return c
}

// carrierHealthy reports whether err leaves the carrier looking available. Client errors
// and empty quotes are answers, not outages.
func carrierHealthy(err error) bool {
	if err == nil || errors.Is(err, ErrNoRate) {
		return true
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code < http.StatusInternalServerError
	}
	return false
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (c *USPSClient) fetchToken(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"scope":         {"prices"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/oauth2/v3/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("usps token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", 0, &statusError{op: "token", code: resp.StatusCode, body: string(body)}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", 0, fmt.Errorf("decode usps token: %w", err)
	}
	if tr.AccessToken == "" {
		return "", 0, errors.New("usps token: empty access token")
	}

	return tr.AccessToken, time.Duration(tr.ExpiresIn) * time.Second, nil
}

type rateRequest struct {
	OriginZIPCode      string  `json:"originZIPCode"`
	DestinationZIPCode string  `json:"destinationZIPCode"`
	Weight             float64 `json:"weight"`
	Length             float64 `json:"length"`
	Width              float64 `json:"width"`
	Height             float64 `json:"height"`
	MailClass          string  `json:"mailClass"`
	ProcessingCategory string  `json:"processingCategory"`
	DestinationType    string  `json:"destinationType"`
	RateIndicator      string  `json:"rateIndicator"`
}

type rateResponse struct {
	TotalBasePrice decimal.Decimal `json:"totalBasePrice"`
	Rates          []struct {
		TotalBasePrice decimal.Decimal `json:"totalBasePrice"`
		MailClass      string          `json:"mailClass"`
		Zone           string          `json:"zone"`
	} `json:"rates"`
}

// Rate returns the single-piece base price for one mail class.
func (c *USPSClient) Rate(ctx context.Context, destination string, pkg Package, mailClass string) (decimal.Decimal, error) {
	token, err := c.tokens.Get(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	payload, err := json.Marshal(rateRequest{
		OriginZIPCode:      c.cfg.OriginZip,
		DestinationZIPCode: destination,
		Weight:             pkg.Weight,
		Length:             pkg.Length,
		Width:              pkg.Width,
		Height:             pkg.Height,
		MailClass:          mailClass,
		ProcessingCategory: "MACHINABLE",
		DestinationType:    "STREET",
		RateIndicator:      "SP",
	})
	if err != nil {
		return decimal.Zero, err
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.post(ctx, "/prices/v3/base-rates/search", token, payload)
	})
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusUnauthorized {
			c.tokens.Invalidate()
		}
		return decimal.Zero, err
	}

	var rr rateResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return decimal.Zero, fmt.Errorf("decode usps rate: %w", err)
	}

	if rr.TotalBasePrice.IsPositive() {
		return rr.TotalBasePrice, nil
	}
	if len(rr.Rates) > 0 && rr.Rates[0].TotalBasePrice.IsPositive() {
		return rr.Rates[0].TotalBasePrice, nil
	}
	return decimal.Zero, ErrNoRate
}

func (c *USPSClient) post(ctx context.Context, path, token string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		if len(body) > 512 {
			body = body[:512]
		}
		return nil, &statusError{op: "rate", code: resp.StatusCode, body: string(body)}
	}

	return body, nil
}
