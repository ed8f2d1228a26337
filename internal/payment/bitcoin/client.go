// Package bitcoin talks to the Zaprite invoicing API for Bitcoin and Lightning payments.
package bitcoin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/joao-fontenele/glassworks-checkout/internal/domain"
)

// InvoiceLifetime is how long a new invoice stays payable.
const InvoiceLifetime = 30 * time.Minute

var (
	ErrUnavailable     = errors.New("bitcoin processor unavailable")
	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrRejected        = errors.New("bitcoin processor rejected the request")
)

type apiError struct {
	code int
	body string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("zaprite: status %d: %s", e.code, e.body)
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	now        func() time.Time
}

func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		now:        time.Now,
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:    "zaprite",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				var ae *apiError
				if errors.As(err, &ae) {
					return ae.code < http.StatusInternalServerError
				}
				return err == nil
			},
		}),
	}
}

type createOrderRequest struct {
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Description   string            `json:"description"`
	CustomerEmail string            `json:"customer_email,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type orderResponse struct {
	ID               string `json:"id"`
	BTCAmount        string `json:"btcAmount"`
	LightningInvoice string `json:"lightningInvoice"`
	OnchainAddress   string `json:"onchainAddress"`
	CheckoutURL      string `json:"checkoutUrl"`
}

type invoiceResponse struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	Amount           int64             `json:"amount"`
	BTCAmount        string            `json:"btcAmount"`
	LightningInvoice string            `json:"lightningInvoice"`
	OnchainAddress   string            `json:"onchainAddress"`
	ExpiresAt        string            `json:"expiresAt"`
	PaymentURL       string            `json:"paymentUrl"`
	Metadata         map[string]string `json:"metadata"`
}

// CreateInvoice opens a USD-denominated invoice. The processor does not report an expiry
// on creation, so it is set locally from InvoiceLifetime.
func (c *Client) CreateInvoice(ctx context.Context, amountMinorUnits int64, description, customerEmail string, metadata map[string]string) (*domain.BitcoinInvoice, error) {
	payload, err := json.Marshal(createOrderRequest{
		Amount:        amountMinorUnits,
		Currency:      "USD",
		Description:   description,
		CustomerEmail: customerEmail,
		Metadata:      metadata,
	})
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, http.MethodPost, "/order", payload)
	if err != nil {
		return nil, translate("create invoice", err)
	}

	var or orderResponse
	if err := json.Unmarshal(body, &or); err != nil {
		return nil, fmt.Errorf("create invoice: %w: decode: %v", ErrUnavailable, err)
	}
	if or.ID == "" {
		return nil, fmt.Errorf("create invoice: %w: response has no id", ErrUnavailable)
	}

	return &domain.BitcoinInvoice{
		InvoiceID:        or.ID,
		Status:           domain.InvoiceStatusPending,
		AmountMinorUnits: amountMinorUnits,
		BTCAmount:        or.BTCAmount,
		LightningPayload: or.LightningInvoice,
		OnchainAddress:   or.OnchainAddress,
		ExpiresAt:        c.now().Add(InvoiceLifetime).UTC(),
		PaymentURL:       or.CheckoutURL,
		Metadata:         metadata,
	}, nil
}

func (c *Client) GetInvoice(ctx context.Context, id string) (*domain.BitcoinInvoice, error) {
	body, err := c.do(ctx, http.MethodGet, "/invoices/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, translate("get invoice", err)
	}

	var ir invoiceResponse
	if err := json.Unmarshal(body, &ir); err != nil {
		return nil, fmt.Errorf("get invoice: %w: decode: %v", ErrUnavailable, err)
	}

	// A missing or malformed expiry leaves ExpiresAt zero; callers fill it from creation.
	expiresAt, _ := time.Parse(time.RFC3339, ir.ExpiresAt)

	return &domain.BitcoinInvoice{
		InvoiceID:        ir.ID,
		Status:           parseStatus(ir.Status),
		AmountMinorUnits: ir.Amount,
		BTCAmount:        ir.BTCAmount,
		LightningPayload: ir.LightningInvoice,
		OnchainAddress:   ir.OnchainAddress,
		ExpiresAt:        expiresAt,
		PaymentURL:       ir.PaymentURL,
		Metadata:         ir.Metadata,
	}, nil
}

func parseStatus(s string) domain.InvoiceStatus {
	switch domain.InvoiceStatus(s) {
	case domain.InvoiceStatusPaid, domain.InvoiceStatusExpired, domain.InvoiceStatusCancelled:
		return domain.InvoiceStatus(s)
	case "canceled":
		return domain.InvoiceStatusCancelled
	default:
		return domain.InvoiceStatusPending
	}
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
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

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			if len(body) > 512 {
				body = body[:512]
			}
			return nil, &apiError{code: resp.StatusCode, body: string(body)}
		}

		return body, nil
	})
}

func translate(op string, err error) error {
	var ae *apiError
	if errors.As(err, &ae) {
		switch {
		case ae.code == http.StatusNotFound:
			return fmt.Errorf("%s: %w", op, ErrInvoiceNotFound)
		case ae.code >= http.StatusBadRequest && ae.code < http.StatusInternalServerError && ae.code != http.StatusTooManyRequests:
			return fmt.Errorf("%s: %w: %v", op, ErrRejected, err)
		}
	}
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}
