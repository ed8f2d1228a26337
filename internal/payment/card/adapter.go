// Package card creates and verifies card payment intents through Stripe.
package card

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/joao-fontenele/glassworks-checkout/internal/domain"
)

// MinimumChargeMinorUnits is the smallest amount Stripe accepts for USD.
const MinimumChargeMinorUnits = 50

var (
	ErrUnavailable    = errors.New("card processor unavailable")
	ErrIntentNotFound = errors.New("payment intent not found")
	ErrRejected       = errors.New("card processor rejected the request")
)

type intentClient interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type Adapter struct {
	intents intentClient
}

func New(secretKey string, httpClient *http.Client) *Adapter {
	sc := client.New(secretKey, stripe.NewBackends(httpClient))
	return &Adapter{intents: sc.PaymentIntents}
}

// CreateIntent opens a card-only payment intent. Amounts below the processor minimum are
// raised to it. idempotencyKey makes retries of the same attempt return the same intent.
func (a *Adapter) CreateIntent(ctx context.Context, amountMinorUnits int64, metadata map[string]string, idempotencyKey string) (*domain.CardIntent, error) {
	if amountMinorUnits < MinimumChargeMinorUnits {
		amountMinorUnits = MinimumChargeMinorUnits
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amountMinorUnits),
		Currency:           stripe.String(string(stripe.CurrencyUSD)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := a.intents.New(params)
	if err != nil {
		return nil, translate("create intent", err)
	}

	return toIntent(pi), nil
}

func (a *Adapter) RetrieveIntent(ctx context.Context, id string) (*domain.CardIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := a.intents.Get(id, params)
	if err != nil {
		return nil, translate("retrieve intent", err)
	}

	return toIntent(pi), nil
}

func toIntent(pi *stripe.PaymentIntent) *domain.CardIntent {
	return &domain.CardIntent{
		ProviderIntentID:       pi.ID,
		ClientSecret:           pi.ClientSecret,
		Status:                 intentStatus(pi),
		ChargeAmountMinorUnits: pi.Amount,
		Metadata:               pi.Metadata,
	}
}

func intentStatus(pi *stripe.PaymentIntent) domain.IntentStatus {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return domain.IntentStatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return domain.IntentStatusFailed
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil {
			return domain.IntentStatusFailed
		}
	}
	return domain.IntentStatusRequiresPayment
}

func translate(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		switch {
		case se.HTTPStatusCode == http.StatusNotFound:
			return fmt.Errorf("%s: %w: %s", op, ErrIntentNotFound, se.Msg)
		case se.HTTPStatusCode == http.StatusTooManyRequests || se.HTTPStatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%s: %w: %s", op, ErrUnavailable, se.Msg)
		case se.HTTPStatusCode >= http.StatusBadRequest:
			return fmt.Errorf("%s: %w: %s", op, ErrRejected, se.Msg)
		}
	}
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}
