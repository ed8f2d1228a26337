// Package app assembles the checkout components from configuration. The storefront and
// the worker build the same service so webhook events apply identically in both.
package app

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/glassworks-checkout/internal/catalog"
	"github.com/joao-fontenele/glassworks-checkout/internal/checkout"
	"github.com/joao-fontenele/glassworks-checkout/internal/config"
	"github.com/joao-fontenele/glassworks-checkout/internal/notify"
	"github.com/joao-fontenele/glassworks-checkout/internal/orders"
	"github.com/joao-fontenele/glassworks-checkout/internal/payment/bitcoin"
	"github.com/joao-fontenele/glassworks-checkout/internal/payment/card"
	"github.com/joao-fontenele/glassworks-checkout/internal/shipping"
)

type Components struct {
	Catalog  *catalog.Repository
	Orders   *orders.OrderRepository
	Shipping *shipping.Service
	Checkout *checkout.Service
	// Poller is nil when the bitcoin rail is disabled.
	Poller *bitcoin.Poller
}

// NewHTTPClient returns a client whose requests are traced.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func Build(cfg *config.Config, db *sql.DB, logger *slog.Logger) *Components {
	httpClient := NewHTTPClient(cfg.ProviderTimeout)

	c := &Components{
		Catalog: catalog.NewRepository(db),
		Orders:  orders.NewOrderRepository(db),
	}

	var carrier shipping.RateSource
	if cfg.LiveRatesEnabled() {
		carrier = shipping.NewUSPSClient(shipping.USPSConfig{
			BaseURL:      cfg.USPSBaseURL,
			ClientID:     cfg.USPSClientID,
			ClientSecret: cfg.USPSClientSecret,
			OriginZip:    cfg.DropshipperZip,
		}, httpClient)
	} else {
		logger.Warn("carrier credentials missing, shipping quotes use the fallback table")
	}
	c.Shipping = shipping.NewService(carrier, cfg.ProviderTimeout, logger)

	deps := checkout.Deps{
		Catalog:  c.Catalog,
		Rates:    c.Shipping,
		Orders:   c.Orders,
		Attempts: checkout.NewAttemptRepository(db),
	}

	if cfg.CardRailEnabled() {
		deps.Card = card.New(cfg.StripeSecretKey, httpClient)
	} else {
		logger.Warn("card rail disabled")
	}

	if cfg.BitcoinRailEnabled() {
		invoices := bitcoin.NewClient(cfg.ZapriteBaseURL, cfg.ZapriteAPIKey, httpClient)
		deps.Bitcoin = invoices
		c.Poller = bitcoin.NewPoller(invoices, cfg.InvoicePollInterval, cfg.ProviderTimeout, logger)
	} else {
		logger.Warn("bitcoin rail disabled")
	}

	if cfg.EmailServiceURL != "" {
		deps.Notifier = notify.New(notify.Config{
			ServiceURL:   cfg.EmailServiceURL,
			From:         cfg.EmailFrom,
			Manufacturer: cfg.ManufacturerEmail,
		}, c.Catalog, httpClient, logger)
	} else {
		logger.Warn("email service not configured, order notifications disabled")
	}

	c.Checkout = checkout.NewService(deps, cfg.ProviderTimeout, logger)
	return c
}
