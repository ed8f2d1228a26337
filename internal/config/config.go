package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	PostgresURL string
	SearchPath  string

	KafkaBrokers       []string
	PaymentEventsTopic string
	WorkerGroupID      string
	RedisURL           string

	EmailServiceURL   string
	EmailFrom         string
	ManufacturerEmail string

	StripeSecretKey     string
	StripeWebhookSecret string

	ZapriteAPIKey        string
	ZapriteWebhookSecret string
	ZapriteBaseURL       string

	USPSClientID     string
	USPSClientSecret string
	USPSBaseURL      string
	DropshipperZip   string

	ProviderTimeout     time.Duration
	InvoicePollInterval time.Duration
}

func (c *Config) CardRailEnabled() bool    { return c.StripeSecretKey != "" }
func (c *Config) BitcoinRailEnabled() bool { return c.ZapriteAPIKey != "" }

// LiveRatesEnabled reports whether carrier credentials are present. Without them every
// quote comes from the fallback table.
func (c *Config) LiveRatesEnabled() bool {
	return c.USPSClientID != "" && c.USPSClientSecret != "" && c.DropshipperZip != ""
}

func defaults(v *viper.Viper, port string) {
	v.SetDefault("PORT", port)
	v.SetDefault("POSTGRES_SEARCH_PATH", "storefront")
	v.SetDefault("PAYMENT_EVENTS_TOPIC", "payment.events")
	v.SetDefault("WORKER_GROUP_ID", "payment-events-worker")
	v.SetDefault("EMAIL_FROM", "BTC Glass <orders@btcglass.store>")
	v.SetDefault("MANUFACTURER_EMAIL", "theee@btcglass.store")
	v.SetDefault("ZAPRITE_BASE_URL", "https://api.zaprite.com/v1")
	v.SetDefault("USPS_BASE_URL", "https://apis.usps.com")
	v.SetDefault("PROVIDER_TIMEOUT", 5*time.Second)
	v.SetDefault("INVOICE_POLL_INTERVAL", 3*time.Second)
}

// Load reads configuration from the environment. defaultPort is used when PORT is unset.
func Load(defaultPort string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	defaults(v, defaultPort)

	cfg := &Config{
		Port:                 v.GetString("PORT"),
		PostgresURL:          v.GetString("POSTGRES_URL"),
		SearchPath:           v.GetString("POSTGRES_SEARCH_PATH"),
		PaymentEventsTopic:   v.GetString("PAYMENT_EVENTS_TOPIC"),
		WorkerGroupID:        v.GetString("WORKER_GROUP_ID"),
		RedisURL:             v.GetString("REDIS_URL"),
		EmailServiceURL:      v.GetString("EMAIL_SERVICE_URL"),
		EmailFrom:            v.GetString("EMAIL_FROM"),
		ManufacturerEmail:    v.GetString("MANUFACTURER_EMAIL"),
		StripeSecretKey:      v.GetString("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:  v.GetString("STRIPE_WEBHOOK_SECRET"),
		ZapriteAPIKey:        v.GetString("ZAPRITE_API_KEY"),
		ZapriteWebhookSecret: v.GetString("ZAPRITE_WEBHOOK_SECRET"),
		ZapriteBaseURL:       strings.TrimRight(v.GetString("ZAPRITE_BASE_URL"), "/"),
		USPSClientID:         v.GetString("USPS_CLIENT_ID"),
		USPSClientSecret:     v.GetString("USPS_CLIENT_SECRET"),
		USPSBaseURL:          strings.TrimRight(v.GetString("USPS_BASE_URL"), "/"),
		DropshipperZip:       v.GetString("DROPSHIPPER_ZIP"),
		ProviderTimeout:      v.GetDuration("PROVIDER_TIMEOUT"),
		InvoicePollInterval:  v.GetDuration("INVOICE_POLL_INTERVAL"),
	}

	if brokers := v.GetString("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	if cfg.ProviderTimeout <= 0 {
		return nil, errors.New("PROVIDER_TIMEOUT must be positive")
	}
	if cfg.InvoicePollInterval <= 0 {
		return nil, errors.New("INVOICE_POLL_INTERVAL must be positive")
	}

	return cfg, nil
}

// RequirePostgres returns an error when POSTGRES_URL is missing.
func (c *Config) RequirePostgres() error {
	if c.PostgresURL == "" {
		return errors.New("POSTGRES_URL environment variable is required")
	}
	return nil
}
