package shipping

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/glassworks-checkout/internal/domain"
)

var ErrInvalidDestination = errors.New("invalid destination postal code")

var postalCodePattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

func ValidPostalCode(code string) bool {
	return postalCodePattern.MatchString(code)
}

// RateSource quotes one mail class for one package.
type RateSource interface {
	Rate(ctx context.Context, destination string, pkg Package, mailClass string) (decimal.Decimal, error)
}

type tier struct {
	service     domain.ShippingService
	mailClass   string
	description string
	days        string
	icon        string
}

func (t tier) option(price decimal.Decimal) domain.ShippingOption {
	return domain.ShippingOption{
		Service:               t.service,
		Description:           t.description,
		Price:                 price,
		EstimatedDeliveryDays: t.days,
		CarrierIcon:           t.icon,
	}
}

var tiers = []tier{
	{
		service:     domain.ShippingServiceStandard,
		mailClass:   "PRIORITY_MAIL",
		description: "USPS Priority Mail (2-3 business days)",
		days:        "2-3 business days",
		icon:        "🚚",
	},
	{
		service:     domain.ShippingServiceExpress,
		mailClass:   "PRIORITY_MAIL_EXPRESS",
		description: "USPS Priority Express (1-2 business days)",
		days:        "1-2 business days",
		icon:        "⚡",
	},
}

var fallbackCounter, _ = otel.Meter("shipping").Int64Counter(
	"shipping.fallback_quotes",
	metric.WithDescription("Shipping quotes served from the fallback rate table"),
)

// Service produces shipping options. It never fails a valid destination: when the
// carrier cannot quote, the fallback table answers instead.
type Service struct {
	carrier RateSource
	timeout time.Duration
	logger  *slog.Logger
}

// NewService builds a Service. A nil carrier serves every quote from the fallback table.
func NewService(carrier RateSource, timeout time.Duration, logger *slog.Logger) *Service {
	return &Service{
		carrier: carrier,
		timeout: timeout,
		logger:  logger,
	}
}

func (s *Service) GetShippingOptions(ctx context.Context, postalCode, sizeName string) ([]domain.ShippingOption, error) {
	if !ValidPostalCode(postalCode) {
		return nil, ErrInvalidDestination
	}

	if s.carrier == nil {
		return s.fallback(ctx, postalCode, "carrier not configured"), nil
	}

	pkg := PackageFor(ClassifySize(sizeName))
	prices := make([]decimal.Decimal, len(tiers))
	errs := make([]error, len(tiers))

	var g errgroup.Group
	for i, t := range tiers {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			prices[i], errs[i] = s.carrier.Rate(callCtx, postalCode, pkg, t.mailClass)
			return nil
		})
	}
	_ = g.Wait()

	options := make([]domain.ShippingOption, 0, len(tiers))
	for i, t := range tiers {
		if errs[i] != nil {
			s.logger.Warn("carrier rate failed", "mail_class", t.mailClass, "destination", postalCode, "error", errs[i])
			continue
		}
		options = append(options, t.option(prices[i]))
	}

	if len(options) == 0 {
		return s.fallback(ctx, postalCode, "no carrier rates"), nil
	}

	return options, nil
}

func (s *Service) fallback(ctx context.Context, postalCode, reason string) []domain.ShippingOption {
	zone := ZoneFor(postalCode)
	fallbackCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("zone", string(zone))))
	s.logger.Info("using fallback shipping rates", "destination", postalCode, "zone", zone, "reason", reason)
	return FallbackOptions(postalCode)
}
