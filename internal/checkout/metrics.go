package checkout

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("checkout")

var (
	ordersCreated, _ = meter.Int64Counter(
		"checkout.orders_created",
		metric.WithDescription("Orders materialized from confirmed payments"),
	)
	duplicateCompletions, _ = meter.Int64Counter(
		"checkout.duplicate_completions",
		metric.WithDescription("Completion signals answered with an existing order"),
	)
	staleCompletions, _ = meter.Int64Counter(
		"checkout.stale_completions",
		metric.WithDescription("Completion signals for superseded or unknown artifacts"),
	)
	notificationFailures, _ = meter.Int64Counter(
		"checkout.notification_failures",
		metric.WithDescription("Order emails that could not be sent"),
	)
)
