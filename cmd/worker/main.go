package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joao-fontenele/glassworks-checkout/internal/app"
	"github.com/joao-fontenele/glassworks-checkout/internal/config"
	"github.com/joao-fontenele/glassworks-checkout/internal/messaging"
	"github.com/joao-fontenele/glassworks-checkout/internal/telemetry"
	"github.com/joao-fontenele/glassworks-checkout/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load("")
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if len(cfg.KafkaBrokers) == 0 {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}
	if err := cfg.RequirePostgres(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "payment-worker", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	db, err := telemetry.OpenPostgres(ctx, cfg.PostgresURL, cfg.SearchPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	comps := app.Build(cfg, db, logger)

	consumer := messaging.NewConsumer(cfg.KafkaBrokers, cfg.PaymentEventsTopic, cfg.WorkerGroupID, logger)
	defer func() { _ = consumer.Close() }()

	handler := worker.NewPaymentEventHandler(comps.Checkout, logger)

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting payment event worker", "brokers", cfg.KafkaBrokers, "topic", cfg.PaymentEventsTopic)

	if err := consumer.Consume(ctx, handler.Handle); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
