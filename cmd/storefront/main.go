package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/glassworks-checkout/internal/app"
	"github.com/joao-fontenele/glassworks-checkout/internal/catalog"
	"github.com/joao-fontenele/glassworks-checkout/internal/checkout"
	"github.com/joao-fontenele/glassworks-checkout/internal/config"
	"github.com/joao-fontenele/glassworks-checkout/internal/messaging"
	"github.com/joao-fontenele/glassworks-checkout/internal/orders"
	"github.com/joao-fontenele/glassworks-checkout/internal/shipping"
	"github.com/joao-fontenele/glassworks-checkout/internal/telemetry"
	"github.com/joao-fontenele/glassworks-checkout/internal/webhook"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load("8080")
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.RequirePostgres(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "storefront", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("storefront", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	db, err := telemetry.OpenPostgres(ctx, cfg.PostgresURL, cfg.SearchPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	comps := app.Build(cfg, db, logger)

	var dedupe webhook.Deduper
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(opts)
		defer func() { _ = redisClient.Close() }()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, webhook dedupe will fail open", "error", err)
		}
		dedupe = webhook.NewRedisDeduper(redisClient)
	}

	var publisher webhook.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, cfg.PaymentEventsTopic)
		defer func() { _ = producer.Close() }()
		publisher = producer
	}

	watchCtx, stopWatching := context.WithCancel(ctx)
	defer stopWatching()

	var (
		watcher        checkout.Watcher
		invoiceWatcher *checkout.InvoiceWatcher
	)
	if comps.Poller != nil {
		invoiceWatcher = checkout.NewInvoiceWatcher(watchCtx, comps.Poller, comps.Checkout, logger)
		watcher = invoiceWatcher
	}

	catalogHandler := catalog.NewHandler(comps.Catalog, logger)
	checkoutHandler := checkout.NewHandler(comps.Checkout, watcher, logger)
	shippingHandler := shipping.NewHandler(logger)
	ordersHandler := orders.NewHandler(comps.Orders, logger)
	webhookHandler := webhook.NewHandler(webhook.Config{
		StripeSecret:  cfg.StripeWebhookSecret,
		ZapriteSecret: cfg.ZapriteWebhookSecret,
	}, dedupe, publisher, comps.Checkout, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(telemetry.RouteTagger)

	r.Route("/api", func(r chi.Router) {
		catalogHandler.Routes(r)
		checkoutHandler.Routes(r)
		webhookHandler.Routes(r)
		r.Post("/shipping/validate-zip", shippingHandler.HandleValidateZip)
		r.Get("/orders/{id}", ordersHandler.HandleGet)
	})
	r.Handle("/metrics", metricsHandler)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(r, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting storefront", "port", cfg.Port,
			"card_rail", cfg.CardRailEnabled(), "bitcoin_rail", cfg.BitcoinRailEnabled(), "live_rates", cfg.LiveRatesEnabled())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	stopWatching()
	if invoiceWatcher != nil {
		invoiceWatcher.Wait()
	}
}
