package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/payflow-backend/api/routes"
	"github.com/angelmondragon/payflow-backend/internal/checkout"
	"github.com/angelmondragon/payflow-backend/internal/collections"
	"github.com/angelmondragon/payflow-backend/internal/commission"
	"github.com/angelmondragon/payflow-backend/internal/contacts"
	"github.com/angelmondragon/payflow-backend/internal/courier"
	"github.com/angelmondragon/payflow-backend/internal/disbursements"
	"github.com/angelmondragon/payflow-backend/internal/ledger"
	"github.com/angelmondragon/payflow-backend/internal/notifications"
	"github.com/angelmondragon/payflow-backend/internal/orders"
	"github.com/angelmondragon/payflow-backend/internal/sweeper"
	"github.com/angelmondragon/payflow-backend/internal/webhooks"
	"github.com/angelmondragon/payflow-backend/pkg/config"
	"github.com/angelmondragon/payflow-backend/pkg/db"
	"github.com/angelmondragon/payflow-backend/pkg/instance"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
	"github.com/angelmondragon/payflow-backend/pkg/metrics"
	"github.com/angelmondragon/payflow-backend/pkg/migrate"
	"github.com/angelmondragon/payflow-backend/pkg/mpesa"
	"github.com/angelmondragon/payflow-backend/pkg/redis"
)

const (
	serviceName     = "api"
	shutdownTimeout = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Static:      map[string]any{"env": cfg.App.Env, "instance": instance.ID()},
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	paymentMetrics := metrics.NewPaymentMetrics(registry)
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	gateway, err := mpesa.NewClient(cfg.Mpesa, mpesa.WithObserver(paymentMetrics.ObserveGateway))
	if err != nil {
		logg.Error(context.Background(), "failed to create mpesa client", err)
		os.Exit(1)
	}

	var booker courier.Booker
	if cfg.Courier.BaseURL != "" {
		courierClient, err := courier.NewClient(cfg.Courier)
		if err != nil {
			logg.Error(context.Background(), "failed to create courier client", err)
			os.Exit(1)
		}
		booker = courierClient
	} else {
		logg.Warn(context.Background(), "courier not configured, deliveries will not be booked")
	}

	ledgerRepo := ledger.NewRepository(dbClient.DB())
	directory := contacts.NewDirectory(dbClient.DB())
	calculator := commission.Default()
	notificationRepo := notifications.NewRepository(dbClient.DB())
	notifier := notifications.NewNotifier(notificationRepo, directory, notifications.NewSMTPMailer(cfg.SMTP), logg)

	notificationService, err := notifications.NewService(notificationRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	collectionService, err := collections.NewService(
		dbClient,
		ledgerRepo,
		gateway,
		booker,
		notifier,
		paymentMetrics,
		logg,
		collections.Config{CallbackURL: cfg.Mpesa.CallbackURL("/api/v1/webhooks/mpesa/stk")},
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create collections service", err)
		os.Exit(1)
	}

	disbursementService, err := disbursements.NewService(
		dbClient,
		ledgerRepo,
		gateway,
		directory,
		calculator,
		notifier,
		paymentMetrics,
		logg,
		disbursements.Config{
			ResultURL:  cfg.Mpesa.CallbackURL("/api/v1/webhooks/mpesa/b2c/result"),
			TimeoutURL: cfg.Mpesa.CallbackURL("/api/v1/webhooks/mpesa/b2c/timeout"),
		},
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create disbursements service", err)
		os.Exit(1)
	}

	orderService, err := orders.NewService(ledgerRepo, disbursementService, notifier, logg, orders.Config{
		AutoDisbursement: cfg.FeatureFlags.AutoDisbursement,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	disbursementSweeper, err := sweeper.New(ledgerRepo, disbursementService, logg, sweeper.Config{
		BatchSize:   cfg.Payments.SweepBatchSize,
		Pacing:      cfg.Payments.SweepPacing,
		RetryWindow: cfg.Payments.RetryWindow,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create disbursement sweeper", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(
		dbClient,
		ledgerRepo,
		orderService,
		collectionService,
		calculator,
		notifier,
		logg,
		checkout.Config{StaleOrderWindow: cfg.Payments.StaleOrderWindow},
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	webhookGuard, err := webhooks.NewReplayGuard(redisClient, cfg.Payments.WebhookGuardTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook replay guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithField(context.Background(), "addr", addr)

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			metricsHandler,
			checkoutService,
			collectionService,
			orderService,
			disbursementService,
			disbursementSweeper,
			directory,
			notificationService,
			webhookGuard,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}
