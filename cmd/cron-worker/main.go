package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/payflow-backend/internal/commission"
	"github.com/angelmondragon/payflow-backend/internal/contacts"
	"github.com/angelmondragon/payflow-backend/internal/cron"
	"github.com/angelmondragon/payflow-backend/internal/disbursements"
	"github.com/angelmondragon/payflow-backend/internal/ledger"
	"github.com/angelmondragon/payflow-backend/internal/notifications"
	"github.com/angelmondragon/payflow-backend/internal/orders"
	"github.com/angelmondragon/payflow-backend/internal/sweeper"
	"github.com/angelmondragon/payflow-backend/pkg/config"
	"github.com/angelmondragon/payflow-backend/pkg/db"
	"github.com/angelmondragon/payflow-backend/pkg/instance"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
	"github.com/angelmondragon/payflow-backend/pkg/metrics"
	"github.com/angelmondragon/payflow-backend/pkg/migrate"
	"github.com/angelmondragon/payflow-backend/pkg/mpesa"
	"github.com/angelmondragon/payflow-backend/pkg/redis"
)

const serviceName = "cron-worker"

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

	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)
	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	gateway, err := mpesa.NewClient(cfg.Mpesa, mpesa.WithObserver(paymentMetrics.ObserveGateway))
	if err != nil {
		logg.Error(context.Background(), "failed to create mpesa client", err)
		os.Exit(1)
	}

	ledgerRepo := ledger.NewRepository(dbClient.DB())
	directory := contacts.NewDirectory(dbClient.DB())
	notificationRepo := notifications.NewRepository(dbClient.DB())
	notifier := notifications.NewNotifier(notificationRepo, directory, notifications.NewSMTPMailer(cfg.SMTP), logg)

	disbursementService, err := disbursements.NewService(
		dbClient,
		ledgerRepo,
		gateway,
		directory,
		commission.Default(),
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

	registry, err := buildRegistry(cfg, logg, disbursementSweeper, orderService, notificationRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron"), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithField(ctx, "jobs", registry.Names())
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(
	cfg *config.Config,
	logg *logger.Logger,
	disbursementSweeper sweeper.Sweeper,
	orderService orders.Service,
	notificationRepo notifications.Repository,
) (*cron.Registry, error) {
	sweepJob, err := cron.NewDisbursementSweepJob(cron.DisbursementJobParams{Logger: logg, Sweeper: disbursementSweeper})
	if err != nil {
		return nil, err
	}
	retryJob, err := cron.NewDisbursementRetryJob(cron.DisbursementJobParams{Logger: logg, Sweeper: disbursementSweeper})
	if err != nil {
		return nil, err
	}
	staleJob, err := cron.NewStaleOrdersJob(cron.StaleOrdersJobParams{
		Logger: logg,
		Orders: orderService,
		Window: cfg.Payments.StaleOrderWindow,
	})
	if err != nil {
		return nil, err
	}
	cleanupJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		Repository: notificationRepo,
		Retention:  cfg.Cron.NotificationRetention,
	})
	if err != nil {
		return nil, err
	}

	registry := cron.NewRegistry()
	for _, job := range []cron.Job{sweepJob, retryJob, staleJob, cleanupJob} {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
