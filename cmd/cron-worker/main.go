package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fitcheckhq/fitcheck-backend/internal/billing"
	"github.com/fitcheckhq/fitcheck-backend/internal/cron"
	"github.com/fitcheckhq/fitcheck-backend/internal/plans"
	"github.com/fitcheckhq/fitcheck-backend/internal/subscriptions"
	"github.com/fitcheckhq/fitcheck-backend/pkg/billingprovider"
	"github.com/fitcheckhq/fitcheck-backend/pkg/config"
	"github.com/fitcheckhq/fitcheck-backend/pkg/db"
	"github.com/fitcheckhq/fitcheck-backend/pkg/logger"
	"github.com/fitcheckhq/fitcheck-backend/pkg/metrics"
	"github.com/fitcheckhq/fitcheck-backend/pkg/migrate"
	"github.com/fitcheckhq/fitcheck-backend/pkg/redis"
)

const lockKeyFormat = "cron-worker:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
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

	repo := billing.NewRepository(dbClient.DB())
	reconcileMetrics := metrics.NewReconcileMetrics(prometheus.DefaultRegisterer)

	providerClient, err := billingprovider.NewClient(cfg.Provider)
	if err != nil {
		logg.Error(context.Background(), "failed to create billing provider client", err)
		os.Exit(1)
	}

	reconciler, err := subscriptions.NewService(subscriptions.ServiceParams{
		Logger:  logg,
		Store:   repo,
		Source:  providerClient,
		Catalog: plans.NewCatalog(),
		Policy:  subscriptions.Policy{AllowLocalOverride: cfg.Reconcile.AllowLocalOverride},
		Options: subscriptions.Options{
			CycleEndTolerance: cfg.Reconcile.CycleEndTolerance,
			SyncTouchInterval: cfg.Reconcile.SyncTouchInterval,
		},
		Metrics: reconcileMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	sweepJob, err := cron.NewSubscriptionSweepJob(cron.SubscriptionSweepJobParams{
		Logger:     logg,
		Repo:       repo,
		Reconciler: reconciler,
		Limit:      cfg.Reconcile.SweepLimit,
		Lookback:   cfg.Reconcile.SweepLookback,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription sweep job", err)
		os.Exit(1)
	}

	retentionJob, err := cron.NewWebhookRetentionJob(cron.WebhookRetentionJobParams{
		Logger:    logg,
		Repo:      repo,
		Retention: cfg.Webhook.Retention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockKey(cfg.App.Env)), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(sweepJob, retentionJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
