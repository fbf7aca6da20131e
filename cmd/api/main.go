package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fitcheckhq/fitcheck-backend/api/routes"
	"github.com/fitcheckhq/fitcheck-backend/internal/billing"
	"github.com/fitcheckhq/fitcheck-backend/internal/plans"
	"github.com/fitcheckhq/fitcheck-backend/internal/subscriptions"
	"github.com/fitcheckhq/fitcheck-backend/internal/usage"
	billingwebhook "github.com/fitcheckhq/fitcheck-backend/internal/webhooks/billing"
	"github.com/fitcheckhq/fitcheck-backend/pkg/billingprovider"
	"github.com/fitcheckhq/fitcheck-backend/pkg/config"
	"github.com/fitcheckhq/fitcheck-backend/pkg/db"
	"github.com/fitcheckhq/fitcheck-backend/pkg/instance"
	"github.com/fitcheckhq/fitcheck-backend/pkg/logger"
	"github.com/fitcheckhq/fitcheck-backend/pkg/metrics"
	"github.com/fitcheckhq/fitcheck-backend/pkg/migrate"
	"github.com/fitcheckhq/fitcheck-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
	catalog := plans.NewCatalog()
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
		Catalog: catalog,
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

	usageService, err := usage.NewService(usage.ServiceParams{
		Logger:      logg,
		Store:       repo,
		Catalog:     catalog,
		CycleLength: cfg.Usage.CycleLength,
		Metrics:     reconcileMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create usage service", err)
		os.Exit(1)
	}

	billingService, err := billing.NewService(billing.ServiceParams{Repo: repo})
	if err != nil {
		logg.Error(context.Background(), "failed to create billing service", err)
		os.Exit(1)
	}

	webhookGuard, err := billingwebhook.NewGuard(billingwebhook.GuardParams{
		Logger:  logg,
		Store:   repo,
		Metrics: reconcileMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	webhookService, err := billingwebhook.NewService(billingwebhook.ServiceParams{
		Logger:     logg,
		Guard:      webhookGuard,
		Reconciler: reconciler,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:         cfg,
			Logger:         logg,
			DBPinger:       dbClient,
			RedisPinger:    redisClient,
			Reconciler:     reconciler,
			CycleManager:   usageService,
			UsageService:   usageService,
			PlanService:    billingService,
			WebhookService: webhookService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
