package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/fitcheckhq/fitcheck-backend/pkg/db/models"
	"github.com/fitcheckhq/fitcheck-backend/pkg/logger"
)

const (
	defaultSweepLimit    = 250
	defaultSweepLookback = 7 * 24 * time.Hour
)

type sweepRepository interface {
	ListSubscriptionsForReconciliation(ctx context.Context, limit int, lookback time.Duration) ([]models.TenantSubscription, error)
}

type providerSyncer interface {
	SyncFromProvider(ctx context.Context, tenantID string, forceUpdate bool) (*models.TenantSubscription, error)
}

// SubscriptionSweepJobParams configures the periodic subscription sweep.
type SubscriptionSweepJobParams struct {
	Logger     *logger.Logger
	Repo       sweepRepository
	Reconciler providerSyncer
	Limit      int
	Lookback   time.Duration
}

// NewSubscriptionSweepJob builds the job that re-reconciles recently active
// tenants against the provider, catching drift that no webhook or page load
// reported.
func NewSubscriptionSweepJob(params SubscriptionSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("billing repository required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = defaultSweepLookback
	}
	return &subscriptionSweepJob{
		logg:       params.Logger,
		repo:       params.Repo,
		reconciler: params.Reconciler,
		limit:      limit,
		lookback:   lookback,
	}, nil
}

type subscriptionSweepJob struct {
	logg       *logger.Logger
	repo       sweepRepository
	reconciler providerSyncer
	limit      int
	lookback   time.Duration
}

func (j *subscriptionSweepJob) Name() string { return "subscription-sweep" }

func (j *subscriptionSweepJob) Run(ctx context.Context) error {
	candidates, err := j.repo.ListSubscriptionsForReconciliation(ctx, j.limit, j.lookback)
	if err != nil {
		return fmt.Errorf("list subscriptions for sweep: %w", err)
	}

	var errs error
	synced := 0
	for i := range candidates {
		tenantID := candidates[i].TenantID
		if _, err := j.reconciler.SyncFromProvider(ctx, tenantID, false); err != nil {
			logCtx := j.logg.WithTenantID(ctx, tenantID)
			j.logg.Error(logCtx, "sweep sync failed", err)
			errs = multierr.Append(errs, fmt.Errorf("tenant %s: %w", tenantID, err))
			continue
		}
		synced++
	}

	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(candidates),
		"synced":     synced,
	})
	j.logg.Info(reportCtx, "subscription sweep complete")
	return errs
}
