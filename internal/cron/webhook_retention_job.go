package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/fitcheckhq/fitcheck-backend/pkg/logger"
)

const defaultWebhookRetention = 30 * 24 * time.Hour

type webhookRetentionRepo interface {
	DeleteWebhookDeliveriesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// WebhookRetentionJobParams configures the dedup record cleanup.
type WebhookRetentionJobParams struct {
	Logger    *logger.Logger
	Repo      webhookRetentionRepo
	Retention time.Duration
	Now       func() time.Time
}

// NewWebhookRetentionJob builds the job that purges webhook dedup records
// older than the retention window. Provider redeliveries never arrive that
// late, so the rows are dead weight.
func NewWebhookRetentionJob(params WebhookRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("billing repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultWebhookRetention
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &webhookRetentionJob{
		logg:      params.Logger,
		repo:      params.Repo,
		retention: retention,
		now:       now,
	}, nil
}

type webhookRetentionJob struct {
	logg      *logger.Logger
	repo      webhookRetentionRepo
	retention time.Duration
	now       func() time.Time
}

func (j *webhookRetentionJob) Name() string { return "webhook-retention" }

func (j *webhookRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.repo.DeleteWebhookDeliveriesBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("webhook retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "webhook retention cleanup complete")
	return nil
}
