package billingwebhook

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fitcheckhq/fitcheck-backend/pkg/db"
	"github.com/fitcheckhq/fitcheck-backend/pkg/db/models"
	pkgerrors "github.com/fitcheckhq/fitcheck-backend/pkg/errors"
	"github.com/fitcheckhq/fitcheck-backend/pkg/logger"
	"github.com/fitcheckhq/fitcheck-backend/pkg/metrics"
)

// AdmitResult is the outcome of a dedup check.
type AdmitResult string

const (
	AdmitResultAdmitted         AdmitResult = "admitted"
	AdmitResultAlreadyProcessed AdmitResult = "already_processed"
)

type guardStore interface {
	CreateWebhookDelivery(ctx context.Context, delivery *models.WebhookDelivery) error
	DeleteWebhookDelivery(ctx context.Context, webhookID string) error
}

// GuardParams configures the idempotency guard.
type GuardParams struct {
	Logger  *logger.Logger
	Store   guardStore
	Metrics *metrics.ReconcileMetrics
	Now     func() time.Time
}

// Guard deduplicates webhook deliveries through a durable insert. The unique
// index on webhook_id is the arbiter: the first insert wins, concurrent
// losers see a unique violation and are told the delivery was already
// processed.
type Guard struct {
	logg    *logger.Logger
	store   guardStore
	metrics *metrics.ReconcileMetrics
	now     func() time.Time
}

// NewGuard builds the guard.
func NewGuard(params GuardParams) (*Guard, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "store required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Guard{
		logg:    params.Logger,
		store:   params.Store,
		metrics: params.Metrics,
		now:     now,
	}, nil
}

// Admit records the delivery before any side-effecting work starts. If the
// record already exists the delivery is a duplicate. If the store itself is
// unavailable the guard fails open: duplicate processing is preferable to
// silently dropping a legitimate webhook, and downstream reconciliation is
// idempotent.
func (g *Guard) Admit(ctx context.Context, webhookID, topic, tenantID string) (AdmitResult, error) {
	if webhookID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "webhook id is required")
	}

	delivery := &models.WebhookDelivery{
		ID:         uuid.New(),
		WebhookID:  webhookID,
		Topic:      topic,
		TenantID:   tenantID,
		ReceivedAt: g.now().UTC(),
	}

	err := g.store.CreateWebhookDelivery(ctx, delivery)
	if err == nil {
		return AdmitResultAdmitted, nil
	}
	if db.IsUniqueViolation(err) {
		g.metrics.IncWebhookDuplicate()
		logCtx := g.logg.WithWebhookID(ctx, webhookID)
		g.logg.Info(logCtx, "duplicate webhook delivery skipped")
		return AdmitResultAlreadyProcessed, nil
	}

	logCtx := g.logg.WithWebhookID(ctx, webhookID)
	g.logg.Warn(logCtx, "webhook dedup store unavailable; admitting delivery")
	return AdmitResultAdmitted, nil
}

// Forget removes the dedup record so a provider redelivery can be processed
// after a handler failure.
func (g *Guard) Forget(ctx context.Context, webhookID string) error {
	if webhookID == "" {
		return nil
	}
	return g.store.DeleteWebhookDelivery(ctx, webhookID)
}
