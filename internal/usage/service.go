package usage

import (
	"context"
	"time"

	"github.com/fitcheckhq/fitcheck-backend/internal/plans"
	"github.com/fitcheckhq/fitcheck-backend/pkg/db/models"
	"github.com/fitcheckhq/fitcheck-backend/pkg/enums"
	pkgerrors "github.com/fitcheckhq/fitcheck-backend/pkg/errors"
	"github.com/fitcheckhq/fitcheck-backend/pkg/logger"
	"github.com/fitcheckhq/fitcheck-backend/pkg/metrics"
)

const defaultCycleLength = 30 * 24 * time.Hour

// Store is the persistence surface the usage manager needs. The billing
// repository satisfies it.
type Store interface {
	FindSubscription(ctx context.Context, tenantID string) (*models.TenantSubscription, error)
	UpsertSubscription(ctx context.Context, subscription *models.TenantSubscription) error
	IncrementUsage(ctx context.Context, tenantID string) (bool, error)
	ResetUsageCycle(ctx context.Context, tenantID string, cycleStart time.Time) error
}

// ServiceParams groups dependencies for the usage service.
type ServiceParams struct {
	Logger      *logger.Logger
	Store       Store
	Catalog     *plans.Catalog
	CycleLength time.Duration
	Metrics     *metrics.ReconcileMetrics
	Now         func() time.Time
}

// Service owns the rolling usage window and the try-on counter. The quota
// counter resets on cycle rollover regardless of subscription status; free
// and cancelled tenants refill monthly too.
type Service struct {
	logg        *logger.Logger
	store       Store
	catalog     *plans.Catalog
	cycleLength time.Duration
	metrics     *metrics.ReconcileMetrics
	now         func() time.Time
}

// NewService builds the usage service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "store required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plan catalog required")
	}
	cycleLength := params.CycleLength
	if cycleLength <= 0 {
		cycleLength = defaultCycleLength
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:        params.Logger,
		store:       params.Store,
		catalog:     params.Catalog,
		cycleLength: cycleLength,
		metrics:     params.Metrics,
		now:         now,
	}, nil
}

// MaybeResetCycle rolls the usage window forward when a full cycle has
// elapsed. Idempotent: within one elapsed window at most one reset happens,
// guarded by the same elapsed-time check.
func (s *Service) MaybeResetCycle(ctx context.Context, tenantID string) (*models.TenantSubscription, error) {
	if tenantID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	now := s.now().UTC()

	record, err := s.store.FindSubscription(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading subscription")
	}
	if record == nil {
		record = s.defaultRecord(tenantID, now)
		if err := s.store.UpsertSubscription(ctx, record); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating subscription")
		}
		return record, nil
	}

	if now.Sub(record.CycleStartDate) < s.cycleLength {
		return record, nil
	}

	if err := s.store.ResetUsageCycle(ctx, tenantID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resetting usage cycle")
	}
	record.CurrentUsage = 0
	record.CycleStartDate = now
	s.metrics.IncCycleReset()

	logCtx := s.logg.WithTenantID(ctx, tenantID)
	s.logg.Info(logCtx, "usage cycle rolled over")
	return record, nil
}

// RecordTryOn consumes one unit of quota for the tenant. Returns the updated
// record, or a quota error when the cycle's allowance is exhausted.
func (s *Service) RecordTryOn(ctx context.Context, tenantID string) (*models.TenantSubscription, error) {
	record, err := s.MaybeResetCycle(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	ok, err := s.store.IncrementUsage(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "incrementing usage")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeQuotaExceeded, "try-on quota exhausted for the current cycle").
			WithDetails(map[string]any{
				"plan":  record.PlanName,
				"limit": record.UsageLimit,
			})
	}
	record.CurrentUsage++
	return record, nil
}

func (s *Service) defaultRecord(tenantID string, now time.Time) *models.TenantSubscription {
	free := s.catalog.FreePlan()
	return &models.TenantSubscription{
		TenantID:       tenantID,
		PlanName:       free.Name,
		Status:         enums.SubscriptionStatusActive,
		UsageLimit:     free.Limit,
		CurrentUsage:   0,
		CycleStartDate: now,
		LastSyncTime:   now,
	}
}
