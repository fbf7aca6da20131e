package subscriptions

import (
	"context"
	"time"

	"github.com/fitcheckhq/fitcheck-backend/internal/plans"
	"github.com/fitcheckhq/fitcheck-backend/pkg/billingprovider"
	"github.com/fitcheckhq/fitcheck-backend/pkg/db/models"
	"github.com/fitcheckhq/fitcheck-backend/pkg/enums"
	pkgerrors "github.com/fitcheckhq/fitcheck-backend/pkg/errors"
	"github.com/fitcheckhq/fitcheck-backend/pkg/logger"
	"github.com/fitcheckhq/fitcheck-backend/pkg/metrics"
)

const (
	defaultCycleEndTolerance = 60 * time.Second
	defaultSyncTouchInterval = time.Hour
)

// Store is the persistence surface the reconciler needs. The billing
// repository satisfies it.
type Store interface {
	FindSubscription(ctx context.Context, tenantID string) (*models.TenantSubscription, error)
	UpsertSubscription(ctx context.Context, subscription *models.TenantSubscription) error
	TouchLastSync(ctx context.Context, tenantID string, at time.Time) error
}

// Source queries the billing provider for the tenant's current subscription.
type Source interface {
	FetchCurrentSubscription(ctx context.Context, tenantID string) (*billingprovider.Snapshot, error)
}

// Policy controls reconciliation behavior that is environment policy rather
// than core logic. AllowLocalOverride keeps a locally provisioned paid plan
// in place when the provider cannot see it (manually granted test
// subscriptions); production deployments leave it off so provider state
// always wins.
type Policy struct {
	AllowLocalOverride bool
}

// Options tunes drift detection thresholds.
type Options struct {
	// CycleEndTolerance absorbs clock/precision noise in the provider's
	// period-end timestamps before a difference counts as drift.
	CycleEndTolerance time.Duration
	// SyncTouchInterval bounds how often a drift-free sync refreshes
	// last_sync_time, so frequent no-op calls do not amplify writes.
	SyncTouchInterval time.Duration
}

// ServiceParams groups dependencies for the reconciler.
type ServiceParams struct {
	Logger  *logger.Logger
	Store   Store
	Source  Source
	Catalog *plans.Catalog
	Policy  Policy
	Options Options
	Metrics *metrics.ReconcileMetrics
	Now     func() time.Time
}

// Service reconciles locally stored subscription state against the billing
// provider's view.
type Service struct {
	logg      *logger.Logger
	store     Store
	source    Source
	catalog   *plans.Catalog
	policy    Policy
	tolerance time.Duration
	touch     time.Duration
	metrics   *metrics.ReconcileMetrics
	now       func() time.Time
}

// NewService builds the reconciler.
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
	tolerance := params.Options.CycleEndTolerance
	if tolerance <= 0 {
		tolerance = defaultCycleEndTolerance
	}
	touch := params.Options.SyncTouchInterval
	if touch <= 0 {
		touch = defaultSyncTouchInterval
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:      params.Logger,
		store:     params.Store,
		source:    params.Source,
		catalog:   params.Catalog,
		policy:    params.Policy,
		tolerance: tolerance,
		touch:     touch,
		metrics:   params.Metrics,
		now:       now,
	}, nil
}

// SyncFromProvider fetches the current snapshot and reconciles with it.
// Fetch failures degrade to a nil snapshot: an unreachable provider must
// never be read as evidence of cancellation.
func (s *Service) SyncFromProvider(ctx context.Context, tenantID string, forceUpdate bool) (*models.TenantSubscription, error) {
	var snapshot *billingprovider.Snapshot
	if s.source != nil {
		fetched, err := s.source.FetchCurrentSubscription(ctx, tenantID)
		if err != nil {
			logCtx := s.logg.WithTenantID(ctx, tenantID)
			s.logg.Warn(logCtx, "provider snapshot fetch failed; reconciling without snapshot")
		} else {
			snapshot = fetched
		}
	}
	return s.Sync(ctx, tenantID, snapshot, forceUpdate)
}

// Sync reconciles the stored record for tenantID against the provided
// snapshot. A nil snapshot means "provider state unknown" and never causes a
// downgrade. The returned record reflects the state after reconciliation.
func (s *Service) Sync(ctx context.Context, tenantID string, snapshot *billingprovider.Snapshot, forceUpdate bool) (*models.TenantSubscription, error) {
	if tenantID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	now := s.now().UTC()
	logCtx := s.logg.WithTenantID(ctx, tenantID)

	record, err := s.store.FindSubscription(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading subscription")
	}
	missing := record == nil
	if missing {
		record = s.defaultRecord(tenantID, now)
	}

	localStatus, known := localStatusFrom(snapshot)
	if !known {
		// No usable snapshot. Lazily create the record if this is the first
		// observation; otherwise only touch last_sync_time when due.
		if missing {
			record.LastSyncTime = now
			if err := s.store.UpsertSubscription(ctx, record); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating subscription")
			}
			s.metrics.IncSync("created")
			s.logg.Info(logCtx, "subscription created with free tier defaults")
			return record, nil
		}
		if now.Sub(record.LastSyncTime) > s.touch {
			record.LastSyncTime = now
			if err := s.store.TouchLastSync(ctx, tenantID, now); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "touching last sync time")
			}
		}
		s.metrics.IncSync("noop")
		return record, nil
	}

	// Local override guard: a locally provisioned paid plan survives a
	// provider that reports anything but ACTIVE.
	if s.policy.AllowLocalOverride && !missing &&
		record.Status == enums.SubscriptionStatusActive &&
		record.PlanName != plans.FreePlanName &&
		localStatus != enums.SubscriptionStatusActive {
		record.LastSyncTime = now
		if err := s.store.TouchLastSync(ctx, tenantID, now); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "touching last sync time")
		}
		s.metrics.IncSync("override")
		s.logg.Info(logCtx, "local override active; keeping paid plan despite provider status")
		return record, nil
	}

	expected := s.expectedState(record, snapshot, localStatus)
	drift := missing || forceUpdate || s.hasDrift(record, expected)
	if !drift {
		if now.Sub(record.LastSyncTime) > s.touch {
			record.LastSyncTime = now
			if err := s.store.TouchLastSync(ctx, tenantID, now); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "touching last sync time")
			}
		}
		s.metrics.IncSync("noop")
		return record, nil
	}

	if !missing && !forceUpdate {
		s.metrics.IncDrift()
	}

	record.PlanName = expected.planName
	record.Status = expected.status
	record.UsageLimit = expected.usageLimit
	record.CycleEndDate = expected.cycleEnd
	record.LastSyncTime = now
	if err := s.store.UpsertSubscription(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting subscription")
	}

	outcome := "updated"
	if missing {
		outcome = "created"
	}
	s.metrics.IncSync(outcome)
	resultCtx := s.logg.WithFields(logCtx, map[string]any{
		"plan":   record.PlanName,
		"status": record.Status.String(),
	})
	s.logg.Info(resultCtx, "subscription reconciled")
	return record, nil
}

type expectedState struct {
	planName   string
	status     enums.SubscriptionStatus
	usageLimit int
	cycleEnd   *time.Time
}

func (s *Service) expectedState(record *models.TenantSubscription, snapshot *billingprovider.Snapshot, localStatus enums.SubscriptionStatus) expectedState {
	switch localStatus {
	case enums.SubscriptionStatusActive:
		plan := s.catalog.Resolve(snapshot.PlanName)
		cycleEnd := record.CycleEndDate
		if snapshot.CurrentPeriodEnd != nil {
			end := snapshot.CurrentPeriodEnd.UTC()
			cycleEnd = &end
		}
		return expectedState{
			planName:   plan.Name,
			status:     enums.SubscriptionStatusActive,
			usageLimit: plan.Limit,
			cycleEnd:   cycleEnd,
		}
	case enums.SubscriptionStatusCancelled:
		free := s.catalog.FreePlan()
		return expectedState{
			planName:   free.Name,
			status:     enums.SubscriptionStatusCancelled,
			usageLimit: free.Limit,
			cycleEnd:   nil,
		}
	default:
		// Frozen keeps the prior plan, limit and cycle end untouched.
		return expectedState{
			planName:   record.PlanName,
			status:     enums.SubscriptionStatusFrozen,
			usageLimit: record.UsageLimit,
			cycleEnd:   record.CycleEndDate,
		}
	}
}

func (s *Service) hasDrift(record *models.TenantSubscription, expected expectedState) bool {
	if record.PlanName != expected.planName {
		return true
	}
	if record.Status != expected.status {
		return true
	}
	if record.UsageLimit != expected.usageLimit {
		return true
	}
	return cycleEndsDiffer(record.CycleEndDate, expected.cycleEnd, s.tolerance)
}

func cycleEndsDiffer(stored, expected *time.Time, tolerance time.Duration) bool {
	if stored == nil && expected == nil {
		return false
	}
	if stored == nil || expected == nil {
		return true
	}
	delta := stored.Sub(*expected)
	if delta < 0 {
		delta = -delta
	}
	return delta > tolerance
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

func localStatusFrom(snapshot *billingprovider.Snapshot) (enums.SubscriptionStatus, bool) {
	if snapshot == nil {
		return "", false
	}
	return snapshot.Status.Local()
}
