package billing

import (
	"context"
	"net/http"
	"time"

	"github.com/fitcheckhq/fitcheck-backend/api/controllers/tenantcontext"
	"github.com/fitcheckhq/fitcheck-backend/api/responses"
	"github.com/fitcheckhq/fitcheck-backend/api/validators"
	"github.com/fitcheckhq/fitcheck-backend/pkg/db/models"
	pkgerrors "github.com/fitcheckhq/fitcheck-backend/pkg/errors"
	"github.com/fitcheckhq/fitcheck-backend/pkg/logger"
)

// Reconciler reconciles the local record against the billing provider.
type Reconciler interface {
	SyncFromProvider(ctx context.Context, tenantID string, forceUpdate bool) (*models.TenantSubscription, error)
}

// CycleManager rolls the usage cycle forward when it has lapsed.
type CycleManager interface {
	MaybeResetCycle(ctx context.Context, tenantID string) (*models.TenantSubscription, error)
}

type subscriptionResponse struct {
	TenantID       string     `json:"tenant_id"`
	PlanName       string     `json:"plan_name"`
	Status         string     `json:"status"`
	UsageLimit     int        `json:"usage_limit"`
	CurrentUsage   int        `json:"current_usage"`
	RemainingQuota int        `json:"remaining_quota"`
	CycleStartDate time.Time  `json:"cycle_start_date"`
	CycleEndDate   *time.Time `json:"cycle_end_date,omitempty"`
	LastSyncTime   time.Time  `json:"last_sync_time"`
}

type subscriptionSyncRequest struct {
	TenantID string `json:"tenant_id" validate:"required"`
}

// SubscriptionFetch serves the dashboard loader path: reconcile against the
// provider, roll the cycle if needed, return the effective record.
func SubscriptionFetch(reconciler Reconciler, cycles CycleManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if reconciler == nil || cycles == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		tenantID, err := tenantcontext.ResolveTenantID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if _, err := reconciler.SyncFromProvider(ctx, tenantID, false); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		record, err := cycles.MaybeResetCycle(ctx, tenantID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSubscriptionResponse(record))
	}
}

// SubscriptionSync forces a reconciliation regardless of drift thresholds.
func SubscriptionSync(reconciler Reconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if reconciler == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		var payload subscriptionSyncRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		record, err := reconciler.SyncFromProvider(ctx, payload.TenantID, true)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSubscriptionResponse(record))
	}
}

func newSubscriptionResponse(record *models.TenantSubscription) *subscriptionResponse {
	if record == nil {
		return nil
	}
	return &subscriptionResponse{
		TenantID:       record.TenantID,
		PlanName:       record.PlanName,
		Status:         string(record.Status),
		UsageLimit:     record.UsageLimit,
		CurrentUsage:   record.CurrentUsage,
		RemainingQuota: record.RemainingQuota(),
		CycleStartDate: record.CycleStartDate,
		CycleEndDate:   record.CycleEndDate,
		LastSyncTime:   record.LastSyncTime,
	}
}
