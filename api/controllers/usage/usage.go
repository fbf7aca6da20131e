package usage

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

// Service covers the quota operations the HTTP layer exposes.
type Service interface {
	RecordTryOn(ctx context.Context, tenantID string) (*models.TenantSubscription, error)
	MaybeResetCycle(ctx context.Context, tenantID string) (*models.TenantSubscription, error)
}

type usageResponse struct {
	TenantID       string     `json:"tenant_id"`
	PlanName       string     `json:"plan_name"`
	UsageLimit     int        `json:"usage_limit"`
	CurrentUsage   int        `json:"current_usage"`
	RemainingQuota int        `json:"remaining_quota"`
	CycleStartDate time.Time  `json:"cycle_start_date"`
	CycleEndDate   *time.Time `json:"cycle_end_date,omitempty"`
}

type recordTryOnRequest struct {
	TenantID string `json:"tenant_id" validate:"required"`
}

// RecordTryOn consumes one try-on credit. A 402 response means the cycle's
// quota is exhausted.
func RecordTryOn(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "usage service unavailable"))
			return
		}

		var payload recordTryOnRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		record, err := svc.RecordTryOn(ctx, payload.TenantID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, newUsageResponse(record))
	}
}

// UsageFetch reports the tenant's current window, rolling it first if lapsed.
func UsageFetch(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "usage service unavailable"))
			return
		}

		tenantID, err := tenantcontext.ResolveTenantID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		record, err := svc.MaybeResetCycle(ctx, tenantID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, newUsageResponse(record))
	}
}

func newUsageResponse(record *models.TenantSubscription) *usageResponse {
	if record == nil {
		return nil
	}
	return &usageResponse{
		TenantID:       record.TenantID,
		PlanName:       record.PlanName,
		UsageLimit:     record.UsageLimit,
		CurrentUsage:   record.CurrentUsage,
		RemainingQuota: record.RemainingQuota(),
		CycleStartDate: record.CycleStartDate,
		CycleEndDate:   record.CycleEndDate,
	}
}
