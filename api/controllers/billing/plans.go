package billing

import (
	"context"
	"net/http"

	"github.com/fitcheckhq/fitcheck-backend/api/responses"
	"github.com/fitcheckhq/fitcheck-backend/pkg/db/models"
	pkgerrors "github.com/fitcheckhq/fitcheck-backend/pkg/errors"
	"github.com/fitcheckhq/fitcheck-backend/pkg/logger"
)

// PlanService lists the billing plan catalog.
type PlanService interface {
	ListPlans(ctx context.Context) ([]models.BillingPlan, error)
}

type planResponse struct {
	Tier         string   `json:"tier"`
	Name         string   `json:"name"`
	MonthlyLimit int      `json:"monthly_limit"`
	PriceAmount  string   `json:"price_amount"`
	CurrencyCode string   `json:"currency_code"`
	Features     []string `json:"features"`
	IsDefault    bool     `json:"is_default"`
}

type planListResponse struct {
	Plans []planResponse `json:"plans"`
}

func PlansList(svc PlanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		plans, err := svc.ListPlans(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		out := planListResponse{Plans: make([]planResponse, 0, len(plans))}
		for i := range plans {
			out.Plans = append(out.Plans, newPlanResponse(&plans[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

func newPlanResponse(plan *models.BillingPlan) planResponse {
	return planResponse{
		Tier:         string(plan.Tier),
		Name:         plan.Name,
		MonthlyLimit: plan.MonthlyLimit,
		PriceAmount:  plan.PriceAmount.StringFixed(2),
		CurrencyCode: plan.CurrencyCode,
		Features:     plan.Features,
		IsDefault:    plan.IsDefault,
	}
}
