package billing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/fitcheckhq/fitcheck-backend/pkg/db/models"
	"github.com/fitcheckhq/fitcheck-backend/pkg/enums"
	"github.com/fitcheckhq/fitcheck-backend/pkg/logger"
	"github.com/fitcheckhq/fitcheck-backend/pkg/types"
)

type stubPlanService struct {
	plans []models.BillingPlan
	err   error
}

func (s *stubPlanService) ListPlans(ctx context.Context) ([]models.BillingPlan, error) {
	return s.plans, s.err
}

func TestPlansList(t *testing.T) {
	svc := &stubPlanService{plans: []models.BillingPlan{
		{
			Tier:         enums.PlanTierFree,
			Name:         "Free Plan",
			MonthlyLimit: 2,
			PriceAmount:  decimal.Zero,
			CurrencyCode: "USD",
			Features:     pq.StringArray{"2 try-ons per month"},
			IsDefault:    true,
		},
		{
			Tier:         enums.PlanTierProfessional,
			Name:         "Professional Plan",
			MonthlyLimit: 500,
			PriceAmount:  decimal.NewFromInt(29),
			CurrencyCode: "USD",
		},
	}}
	logg := logger.New(logger.Options{ServiceName: "test"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/plans", nil)
	w := httptest.NewRecorder()
	PlansList(svc, logg)(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	plans := body.Data.(map[string]any)["plans"].([]any)
	if len(plans) != 2 {
		t.Fatalf("expected 2 plans, got %d", len(plans))
	}
	first := plans[0].(map[string]any)
	if first["price_amount"] != "0.00" {
		t.Fatalf("expected fixed-point price, got %v", first["price_amount"])
	}
	if first["is_default"] != true {
		t.Fatalf("free plan must be the default")
	}
}

func TestPlansListServiceFailure(t *testing.T) {
	svc := &stubPlanService{err: errors.New("db down")}
	logg := logger.New(logger.Options{ServiceName: "test"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/plans", nil)
	w := httptest.NewRecorder()
	PlansList(svc, logg)(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}
