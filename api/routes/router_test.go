package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	billingwebhook "github.com/fitcheckhq/fitcheck-backend/internal/webhooks/billing"
	"github.com/fitcheckhq/fitcheck-backend/pkg/config"
	"github.com/fitcheckhq/fitcheck-backend/pkg/db/models"
	"github.com/fitcheckhq/fitcheck-backend/pkg/enums"
	"github.com/fitcheckhq/fitcheck-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubReconciler struct{}

func (stubReconciler) SyncFromProvider(ctx context.Context, tenantID string, forceUpdate bool) (*models.TenantSubscription, error) {
	return stubRecord(tenantID), nil
}

type stubUsage struct{}

func (stubUsage) RecordTryOn(ctx context.Context, tenantID string) (*models.TenantSubscription, error) {
	return stubRecord(tenantID), nil
}

func (stubUsage) MaybeResetCycle(ctx context.Context, tenantID string) (*models.TenantSubscription, error) {
	return stubRecord(tenantID), nil
}

type stubPlans struct{}

func (stubPlans) ListPlans(ctx context.Context) ([]models.BillingPlan, error) {
	return []models.BillingPlan{}, nil
}

type stubWebhooks struct{}

func (stubWebhooks) HandleEvent(ctx context.Context, event *billingwebhook.Event) error {
	return nil
}

func stubRecord(tenantID string) *models.TenantSubscription {
	return &models.TenantSubscription{
		TenantID:       tenantID,
		PlanName:       "Free Plan",
		Status:         enums.SubscriptionStatusActive,
		UsageLimit:     2,
		CycleStartDate: time.Now().UTC(),
	}
}

func newTestRouter() http.Handler {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.Webhook.SigningSecret = "whsec_test"
	return NewRouter(RouterParams{
		Config:         cfg,
		Logger:         logger.New(logger.Options{ServiceName: "test"}),
		DBPinger:       stubPinger{},
		RedisPinger:    stubPinger{},
		Reconciler:     stubReconciler{},
		CycleManager:   stubUsage{},
		UsageService:   stubUsage{},
		PlanService:    stubPlans{},
		WebhookService: stubWebhooks{},
	})
}

func TestRouterRoutes(t *testing.T) {
	router := newTestRouter()

	cases := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health/live", http.StatusOK},
		{http.MethodGet, "/health/ready", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/v1/billing/subscription?tenant=shop-a", http.StatusOK},
		{http.MethodGet, "/api/v1/billing/plans", http.StatusOK},
		{http.MethodGet, "/api/v1/usage?tenant=shop-a", http.StatusOK},
		{http.MethodGet, "/api/v1/does-not-exist", http.StatusNotFound},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("%s %s: expected %d, got %d (%s)", tc.method, tc.path, tc.want, w.Code, w.Body.String())
		}
	}
}

func TestRouterWebhookRequiresSignature(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/billing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unsigned webhook, got %d", w.Code)
	}
}

func TestRouterSetsRequestID(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected a generated request id header")
	}
}
