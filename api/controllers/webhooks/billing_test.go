package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	billingwebhook "github.com/fitcheckhq/fitcheck-backend/internal/webhooks/billing"
	pkgerrors "github.com/fitcheckhq/fitcheck-backend/pkg/errors"
	"github.com/fitcheckhq/fitcheck-backend/pkg/logger"
)

const testSecret = "whsec_test"

type stubWebhookService struct {
	events []*billingwebhook.Event
	err    error
}

func (s *stubWebhookService) HandleEvent(ctx context.Context, event *billingwebhook.Event) error {
	s.events = append(s.events, event)
	return s.err
}

func sign(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestBillingWebhookVerifiedEventIsHandled(t *testing.T) {
	svc := &stubWebhookService{}
	logg := logger.New(logger.Options{ServiceName: "test"})
	payload := `{"webhookId":"wh-1","topic":"subscriptions/update","tenantId":"shop-a","subscription":{"status":"ACTIVE","planName":"Professional Plan"}}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/billing", strings.NewReader(payload))
	req.Header.Set("X-FitCheck-Hmac-Sha256", sign(payload, testSecret))
	w := httptest.NewRecorder()
	BillingWebhook(svc, testSecret, logg)(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(svc.events) != 1 {
		t.Fatalf("expected one handled event, got %d", len(svc.events))
	}
	event := svc.events[0]
	if event.WebhookID != "wh-1" || event.TenantID != "shop-a" {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.Subscription == nil || event.Subscription.PlanName != "Professional Plan" {
		t.Fatalf("subscription payload lost: %+v", event.Subscription)
	}
}

func TestBillingWebhookFallsBackToHeaders(t *testing.T) {
	svc := &stubWebhookService{}
	logg := logger.New(logger.Options{ServiceName: "test"})
	payload := `{"subscription":{"status":"CANCELLED"}}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/billing", strings.NewReader(payload))
	req.Header.Set("X-FitCheck-Hmac-Sha256", sign(payload, testSecret))
	req.Header.Set("X-FitCheck-Webhook-Id", "wh-2")
	req.Header.Set("X-FitCheck-Topic", "subscriptions/cancel")
	req.Header.Set("X-FitCheck-Tenant-Id", "shop-b")
	w := httptest.NewRecorder()
	BillingWebhook(svc, testSecret, logg)(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(svc.events) != 1 {
		t.Fatalf("expected one handled event, got %d", len(svc.events))
	}
	event := svc.events[0]
	if event.WebhookID != "wh-2" || event.Topic != "subscriptions/cancel" || event.TenantID != "shop-b" {
		t.Fatalf("header fallback failed: %+v", event)
	}
}

func TestBillingWebhookRejectsBadSignature(t *testing.T) {
	svc := &stubWebhookService{}
	logg := logger.New(logger.Options{ServiceName: "test"})
	payload := `{"webhookId":"wh-3","topic":"subscriptions/update","tenantId":"shop-a"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/billing", strings.NewReader(payload))
	req.Header.Set("X-FitCheck-Hmac-Sha256", sign(payload, "wrong-secret"))
	w := httptest.NewRecorder()
	BillingWebhook(svc, testSecret, logg)(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if len(svc.events) != 0 {
		t.Fatalf("unverified events must not reach the service")
	}
}

func TestBillingWebhookRejectsMissingSignature(t *testing.T) {
	svc := &stubWebhookService{}
	logg := logger.New(logger.Options{ServiceName: "test"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/billing", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	BillingWebhook(svc, testSecret, logg)(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestBillingWebhookServiceErrorPropagates(t *testing.T) {
	svc := &stubWebhookService{err: pkgerrors.New(pkgerrors.CodeInternal, "reconcile failed")}
	logg := logger.New(logger.Options{ServiceName: "test"})
	payload := `{"webhookId":"wh-4","topic":"subscriptions/update","tenantId":"shop-a"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/billing", strings.NewReader(payload))
	req.Header.Set("X-FitCheck-Hmac-Sha256", sign(payload, testSecret))
	w := httptest.NewRecorder()
	BillingWebhook(svc, testSecret, logg)(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 so the provider redelivers, got %d", w.Code)
	}
}
