package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/fitcheckhq/fitcheck-backend/api/responses"
	billingwebhook "github.com/fitcheckhq/fitcheck-backend/internal/webhooks/billing"
	pkgerrors "github.com/fitcheckhq/fitcheck-backend/pkg/errors"
	"github.com/fitcheckhq/fitcheck-backend/pkg/logger"
)

const (
	hmacHeader      = "X-FitCheck-Hmac-Sha256"
	webhookIDHeader = "X-FitCheck-Webhook-Id"
	topicHeader     = "X-FitCheck-Topic"
	tenantIDHeader  = "X-FitCheck-Tenant-Id"
)

// BillingWebhookService processes verified billing events.
type BillingWebhookService interface {
	HandleEvent(ctx context.Context, event *billingwebhook.Event) error
}

// BillingWebhook verifies the provider signature, decodes the envelope and
// hands the event to the webhook service. Dedup and redelivery release live
// in the service; transport concerns stay here.
func BillingWebhook(svc BillingWebhookService, signingSecret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if signingSecret == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook signing secret not configured"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := strings.TrimSpace(r.Header.Get(hmacHeader))
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature missing"))
			return
		}
		if !verifySignature(payload, signature, signingSecret) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature mismatch"))
			return
		}

		var event billingwebhook.Event
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &event); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload"))
				return
			}
		}
		if event.WebhookID == "" {
			event.WebhookID = strings.TrimSpace(r.Header.Get(webhookIDHeader))
		}
		if event.Topic == "" {
			event.Topic = strings.TrimSpace(r.Header.Get(topicHeader))
		}
		if event.TenantID == "" {
			event.TenantID = strings.TrimSpace(r.Header.Get(tenantIDHeader))
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}

func verifySignature(payload []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := mac.Sum(nil)

	provided, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, provided)
}
