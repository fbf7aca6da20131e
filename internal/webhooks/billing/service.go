package billingwebhook

import (
	"context"
	"strings"
	"time"

	"github.com/fitcheckhq/fitcheck-backend/pkg/billingprovider"
	"github.com/fitcheckhq/fitcheck-backend/pkg/db/models"
	"github.com/fitcheckhq/fitcheck-backend/pkg/enums"
	pkgerrors "github.com/fitcheckhq/fitcheck-backend/pkg/errors"
	"github.com/fitcheckhq/fitcheck-backend/pkg/logger"
)

// Topics delivered by the billing provider.
const (
	TopicSubscriptionsUpdate = "subscriptions/update"
	TopicSubscriptionsCancel = "subscriptions/cancel"
	TopicAppUninstalled      = "app/uninstalled"
)

type syncer interface {
	Sync(ctx context.Context, tenantID string, snapshot *billingprovider.Snapshot, forceUpdate bool) (*models.TenantSubscription, error)
}

// ServiceParams groups dependencies for the webhook service.
type ServiceParams struct {
	Logger     *logger.Logger
	Guard      *Guard
	Reconciler syncer
}

// Service admits and processes billing webhooks.
type Service struct {
	logg       *logger.Logger
	guard      *Guard
	reconciler syncer
}

// NewService builds the webhook service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "guard required")
	}
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciler required")
	}
	return &Service{
		logg:       params.Logger,
		guard:      params.Guard,
		reconciler: params.Reconciler,
	}, nil
}

// SubscriptionPayload is the subscription fragment of an update event.
type SubscriptionPayload struct {
	Status           string     `json:"status"`
	PlanName         string     `json:"planName"`
	CurrentPeriodEnd *time.Time `json:"currentPeriodEnd"`
}

// Event is a provider webhook after transport-level verification.
type Event struct {
	WebhookID    string               `json:"webhookId"`
	Topic        string               `json:"topic"`
	TenantID     string               `json:"tenantId"`
	Subscription *SubscriptionPayload `json:"subscription"`
}

// HandleEvent deduplicates and dispatches a webhook event. Duplicates are
// dropped silently; a handler failure releases the dedup record so the
// provider's redelivery can retry.
func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event required")
	}
	if event.WebhookID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook id is required")
	}
	if event.TenantID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}

	logCtx := s.logg.WithWebhookID(ctx, event.WebhookID)
	logCtx = s.logg.WithField(logCtx, "topic", event.Topic)

	result, err := s.guard.Admit(logCtx, event.WebhookID, event.Topic, event.TenantID)
	if err != nil {
		return err
	}
	if result == AdmitResultAlreadyProcessed {
		return nil
	}

	if err := s.dispatch(logCtx, event); err != nil {
		if forgetErr := s.guard.Forget(logCtx, event.WebhookID); forgetErr != nil {
			s.logg.Error(logCtx, "failed to release webhook dedup record", forgetErr)
		}
		return err
	}
	return nil
}

// normalizeTopic folds the provider's two spellings ("subscriptions/update"
// on REST deliveries, "SUBSCRIPTIONS_UPDATE" on the event bus) into one.
func normalizeTopic(topic string) string {
	topic = strings.ToLower(strings.TrimSpace(topic))
	return strings.ReplaceAll(topic, "_", "/")
}

func (s *Service) dispatch(ctx context.Context, event *Event) error {
	switch normalizeTopic(event.Topic) {
	case TopicSubscriptionsUpdate:
		return s.handleSubscriptionUpdate(ctx, event)
	case TopicSubscriptionsCancel, TopicAppUninstalled:
		return s.handleCancellation(ctx, event)
	default:
		s.logg.Info(ctx, "ignoring unhandled webhook topic")
		return nil
	}
}

func (s *Service) handleSubscriptionUpdate(ctx context.Context, event *Event) error {
	var snapshot *billingprovider.Snapshot
	if event.Subscription != nil {
		snapshot = &billingprovider.Snapshot{
			Status:           enums.ProviderStatus(strings.ToUpper(strings.TrimSpace(event.Subscription.Status))),
			PlanName:         event.Subscription.PlanName,
			CurrentPeriodEnd: event.Subscription.CurrentPeriodEnd,
		}
	}
	// Webhooks carry fresh provider state, so drift thresholds are bypassed.
	if _, err := s.reconciler.Sync(ctx, event.TenantID, snapshot, true); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reconciling subscription update")
	}
	return nil
}

// handleCancellation covers both the explicit cancel topic and app
// uninstalls; either way the tenant drops to the free tier.
func (s *Service) handleCancellation(ctx context.Context, event *Event) error {
	snapshot := &billingprovider.Snapshot{Status: enums.ProviderStatusCancelled}
	if _, err := s.reconciler.Sync(ctx, event.TenantID, snapshot, true); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reconciling cancellation")
	}
	return nil
}
