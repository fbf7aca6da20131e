package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fitcheckhq/fitcheck-backend/api/controllers"
	billingcontrollers "github.com/fitcheckhq/fitcheck-backend/api/controllers/billing"
	usagecontrollers "github.com/fitcheckhq/fitcheck-backend/api/controllers/usage"
	webhookcontrollers "github.com/fitcheckhq/fitcheck-backend/api/controllers/webhooks"
	"github.com/fitcheckhq/fitcheck-backend/api/middleware"
	"github.com/fitcheckhq/fitcheck-backend/pkg/config"
	"github.com/fitcheckhq/fitcheck-backend/pkg/logger"
)

// RouterParams collects the services the HTTP surface exposes.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	DBPinger       controllers.Pinger
	RedisPinger    controllers.Pinger
	Reconciler     billingcontrollers.Reconciler
	CycleManager   billingcontrollers.CycleManager
	UsageService   usagecontrollers.Service
	PlanService    billingcontrollers.PlanService
	WebhookService webhookcontrollers.BillingWebhookService
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DBPinger, params.RedisPinger))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/billing", webhookcontrollers.BillingWebhook(params.WebhookService, cfg.Webhook.SigningSecret, logg))
	})

	r.Route("/api/v1/billing", func(r chi.Router) {
		r.Get("/subscription", billingcontrollers.SubscriptionFetch(params.Reconciler, params.CycleManager, logg))
		r.Post("/subscription/sync", billingcontrollers.SubscriptionSync(params.Reconciler, logg))
		r.Get("/plans", billingcontrollers.PlansList(params.PlanService, logg))
	})

	r.Route("/api/v1/usage", func(r chi.Router) {
		r.Get("/", usagecontrollers.UsageFetch(params.UsageService, logg))
		r.Post("/try-on", usagecontrollers.RecordTryOn(params.UsageService, logg))
	})

	return r
}
