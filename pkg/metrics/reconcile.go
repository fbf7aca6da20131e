package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReconcileMetrics tracks subscription reconciliation outcomes.
type ReconcileMetrics struct {
	syncs      *prometheus.CounterVec
	drift      prometheus.Counter
	cycleReset prometheus.Counter
	duplicates prometheus.Counter
}

// NewReconcileMetrics registers the reconciliation metrics on the provided
// registerer.
func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	if reg == nil {
		return &ReconcileMetrics{}
	}
	syncs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subscription_syncs_total",
		Help: "Subscription sync attempts by outcome.",
	}, []string{"outcome"})
	drift := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subscription_drift_detected_total",
		Help: "Syncs where the local record diverged from the provider.",
	})
	cycleReset := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "usage_cycle_resets_total",
		Help: "Usage cycles rolled over to a fresh window.",
	})
	duplicates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_duplicates_total",
		Help: "Webhook deliveries rejected as already processed.",
	})
	reg.MustRegister(syncs, drift, cycleReset, duplicates)
	return &ReconcileMetrics{
		syncs:      syncs,
		drift:      drift,
		cycleReset: cycleReset,
		duplicates: duplicates,
	}
}

// IncSync increments the sync counter for the given outcome label.
func (r *ReconcileMetrics) IncSync(outcome string) {
	if r == nil || r.syncs == nil {
		return
	}
	r.syncs.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncDrift increments the drift counter.
func (r *ReconcileMetrics) IncDrift() {
	if r == nil || r.drift == nil {
		return
	}
	r.drift.Inc()
}

// IncCycleReset increments the cycle rollover counter.
func (r *ReconcileMetrics) IncCycleReset() {
	if r == nil || r.cycleReset == nil {
		return
	}
	r.cycleReset.Inc()
}

// IncWebhookDuplicate increments the duplicate delivery counter.
func (r *ReconcileMetrics) IncWebhookDuplicate() {
	if r == nil || r.duplicates == nil {
		return
	}
	r.duplicates.Inc()
}
