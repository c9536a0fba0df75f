package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records gateway webhook deliveries and their outcomes.
type WebhookMetrics struct {
	received *prometheus.CounterVec
	outcomes *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_received",
		Help: "Gateway webhook deliveries by event status.",
	}, []string{"status"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_handled",
		Help: "Gateway webhook handling outcomes.",
	}, []string{"status", "outcome"})
	reg.MustRegister(received, outcomes)
	return &WebhookMetrics{
		received: received,
		outcomes: outcomes,
	}
}

// IncReceived counts a delivery whose signature and body were accepted.
func (w *WebhookMetrics) IncReceived(status string) {
	if w == nil || w.received == nil {
		return
	}
	w.received.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncOutcome counts the handling result for a delivery. Outcome is one of
// processed, duplicate, or failed.
func (w *WebhookMetrics) IncOutcome(status, outcome string) {
	if w == nil || w.outcomes == nil {
		return
	}
	w.outcomes.WithLabelValues(normalizeLabel(status), normalizeLabel(outcome)).Inc()
}
