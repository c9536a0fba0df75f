package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestWebhookMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewWebhookMetrics(reg)
	metrics.IncReceived("succeeded")
	metrics.IncReceived("succeeded")
	metrics.IncOutcome("succeeded", "processed")
	metrics.IncOutcome("succeeded", "duplicate")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "webhook_events_received", "status", "succeeded"); err != nil {
		t.Fatalf("fetch received: %v", err)
	} else if got != 2 {
		t.Fatalf("expected received=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "webhook_events_handled", "outcome", "processed"); err != nil {
		t.Fatalf("fetch processed: %v", err)
	} else if got != 1 {
		t.Fatalf("expected processed=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "webhook_events_handled", "outcome", "duplicate"); err != nil {
		t.Fatalf("fetch duplicate: %v", err)
	} else if got != 1 {
		t.Fatalf("expected duplicate=1, got %f", got)
	}
}

func TestWebhookMetricsNilSafe(t *testing.T) {
	var metrics *WebhookMetrics
	metrics.IncReceived("succeeded")
	metrics.IncOutcome("succeeded", "processed")

	empty := NewWebhookMetrics(nil)
	empty.IncReceived("failed")
	empty.IncOutcome("failed", "failed")
}
