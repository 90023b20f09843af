package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestFlowMetricsObserve(t *testing.T) {
	m := NewFlowMetrics(prometheus.NewRegistry())
	m.ObserveStep("schedule")
	m.ObserveSlotConflict("tap")
	m.ObservePromo("applied")
	m.ObserveSubmission("created", "cash")
	m.ObservePaymentLaunch("deep_link", "opened")
	m.ObservePaymentOutcome("completed", "wallet")
	m.ObserveResolverLatency("specialist", 0.5)
}

func TestFlowMetricsDefaultRegistry(t *testing.T) {
	m := NewFlowMetrics(nil)
	m.ObserveStep("treatment")
}

func TestFlowMetricsNilSafe(t *testing.T) {
	var m *FlowMetrics
	m.ObserveStep("schedule")
	m.ObserveSlotConflict("submit")
	m.ObservePromo("rejected")
	m.ObserveSubmission("failed", "wallet")
	m.ObservePaymentLaunch("web_url", "failed")
	m.ObservePaymentOutcome("failed", "cash")
	m.ObserveResolverLatency("slots", 0.1)
}
