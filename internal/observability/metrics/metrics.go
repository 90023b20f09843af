package metrics

import "github.com/prometheus/client_golang/prometheus"

// FlowMetrics exposes counters/histograms for the booking flow.
type FlowMetrics struct {
	stepTransitions *prometheus.CounterVec
	slotConflicts   *prometheus.CounterVec
	promoOutcomes   *prometheus.CounterVec
	submissions     *prometheus.CounterVec
	paymentLaunches *prometheus.CounterVec
	paymentOutcomes *prometheus.CounterVec
	resolverLatency *prometheus.HistogramVec
}

func NewFlowMetrics(reg prometheus.Registerer) *FlowMetrics {
	m := &FlowMetrics{
		stepTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookingflow",
			Subsystem: "flow",
			Name:      "step_transitions_total",
			Help:      "Total flow step transitions",
		}, []string{"step"}),
		slotConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookingflow",
			Subsystem: "flow",
			Name:      "slot_conflicts_total",
			Help:      "Total slot window conflicts by stage",
		}, []string{"stage"}),
		promoOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookingflow",
			Subsystem: "flow",
			Name:      "promo_outcomes_total",
			Help:      "Total promo code applications by outcome",
		}, []string{"outcome"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookingflow",
			Subsystem: "flow",
			Name:      "submissions_total",
			Help:      "Total booking submissions by result",
		}, []string{"result", "payment_method"}),
		paymentLaunches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookingflow",
			Subsystem: "payment",
			Name:      "wallet_launches_total",
			Help:      "Total wallet redirect launches by target",
		}, []string{"target", "result"}),
		paymentOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookingflow",
			Subsystem: "payment",
			Name:      "outcomes_total",
			Help:      "Total terminal payment outcomes",
		}, []string{"state", "method"}),
		resolverLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bookingflow",
			Subsystem: "flow",
			Name:      "resolver_latency_seconds",
			Help:      "Latency of collaborator-backed resolvers",
			Buckets:   prometheus.DefBuckets,
		}, []string{"resolver"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.stepTransitions,
		m.slotConflicts,
		m.promoOutcomes,
		m.submissions,
		m.paymentLaunches,
		m.paymentOutcomes,
		m.resolverLatency,
	)
	return m
}

func (m *FlowMetrics) ObserveStep(step string) {
	if m == nil {
		return
	}
	m.stepTransitions.WithLabelValues(step).Inc()
}

func (m *FlowMetrics) ObserveSlotConflict(stage string) {
	if m == nil {
		return
	}
	m.slotConflicts.WithLabelValues(stage).Inc()
}

func (m *FlowMetrics) ObservePromo(outcome string) {
	if m == nil {
		return
	}
	m.promoOutcomes.WithLabelValues(outcome).Inc()
}

func (m *FlowMetrics) ObserveSubmission(result, paymentMethod string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(result, paymentMethod).Inc()
}

func (m *FlowMetrics) ObservePaymentLaunch(target, result string) {
	if m == nil {
		return
	}
	m.paymentLaunches.WithLabelValues(target, result).Inc()
}

func (m *FlowMetrics) ObservePaymentOutcome(state, method string) {
	if m == nil {
		return
	}
	m.paymentOutcomes.WithLabelValues(state, method).Inc()
}

func (m *FlowMetrics) ObserveResolverLatency(resolver string, seconds float64) {
	if m == nil {
		return
	}
	m.resolverLatency.WithLabelValues(resolver).Observe(seconds)
}
