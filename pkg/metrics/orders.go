package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics records order lifecycle activity.
type OrderMetrics struct {
	transitions  *prometheus.CounterVec
	assignments  *prometheus.CounterVec
	verification *prometheus.CounterVec
	gpsDistance  prometheus.Histogram
}

// NewOrderMetrics registers the order metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Order status transitions by source and target status.",
	}, []string{"from", "to"})
	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_assignments_total",
		Help: "Order acceptance attempts by outcome.",
	}, []string{"result"})
	verification := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_verifications_total",
		Help: "Handover verification attempts by method and outcome.",
	}, []string{"method", "result"})
	gpsDistance := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_gps_distance_meters",
		Help:    "Distance between reported and expected positions.",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 5000},
	})
	reg.MustRegister(transitions, assignments, verification, gpsDistance)
	return &OrderMetrics{
		transitions:  transitions,
		assignments:  assignments,
		verification: verification,
		gpsDistance:  gpsDistance,
	}
}

// IncTransition counts a committed status change.
func (m *OrderMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncAssignment counts an acceptance attempt.
func (m *OrderMetrics) IncAssignment(result string) {
	if m == nil || m.assignments == nil {
		return
	}
	m.assignments.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncVerification counts a verification attempt.
func (m *OrderMetrics) IncVerification(method, result string) {
	if m == nil || m.verification == nil {
		return
	}
	m.verification.WithLabelValues(normalizeLabel(method), normalizeLabel(result)).Inc()
}

// ObserveGPSDistance records how far a reported position was from target.
func (m *OrderMetrics) ObserveGPSDistance(meters float64) {
	if m == nil || m.gpsDistance == nil {
		return
	}
	m.gpsDistance.Observe(meters)
}
