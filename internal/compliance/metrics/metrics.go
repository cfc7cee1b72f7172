package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the compliance module.
type Metrics struct {
	// Evaluations by account type and resulting warning level
	Evaluations *prometheus.CounterVec

	// Listing gate decisions by account type and outcome
	ListingGate *prometheus.CounterVec

	// Recorded sales by account type
	SalesRecorded *prometheus.CounterVec

	// Store load latency by source
	LoadLatency *prometheus.HistogramVec

	// Full status evaluation latency including store loads
	EvaluateLatency prometheus.Histogram
}

// New creates a Metrics instance registered with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the compliance metrics with reg. Tests pass a
// fresh prometheus.NewRegistry() to avoid duplicate registration panics.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kuruma_compliance_evaluations_total",
			Help: "Total compliance evaluations by account type and warning level",
		}, []string{"account_type", "warning_level"}),

		ListingGate: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kuruma_compliance_listing_gate_total",
			Help: "Listing creation gate decisions by account type and outcome",
		}, []string{"account_type", "outcome"}), // outcome: "allowed", "blocked"

		SalesRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kuruma_compliance_sales_recorded_total",
			Help: "Vehicle sales recorded by account type",
		}, []string{"account_type"}),

		LoadLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kuruma_compliance_load_duration_seconds",
			Help:    "Duration of account and activity loads by source",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"source"}), // source: "account", "activity"

		EvaluateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kuruma_compliance_status_duration_seconds",
			Help:    "Duration of status evaluation including store loads",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// IncrementEvaluation records an evaluation outcome.
func (m *Metrics) IncrementEvaluation(accountType, warningLevel string) {
	if m != nil {
		m.Evaluations.WithLabelValues(accountType, warningLevel).Inc()
	}
}

// IncrementListingGate records a listing gate decision.
func (m *Metrics) IncrementListingGate(accountType string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "blocked"
	if allowed {
		outcome = "allowed"
	}
	m.ListingGate.WithLabelValues(accountType, outcome).Inc()
}

// IncrementSale records a vehicle sale.
func (m *Metrics) IncrementSale(accountType string) {
	if m != nil {
		m.SalesRecorded.WithLabelValues(accountType).Inc()
	}
}

// ObserveLoadLatency records the duration of a store load.
func (m *Metrics) ObserveLoadLatency(source string, d time.Duration) {
	if m != nil {
		m.LoadLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}

// ObserveEvaluateLatency records the total status evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}
