package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LedgerMetrics tracks registry transitions.
type LedgerMetrics struct {
	// Transitions by method and outcome
	Transitions *prometheus.CounterVec

	// Transition latency including commit
	TransitionLatency *prometheus.HistogramVec

	// Committed receipts
	Height prometheus.Gauge

	// Successful registrations
	TotalDocuments prometheus.Gauge
}

// NewLedgerMetrics registers the ledger metrics with reg.
func NewLedgerMetrics(namespace string, reg prometheus.Registerer) *LedgerMetrics {
	factory := promauto.With(reg)
	return &LedgerMetrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Total registry transitions by method and status",
		}, []string{"method", "status"}),

		TransitionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transition_duration_seconds",
			Help:      "Duration of registry transitions including the database commit",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"method"}),

		Height: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_height",
			Help:      "Number of committed receipts",
		}),

		TotalDocuments: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Number of registered documents",
		}),
	}
}

// ObserveTransition records one applied transition.
func (m *LedgerMetrics) ObserveTransition(method string, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(method, status).Inc()
	m.TransitionLatency.WithLabelValues(method).Observe(d.Seconds())
}

// ObserveState records the ledger height and document count.
func (m *LedgerMetrics) ObserveState(height uint64, totalDocuments uint64) {
	if m == nil {
		return
	}
	m.Height.Set(float64(height))
	m.TotalDocuments.Set(float64(totalDocuments))
}
