package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the orchestrator's Prometheus collectors.
type Metrics struct {
	BatchOutcomes *prometheus.CounterVec
	BuildDuration prometheus.Histogram
	Transactions  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BatchOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pacforge_batch_outcomes_total",
				Help: "Number of batches by kind and final state.",
			},
			[]string{"kind", "state"},
		),
		BuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pacforge_build_duration_seconds",
				Help:    "Time taken to build one source batch.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		Transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pacforge_transactions_total",
				Help: "Number of package manager transactions by operation and result.",
			},
			[]string{"op", "result"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.BatchOutcomes, m.BuildDuration, m.Transactions)
	}
	return m
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
