package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SagaMetrics records order creation outcomes and step latencies.
type SagaMetrics struct {
	outcomes *prometheus.CounterVec
	steps    *prometheus.HistogramVec
	restores prometheus.Counter
}

// NewSagaMetrics registers the saga metrics on the provided registerer.
func NewSagaMetrics(reg prometheus.Registerer) *SagaMetrics {
	if reg == nil {
		return &SagaMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_saga_outcomes_total",
		Help: "Order creation attempts by outcome.",
	}, []string{"outcome"})
	steps := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "order_saga_step_duration_seconds",
		Help:    "Duration of each order creation step in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"step"})
	restores := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "order_saga_stock_restores_total",
		Help: "Stock decrements restored by compensation.",
	})
	reg.MustRegister(outcomes, steps, restores)
	return &SagaMetrics{outcomes: outcomes, steps: steps, restores: restores}
}

// IncOutcome counts one finished saga run.
func (m *SagaMetrics) IncOutcome(outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveStep records how long a saga step took.
func (m *SagaMetrics) ObserveStep(step string, d time.Duration) {
	if m == nil || m.steps == nil {
		return
	}
	m.steps.WithLabelValues(normalizeLabel(step)).Observe(d.Seconds())
}

// AddRestores counts restored line items.
func (m *SagaMetrics) AddRestores(n int) {
	if m == nil || m.restores == nil || n <= 0 {
		return
	}
	m.restores.Add(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
