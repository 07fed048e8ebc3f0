package metrics

import "github.com/prometheus/client_golang/prometheus"

// Consumer outcomes.
const (
	OutcomeHandled   = "handled"
	OutcomeFailed    = "failed"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeMalformed = "malformed"
)

// ConsumerMetrics counts queue deliveries per consumer, event and outcome.
type ConsumerMetrics struct {
	deliveries *prometheus.CounterVec
}

func NewConsumerMetrics(reg prometheus.Registerer) *ConsumerMetrics {
	if reg == nil {
		return &ConsumerMetrics{}
	}
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "event_consumer_deliveries_total",
		Help: "Queue deliveries processed by consumers, by outcome.",
	}, []string{"consumer", "event", "outcome"})
	reg.MustRegister(deliveries)
	return &ConsumerMetrics{deliveries: deliveries}
}

// Inc counts one delivery.
func (m *ConsumerMetrics) Inc(consumer, event, outcome string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(consumer), normalizeLabel(event), normalizeLabel(outcome)).Inc()
}
