package metrics

import "github.com/prometheus/client_golang/prometheus"

// FanoutMetrics tracks websocket clients and broadcast drops.
type FanoutMetrics struct {
	clients    prometheus.Gauge
	broadcasts *prometheus.CounterVec
	dropped    prometheus.Counter
}

func NewFanoutMetrics(reg prometheus.Registerer) *FanoutMetrics {
	if reg == nil {
		return &FanoutMetrics{}
	}
	clients := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_clients",
		Help: "Connected websocket clients.",
	})
	broadcasts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_broadcasts_total",
		Help: "Broadcast messages by event tag.",
	}, []string{"event"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ws_slow_clients_dropped_total",
		Help: "Clients disconnected because their send buffer was full.",
	})
	reg.MustRegister(clients, broadcasts, dropped)
	return &FanoutMetrics{clients: clients, broadcasts: broadcasts, dropped: dropped}
}

func (m *FanoutMetrics) ClientConnected() {
	if m == nil || m.clients == nil {
		return
	}
	m.clients.Inc()
}

func (m *FanoutMetrics) ClientDisconnected() {
	if m == nil || m.clients == nil {
		return
	}
	m.clients.Dec()
}

func (m *FanoutMetrics) IncBroadcast(event string) {
	if m == nil || m.broadcasts == nil {
		return
	}
	m.broadcasts.WithLabelValues(normalizeLabel(event)).Inc()
}

func (m *FanoutMetrics) IncDropped() {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.Inc()
}
