package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the realtime Prometheus instruments.
// All methods are nil-safe so tests can run without a registry.
type Metrics struct {
	connections prometheus.Gauge
	dispatches  prometheus.Counter
	deliveries  *prometheus.CounterVec
}

// NewMetrics constructs and registers the realtime metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatd",
			Subsystem: "ws",
			Name:      "connections",
			Help:      "Currently open websocket connections.",
		}),
		dispatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatd",
			Subsystem: "realtime",
			Name:      "dispatches_total",
			Help:      "Messages handed to the fan-out dispatcher.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatd",
			Subsystem: "realtime",
			Name:      "deliveries_total",
			Help:      "Per-recipient delivery attempts by result.",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(m.connections, m.dispatches, m.deliveries)
	}
	return m
}

func (m *Metrics) connOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) connClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) dispatched() {
	if m != nil {
		m.dispatches.Inc()
	}
}

func (m *Metrics) delivered() {
	if m != nil {
		m.deliveries.WithLabelValues("delivered").Inc()
	}
}

func (m *Metrics) unreachable() {
	if m != nil {
		m.deliveries.WithLabelValues("unreachable").Inc()
	}
}
