package router

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts router activity. A nil *Metrics is a no-op so tests can
// skip registration.
type Metrics struct {
	connectionsActive prometheus.Gauge
	messagesRouted    *prometheus.CounterVec
	messagesDropped   *prometheus.CounterVec
}

// NewMetrics registers router metrics on reg.
func NewMetrics(reg prometheus.Registerer, activeSessions func() float64) *Metrics {
	m := &Metrics{
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lpu_ws_connections_active",
			Help: "Currently open WebSocket connections.",
		}),
		messagesRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lpu_messages_routed_total",
			Help: "Frames forwarded to a session or service, by path.",
		}, []string{"path"}),
		messagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lpu_messages_dropped_total",
			Help: "Frames dropped at the router boundary, by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.connectionsActive, m.messagesRouted, m.messagesDropped)
	if activeSessions != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "lpu_sessions_active",
			Help: "Live sessions in the registry.",
		}, activeSessions))
	}
	return m
}

func (m *Metrics) connOpened() {
	if m != nil {
		m.connectionsActive.Inc()
	}
}

func (m *Metrics) connClosed() {
	if m != nil {
		m.connectionsActive.Dec()
	}
}

func (m *Metrics) routed(path string) {
	if m != nil {
		m.messagesRouted.WithLabelValues(path).Inc()
	}
}

func (m *Metrics) dropped(reason string) {
	if m != nil {
		m.messagesDropped.WithLabelValues(reason).Inc()
	}
}
