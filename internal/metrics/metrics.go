// Package metrics holds the Prometheus collectors of the messaging core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "messaging"

// Push outcomes.
const (
	OutcomeDelivered = "delivered"
	OutcomeOffline   = "offline"
	OutcomeFailed    = "failed"
)

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	reg *prometheus.Registry

	// OnlineUsers is the size of the presence registry.
	OnlineUsers prometheus.Gauge

	// OpenConnections counts websocket connections in the Open state.
	OpenConnections prometheus.Gauge

	// Handshakes counts upgrade attempts.
	// Labels: result (accepted|anonymous|unverified|failed)
	Handshakes *prometheus.CounterVec

	// Pushes counts server->client events.
	// Labels: event, outcome (delivered|offline|failed)
	Pushes *prometheus.CounterVec

	// Messages counts store mutations done by the dispatcher.
	// Labels: op (sent|marked_read), status (success|error)
	Messages *prometheus.CounterVec

	// StoreDuration measures message store latency in seconds.
	// Labels: op
	StoreDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		OnlineUsers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_users",
			Help:      "Users with a registered live connection.",
		}),
		OpenConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_connections",
			Help:      "Websocket connections in the Open state.",
		}),
		Handshakes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_handshakes_total",
			Help:      "Websocket handshakes by result.",
		}, []string{"result"}),
		Pushes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pushes_total",
			Help:      "Server to client events by outcome.",
		}, []string{"event", "outcome"}),
		Messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_ops_total",
			Help:      "Message store mutations by status.",
		}, []string{"op", "status"}),
		StoreDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_duration_seconds",
			Help:      "Message store call latency.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"op"}),
	}
}

// Handler serves this instance's registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) Handshake(result string) {
	if m == nil {
		return
	}
	m.Handshakes.WithLabelValues(result).Inc()
}

func (m *Metrics) Push(event, outcome string) {
	if m == nil {
		return
	}
	m.Pushes.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) StoreOp(op string, seconds float64, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.Messages.WithLabelValues(op, status).Inc()
	m.StoreDuration.WithLabelValues(op).Observe(seconds)
}

func (m *Metrics) SetPresence(onlineUsers, openConns int) {
	if m == nil {
		return
	}
	m.OnlineUsers.Set(float64(onlineUsers))
	m.OpenConnections.Set(float64(openConns))
}
