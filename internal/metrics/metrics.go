// Package metrics exposes Prometheus collectors for product operations and
// real-time delivery. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "product_api"

type Metrics struct {
	gatherer prometheus.Gatherer

	operations *prometheus.CounterVec
	delivered  *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	clients    prometheus.Gauge
}

// New registers the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Product endpoint calls by operation and HTTP status.",
		}, []string{"operation", "status"}),
		delivered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_delivered_total",
			Help:      "Events queued to connected clients.",
		}, []string{"type"}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Events skipped because a client buffer was full.",
		}, []string{"type"}),
		clients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_clients",
			Help:      "Currently connected real-time clients.",
		}),
	}
}

func (m *Metrics) ObserveOperation(operation string, status int) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, statusLabel(status)).Inc()
}

func (m *Metrics) EventDelivered(eventType string) {
	if m == nil {
		return
	}
	m.delivered.WithLabelValues(eventType).Inc()
}

func (m *Metrics) EventDropped(eventType string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(eventType).Inc()
}

func (m *Metrics) SetClients(n int) {
	if m == nil {
		return
	}
	m.clients.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func statusLabel(status int) string {
	switch {
	case status >= 100 && status < 600:
		return http.StatusText(status)
	default:
		return "unknown"
	}
}
