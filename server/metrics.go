package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation result labels
const (
	resultOK       = "ok"
	resultRejected = "rejected"
	resultError    = "error"
)

type metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	rejections *prometheus.CounterVec
	sessions   prometheus.Gauge
	reaped     prometheus.Counter
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webtree",
			Name:      "operations_total",
			Help:      "Tree operations by kind and result.",
		}, []string{"op", "result"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webtree",
			Name:      "validation_rejections_total",
			Help:      "Dialog submissions rejected by validation, by reason.",
		}, []string{"reason"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "webtree",
			Name:      "sessions",
			Help:      "Live editing sessions.",
		}),
		reaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "webtree",
			Name:      "sessions_reaped_total",
			Help:      "Sessions ended for being idle.",
		}),
	}
	m.registry.MustRegister(m.operations, m.rejections, m.sessions, m.reaped)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
