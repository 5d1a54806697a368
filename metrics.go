package telemplot

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the prometheus collectors of the HTTP server, registered on
// their own registry so tests can create as many servers as they like.
type Metrics struct {
	registry *prometheus.Registry

	plotRequests *prometheus.CounterVec
	renders      *prometheus.CounterVec
	buildSeconds prometheus.Histogram
	wsClients    prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		plotRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telemplot",
			Name:      "plot_requests_total",
			Help:      "Plot requests by outcome (ok or error kind).",
		}, []string{"outcome"}),
		renders: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telemplot",
			Name:      "renders_total",
			Help:      "Rendered images by format.",
		}, []string{"format"}),
		buildSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "telemplot",
			Name:      "plot_build_seconds",
			Help:      "Time spent building plot geometry.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		wsClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "telemplot",
			Name:      "websocket_clients",
			Help:      "Connected websocket clients.",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordRequest(started time.Time, err error) {
	m.buildSeconds.Observe(time.Since(started).Seconds())

	outcome := "ok"
	if err != nil {
		outcome = ErrorKind(err)
	}
	m.plotRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordRender(format string) {
	m.renders.WithLabelValues(format).Inc()
}
