package observ

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the service exports. Each instance owns its
// registry, so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	RequestCounter  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	ActivityFailures  prometheus.Counter
	RealtimePublished *prometheus.CounterVec
	StorageOperations *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		ActivityFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "activity_log_write_failures_total",
			Help: "Activity log entries that could not be written",
		}),
		RealtimePublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realtime_events_published_total",
				Help: "Change events published to realtime subscribers",
			},
			[]string{"table", "type", "result"},
		),
		StorageOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_operations_total",
				Help: "File storage operations by kind and result",
			},
			[]string{"op", "result"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestCounter,
		m.RequestDuration,
		m.ActivityFailures,
		m.RealtimePublished,
		m.StorageOperations,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// The helpers below are nil-safe so components can run without metrics.

func (m *Metrics) ActivityFailed() {
	if m == nil {
		return
	}
	m.ActivityFailures.Inc()
}

func (m *Metrics) Published(table, typ string, err error) {
	if m == nil {
		return
	}
	m.RealtimePublished.WithLabelValues(table, typ, result(err)).Inc()
}

func (m *Metrics) StorageOp(op string, err error) {
	if m == nil {
		return
	}
	m.StorageOperations.WithLabelValues(op, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
