package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the catalog's Prometheus collectors
type Metrics struct {
	registry *prometheus.Registry

	Uploads         *prometheus.CounterVec
	Searches        *prometheus.CounterVec
	SchemaFetches   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New registers the collectors on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schematic",
			Name:      "uploads_total",
			Help:      "Uploaded files by content type and outcome.",
		}, []string{"content_type", "outcome"}),
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schematic",
			Name:      "searches_total",
			Help:      "Schema searches by logic.",
		}, []string{"logic"}),
		SchemaFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schematic",
			Name:      "schema_fetches_total",
			Help:      "Schema reads by source (cache or blob).",
		}, []string{"source"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "schematic",
			Name:      "request_duration_seconds",
			Help:      "HTTP handler latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		m.Uploads,
		m.Searches,
		m.SchemaFetches,
		m.RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Instrument records the latency of next under route
func (m *Metrics) Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
