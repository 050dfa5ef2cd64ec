// Package metrics exposes Prometheus instrumentation for the review service.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/MarcoPoloResearchLab/docrev/internal/docs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docrev"

var _ docs.Recorder = (*Metrics)(nil)

// Metrics owns a private registry so tests and multiple servers never collide.
type Metrics struct {
	registry *prometheus.Registry

	operationSeconds  *prometheus.HistogramVec
	cacheLookupsTotal *prometheus.CounterVec
	eventsTotal       *prometheus.CounterVec
	subscribers       prometheus.Gauge
	httpRequestsTotal *prometheus.CounterVec
}

// NewMetrics creates a new instance of Metrics.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()

	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	return &Metrics{
		registry: reg,
		operationSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "docs",
			Name:      "operation_seconds",
			Help:      "Latency of document service operations by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
		cacheLookupsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "version_lookups_total",
			Help:      "Version cache lookups by result.",
		}, []string{"result"}),
		eventsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Document events published to subscribers.",
		}, []string{"type"}),
		subscribers: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "subscribers",
			Help:      "Open document event streams.",
		}),
		httpRequestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
	}, nil
}

// ObserveOperation records the latency of a service call.
func (m *Metrics) ObserveOperation(operation, outcome string, elapsed time.Duration) {
	m.operationSeconds.WithLabelValues(operation, outcome).Observe(elapsed.Seconds())
}

// RecordCacheLookup counts a version cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordEvent counts a published document event.
func (m *Metrics) RecordEvent(eventType string) {
	m.eventsTotal.WithLabelValues(eventType).Inc()
}

// AddSubscribers moves the open stream gauge by delta.
func (m *Metrics) AddSubscribers(delta int) {
	m.subscribers.Add(float64(delta))
}

// ObserveHTTPRequest counts a completed request. route is the matched
// pattern, never the raw path.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the registry of the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
