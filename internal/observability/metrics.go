package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDuration     *prometheus.HistogramVec
	upstreamRequestsTotal   *prometheus.CounterVec
	upstreamDuration        *prometheus.HistogramVec
	crmRequestsTotal        *prometheus.CounterVec
	crmDuration             *prometheus.HistogramVec
	pipelinePartialFailures prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "granolasync_http_requests_total",
				Help: "Total number of HTTP requests handled.",
			},
			[]string{"route", "method", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "granolasync_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method", "status"},
		),
		upstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "granolasync_upstream_requests_total",
				Help: "Total Anthropic API requests.",
			},
			[]string{"endpoint", "status"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "granolasync_upstream_request_duration_seconds",
				Help:    "Anthropic API request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint", "status"},
		),
		crmRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "granolasync_crm_requests_total",
				Help: "Total HubSpot API requests.",
			},
			[]string{"operation", "status"},
		),
		crmDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "granolasync_crm_request_duration_seconds",
				Help:    "HubSpot API request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "status"},
		),
		pipelinePartialFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "granolasync_pipeline_partial_failure_total",
				Help: "Number of pipeline runs that completed with at least one sync error.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.upstreamRequestsTotal,
		m.upstreamDuration,
		m.crmRequestsTotal,
		m.crmDuration,
		m.pipelinePartialFailures,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	if method == "" {
		method = "UNKNOWN"
	}
	statusLabel := strconv.Itoa(status)
	m.httpRequestsTotal.WithLabelValues(route, method, statusLabel).Inc()
	m.httpRequestDuration.WithLabelValues(route, method, statusLabel).Observe(duration.Seconds())
}

func (m *Metrics) ObserveUpstream(endpoint string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	statusLabel := strconv.Itoa(status)
	m.upstreamRequestsTotal.WithLabelValues(endpoint, statusLabel).Inc()
	m.upstreamDuration.WithLabelValues(endpoint, statusLabel).Observe(duration.Seconds())
}

func (m *Metrics) ObserveCRM(operation string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	statusLabel := strconv.Itoa(status)
	m.crmRequestsTotal.WithLabelValues(operation, statusLabel).Inc()
	m.crmDuration.WithLabelValues(operation, statusLabel).Observe(duration.Seconds())
}

func (m *Metrics) IncPipelinePartialFailure() {
	if m == nil {
		return
	}
	m.pipelinePartialFailures.Inc()
}
