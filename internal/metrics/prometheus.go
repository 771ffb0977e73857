package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics contains all Prometheus metrics for the query assistant
type PrometheusMetrics struct {
	// Gateway metrics
	QueriesTotal            *prometheus.CounterVec
	QueryDuration           *prometheus.HistogramVec
	QueryRowsReturned       prometheus.Histogram
	ValidationFailuresTotal *prometheus.CounterVec

	// Pool metrics
	PoolConnectionsInUse prometheus.Gauge
	PoolConnectionsOpen  prometheus.Gauge

	// Catalog metrics
	SchemaRequestsTotal *prometheus.CounterVec

	// API metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Application health metrics
	ApplicationUptime prometheus.Gauge
	ComponentHealth   *prometheus.GaugeVec
	MemoryUsage       prometheus.Gauge
	GoroutineCount    prometheus.Gauge
}

// NewPrometheusMetrics creates and registers all Prometheus metrics
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		QueriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statuswatch_queries_total",
				Help: "Total number of gateway queries by outcome",
			},
			[]string{"status"},
		),

		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "statuswatch_query_duration_seconds",
				Help:    "Time spent executing gateway queries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),

		QueryRowsReturned: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "statuswatch_query_rows_returned",
				Help:    "Rows returned per successful gateway query",
				Buckets: []float64{0, 1, 10, 50, 200, 500, 1000, 2000},
			},
		),

		ValidationFailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statuswatch_validation_failures_total",
				Help: "Total number of statically rejected queries by reason",
			},
			[]string{"reason"},
		),

		PoolConnectionsInUse: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "statuswatch_pool_connections_in_use",
				Help: "Tracker database connections currently checked out",
			},
		),

		PoolConnectionsOpen: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "statuswatch_pool_connections_open",
				Help: "Tracker database connections currently open",
			},
		),

		SchemaRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statuswatch_schema_requests_total",
				Help: "Total number of schema catalog requests by outcome",
			},
			[]string{"status"},
		),

		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statuswatch_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "statuswatch_http_request_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		ApplicationUptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "statuswatch_uptime_seconds",
				Help: "Application uptime in seconds",
			},
		),

		ComponentHealth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "statuswatch_component_health",
				Help: "Component health status (1 healthy, 0 unhealthy)",
			},
			[]string{"component"},
		),

		MemoryUsage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "statuswatch_memory_usage_bytes",
				Help: "Current memory usage in bytes",
			},
		),

		GoroutineCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "statuswatch_goroutines",
				Help: "Current number of goroutines",
			},
		),
	}
}

// RecordQuery records one gateway call
func (m *PrometheusMetrics) RecordQuery(status string, duration time.Duration, rowCount int) {
	m.QueriesTotal.WithLabelValues(status).Inc()
	m.QueryDuration.WithLabelValues(status).Observe(duration.Seconds())
	if status == "ok" {
		m.QueryRowsReturned.Observe(float64(rowCount))
	}
}

// RecordValidationFailure records one statically rejected query
func (m *PrometheusMetrics) RecordValidationFailure(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.ValidationFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordSchemaRequest records one catalog call
func (m *PrometheusMetrics) RecordSchemaRequest(status string) {
	m.SchemaRequestsTotal.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records HTTP request metrics
func (m *PrometheusMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdatePoolStats updates connection pool gauges
func (m *PrometheusMetrics) UpdatePoolStats(inUse, open int) {
	m.PoolConnectionsInUse.Set(float64(inUse))
	m.PoolConnectionsOpen.Set(float64(open))
}

// UpdateComponentHealth updates a component health gauge
func (m *PrometheusMetrics) UpdateComponentHealth(component string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	m.ComponentHealth.WithLabelValues(component).Set(value)
}

// UpdateApplicationUptime updates the uptime gauge
func (m *PrometheusMetrics) UpdateApplicationUptime(startTime time.Time) {
	m.ApplicationUptime.Set(time.Since(startTime).Seconds())
}

// UpdateMemoryUsage updates the memory usage gauge
func (m *PrometheusMetrics) UpdateMemoryUsage(bytes uint64) {
	m.MemoryUsage.Set(float64(bytes))
}

// UpdateGoroutineCount updates the goroutine gauge
func (m *PrometheusMetrics) UpdateGoroutineCount(count int) {
	m.GoroutineCount.Set(float64(count))
}
