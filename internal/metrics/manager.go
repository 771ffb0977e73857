package metrics

import (
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

// Manager handles all application metrics
type Manager struct {
	prometheus *PrometheusMetrics
	logger     *logrus.Entry
	startTime  time.Time
}

// NewManager creates a new metrics manager
func NewManager() *Manager {
	return &Manager{
		prometheus: NewPrometheusMetrics(),
		logger:     logrus.WithField("component", "metrics"),
		startTime:  time.Now(),
	}
}

// GetPrometheusMetrics returns the Prometheus metrics instance
func (m *Manager) GetPrometheusMetrics() *PrometheusMetrics {
	return m.prometheus
}

// RecordQuery records one gateway call
func (m *Manager) RecordQuery(status string, duration time.Duration, rowCount int) {
	m.prometheus.RecordQuery(status, duration, rowCount)
}

// RecordValidationFailure records one statically rejected query
func (m *Manager) RecordValidationFailure(reason string) {
	m.prometheus.RecordValidationFailure(reason)
}

// RecordSchemaRequest records one catalog call
func (m *Manager) RecordSchemaRequest(status string) {
	m.prometheus.RecordSchemaRequest(status)
}

// UpdatePoolStats updates connection pool gauges
func (m *Manager) UpdatePoolStats(inUse, open int) {
	m.prometheus.UpdatePoolStats(inUse, open)
}

// UpdateSystemMetrics updates system-level metrics like memory and goroutines
func (m *Manager) UpdateSystemMetrics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.prometheus.UpdateMemoryUsage(memStats.Alloc)
	m.prometheus.UpdateGoroutineCount(runtime.NumGoroutine())
	m.prometheus.UpdateApplicationUptime(m.startTime)
}
