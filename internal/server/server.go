package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/statuswatch/statuswatch/internal/catalog"
	"github.com/statuswatch/statuswatch/internal/gateway"
	"github.com/statuswatch/statuswatch/internal/history"
	"github.com/statuswatch/statuswatch/internal/metrics"
	"github.com/statuswatch/statuswatch/internal/models"
	"github.com/statuswatch/statuswatch/pkg/utils"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port          int           `json:"port"`
	Host          string        `json:"host"`
	ReadTimeout   time.Duration `json:"read_timeout"`
	WriteTimeout  time.Duration `json:"write_timeout"`
	EnableMetrics bool          `json:"enable_metrics"`
	EnableHealth  bool          `json:"enable_health"`
}

// HTTPServer exposes the gateway and catalog over a request/response surface
type HTTPServer struct {
	config         *ServerConfig
	server         *http.Server
	router         *mux.Router
	gateway        *gateway.Gateway
	catalog        *catalog.Catalog
	historyStore   *history.Store
	pool           *gateway.Pool
	metricsManager *metrics.Manager
	logger         *logrus.Logger
	startTime      time.Time
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(
	config *ServerConfig,
	gw *gateway.Gateway,
	cat *catalog.Catalog,
	historyStore *history.Store,
	pool *gateway.Pool,
	metricsManager *metrics.Manager,
) (*HTTPServer, error) {

	server := &HTTPServer{
		config:         config,
		gateway:        gw,
		catalog:        cat,
		historyStore:   historyStore,
		pool:           pool,
		metricsManager: metricsManager,
		logger:         utils.GetLogger(),
		startTime:      time.Now(),
	}

	// Setup router
	server.setupRouter()

	// Create HTTP server
	server.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      server.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return server, nil
}

// setupRouter sets up the HTTP routes
func (s *HTTPServer) setupRouter() {
	s.router = mux.NewRouter()

	// Middleware
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
	if s.metricsManager != nil {
		s.router.Use(s.metricsMiddleware)
	}

	// API routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Health check endpoint
	if s.config.EnableHealth {
		api.HandleFunc("/health", s.healthHandler).Methods("GET")
		api.HandleFunc("/health/detailed", s.detailedHealthHandler).Methods("GET")
	}

	// Metrics endpoint
	if s.config.EnableMetrics {
		s.router.Handle("/metrics", promhttp.Handler())
		api.HandleFunc("/stats", s.statsHandler).Methods("GET")
	}

	// Query and schema endpoints
	api.HandleFunc("/query", s.queryHandler).Methods("POST")
	api.HandleFunc("/schema", s.schemaHandler).Methods("GET")
	api.HandleFunc("/history", s.historyHandler).Methods("GET")
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	s.logger.WithFields(logrus.Fields{
		"address":         s.server.Addr,
		"metrics_enabled": s.config.EnableMetrics,
	}).Info("Starting HTTP server")

	if s.metricsManager != nil {
		s.metricsManager.UpdateSystemMetrics()
		if s.gateway != nil {
			s.metricsManager.GetPrometheusMetrics().UpdateComponentHealth("gateway", s.gateway.IsHealthy())
		}
		if s.catalog != nil {
			s.metricsManager.GetPrometheusMetrics().UpdateComponentHealth("catalog", s.catalog.IsHealthy())
		}

		go s.systemMetricsUpdater()
	}

	// Create a channel to receive startup errors
	errChan := make(chan error, 1)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("HTTP server error")
			errChan <- err
		}
	}()

	// Give the server a moment to start and check for immediate binding errors
	select {
	case err := <-errChan:
		return fmt.Errorf("failed to start HTTP server: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop gracefully shuts down the HTTP server
func (s *HTTPServer) Stop() error {
	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// systemMetricsUpdater updates system metrics periodically
func (s *HTTPServer) systemMetricsUpdater() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		s.metricsManager.UpdateSystemMetrics()
		if s.pool != nil {
			stats := s.pool.Stats()
			s.metricsManager.UpdatePoolStats(stats.InUse, stats.OpenConnections)
		}
	}
}

// queryHandler executes a caller-supplied statement through the gateway
func (s *HTTPServer) queryHandler(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, utils.NewAppError(utils.ErrCodeValidation, "Malformed request body", err.Error()))
		return
	}

	result, err := s.gateway.Query(r.Context(), &req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// schemaHandler returns the introspected schema bundle
func (s *HTTPServer) schemaHandler(w http.ResponseWriter, r *http.Request) {
	bundle, err := s.catalog.Schema(r.Context())
	if err != nil {
		if s.metricsManager != nil {
			s.metricsManager.RecordSchemaRequest("error")
		}
		s.writeError(w, err)
		return
	}

	if s.metricsManager != nil {
		s.metricsManager.RecordSchemaRequest("ok")
	}
	s.writeJSON(w, http.StatusOK, bundle)
}

// historyHandler returns recent query audit entries
func (s *HTTPServer) historyHandler(w http.ResponseWriter, r *http.Request) {
	if s.historyStore == nil {
		s.writeError(w, utils.NewAppError(utils.ErrCodeNotFound, "Query history is disabled", ""))
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, utils.NewAppError(utils.ErrCodeValidation, "Invalid limit parameter", raw))
			return
		}
		limit = parsed
	}

	entries, err := s.historyStore.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(entries),
		"entries": entries,
	})
}

// healthHandler returns basic health status
func (s *HTTPServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	healthy := s.pool != nil && s.pool.IsHealthy()

	status := http.StatusOK
	state := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":    state,
		"timestamp": time.Now(),
	})
}

// detailedHealthHandler returns per-component health status
func (s *HTTPServer) detailedHealthHandler(w http.ResponseWriter, r *http.Request) {
	components := map[string]bool{}

	if s.gateway != nil {
		components["gateway"] = s.gateway.IsHealthy()
	}
	if s.catalog != nil {
		components["catalog"] = s.catalog.IsHealthy()
	}
	if s.historyStore != nil {
		_, err := s.historyStore.Count(r.Context())
		components["history"] = err == nil
	}

	allHealthy := true
	for _, healthy := range components {
		if !healthy {
			allHealthy = false
			break
		}
	}

	status := http.StatusOK
	state := "healthy"
	if !allHealthy {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":     state,
		"components": components,
		"uptime":     time.Since(s.startTime).String(),
		"timestamp":  time.Now(),
	})
}

// statsHandler returns pool and history statistics
func (s *HTTPServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"uptime":    time.Since(s.startTime).String(),
		"timestamp": time.Now(),
	}

	if s.pool != nil {
		dbStats := s.pool.Stats()
		stats["pool"] = map[string]interface{}{
			"open":       dbStats.OpenConnections,
			"in_use":     dbStats.InUse,
			"idle":       dbStats.Idle,
			"wait_count": dbStats.WaitCount,
		}
	}

	if s.historyStore != nil {
		if count, err := s.historyStore.Count(r.Context()); err == nil {
			stats["queries_recorded"] = count
		}
	}

	s.writeJSON(w, http.StatusOK, stats)
}

// writeJSON writes a JSON response
func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

// writeError maps application errors onto HTTP statuses
func (s *HTTPServer) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch utils.ErrorCode(err) {
	case utils.ErrCodeValidation:
		status = http.StatusBadRequest
	case utils.ErrCodeResourceExhausted:
		status = http.StatusServiceUnavailable
	case utils.ErrCodeExecution, utils.ErrCodeConnection:
		status = http.StatusBadGateway
	case utils.ErrCodeNotFound:
		status = http.StatusNotFound
	}

	payload := map[string]interface{}{
		"error": err.Error(),
		"code":  utils.ErrorCode(err),
	}
	if appErr, ok := err.(*utils.AppError); ok {
		payload["message"] = appErr.Message
		if appErr.Details != "" {
			payload["details"] = appErr.Details
		}
	}

	s.writeJSON(w, status, payload)
}
