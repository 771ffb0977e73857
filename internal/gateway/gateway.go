package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/statuswatch/statuswatch/internal/history"
	"github.com/statuswatch/statuswatch/internal/metrics"
	"github.com/statuswatch/statuswatch/internal/models"
	"github.com/statuswatch/statuswatch/pkg/utils"
)

// Config holds the gateway's paging and timeout bounds
type Config struct {
	DefaultLimit     int `json:"default_limit"`
	MaxLimit         int `json:"max_limit"`
	DefaultTimeoutMs int `json:"default_timeout_ms"`
	MinTimeoutMs     int `json:"min_timeout_ms"`
	MaxTimeoutMs     int `json:"max_timeout_ms"`
}

// Gateway executes caller-supplied SQL under strict safety and resource
// bounds: single read-only statement, clamped row limit and offset, and a
// statement-level execution timeout. It is stateless across calls except for
// the shared connection pool.
type Gateway struct {
	pool           *Pool
	config         *Config
	logger         *logrus.Logger
	metricsManager *metrics.Manager
	audit          *history.Store
}

// NewGateway creates a new query gateway. The metrics manager and audit store
// are optional; a nil audit store disables query history recording.
func NewGateway(pool *Pool, config *Config, metricsManager *metrics.Manager, audit *history.Store) *Gateway {
	cfg := *config
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 200
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 2000
	}
	if cfg.DefaultTimeoutMs <= 0 {
		cfg.DefaultTimeoutMs = 15000
	}
	if cfg.MinTimeoutMs <= 0 {
		cfg.MinTimeoutMs = 1000
	}
	if cfg.MaxTimeoutMs <= 0 {
		cfg.MaxTimeoutMs = 60000
	}

	return &Gateway{
		pool:           pool,
		config:         &cfg,
		logger:         utils.GetLogger(),
		metricsManager: metricsManager,
		audit:          audit,
	}
}

// Query validates, wraps, and executes a candidate statement, returning the
// rows plus the limit and offset actually applied after clamping. Every
// failure is surfaced to the caller; nothing is retried or downgraded here.
func (g *Gateway) Query(ctx context.Context, req *models.QueryRequest) (*models.QueryResult, error) {
	start := time.Now()

	cleaned, err := ValidateSQL(req.SQL)
	if err != nil {
		g.observe(ctx, req.SQL, "validation_error", err, start, nil)
		return nil, err
	}

	limit := g.clampLimit(req.Limit)
	offset := clampOffset(req.Offset)
	timeoutMs := g.clampTimeout(req.TimeoutMs)

	result, err := g.execute(ctx, cleaned, req.Params, limit, offset, timeoutMs)
	if err != nil {
		status := "execution_error"
		if utils.IsResourceExhausted(err) {
			status = "resource_exhausted"
		}
		g.observe(ctx, cleaned, status, err, start, nil)
		return nil, err
	}

	g.observe(ctx, cleaned, "ok", nil, start, result)
	return result, nil
}

func (g *Gateway) execute(ctx context.Context, sqlText string, params []interface{}, limit, offset, timeoutMs int) (*models.QueryResult, error) {
	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeExecution,
			"Failed to begin read-only transaction", err.Error())
	}

	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	// SET LOCAL scopes the timeout to this transaction. The value is a
	// clamped integer, never caller text.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", timeoutMs)); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeExecution,
			"Failed to set statement timeout", err.Error())
	}

	base := maxPlaceholder(sqlText)
	if len(params) > base {
		base = len(params)
	}
	wrapped := wrapSQL(sqlText, base)

	args := make([]interface{}, 0, len(params)+2)
	args = append(args, params...)
	args = append(args, limit, offset)

	rows, err := tx.QueryContext(ctx, wrapped, args...)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeExecution,
			"Query execution failed", err.Error())
	}
	defer rows.Close()

	resultRows, err := scanRows(rows)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeExecution,
			"Failed to commit transaction", err.Error())
	}
	committed = true

	return &models.QueryResult{
		RowCount:      len(resultRows),
		Rows:          resultRows,
		AppliedLimit:  limit,
		AppliedOffset: offset,
	}, nil
}

func scanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeExecution,
			"Failed to read result columns", err.Error())
	}

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeExecution,
			"Failed to read result column types", err.Error())
	}
	dbTypes := make([]string, len(columns))
	for i, ct := range colTypes {
		dbTypes[i] = ct.DatabaseTypeName()
	}

	out := []map[string]interface{}{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeExecution,
				"Failed to scan result row", err.Error())
		}

		row := make(map[string]interface{}, len(columns))
		for i, name := range columns {
			row[name] = decodeColumn(values[i], dbTypes[i])
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeExecution,
			"Failed to read result rows", err.Error())
	}

	return out, nil
}

// decodeColumn normalizes driver values for the result envelope. Cells of
// JSON-typed columns decode into the tagged Value union, covering every shape
// jsonb can hold, bare numbers included. Other byte-shaped cells surface as
// strings; a text column containing digits stays text.
func decodeColumn(raw interface{}, dbType string) interface{} {
	b, ok := raw.([]byte)
	if !ok {
		return raw
	}
	if dbType == "JSON" || dbType == "JSONB" {
		if v, err := models.ParseValue(b); err == nil {
			return v
		}
	}
	return string(b)
}

func (g *Gateway) clampLimit(limit *int) int {
	if limit == nil {
		return g.config.DefaultLimit
	}
	if *limit < 0 {
		return 0
	}
	if *limit > g.config.MaxLimit {
		return g.config.MaxLimit
	}
	return *limit
}

func clampOffset(offset *int) int {
	if offset == nil || *offset < 0 {
		return 0
	}
	return *offset
}

func (g *Gateway) clampTimeout(timeoutMs *int) int {
	if timeoutMs == nil {
		return g.config.DefaultTimeoutMs
	}
	if *timeoutMs < g.config.MinTimeoutMs {
		return g.config.MinTimeoutMs
	}
	if *timeoutMs > g.config.MaxTimeoutMs {
		return g.config.MaxTimeoutMs
	}
	return *timeoutMs
}

// observe records metrics and the audit trail for one call. Audit failures
// are logged and never surfaced; auditing must not break query serving.
func (g *Gateway) observe(ctx context.Context, sqlText, status string, callErr error, start time.Time, result *models.QueryResult) {
	duration := time.Since(start)

	if g.metricsManager != nil {
		rowCount := 0
		if result != nil {
			rowCount = result.RowCount
		}
		g.metricsManager.RecordQuery(status, duration, rowCount)
		if status == "validation_error" && callErr != nil {
			var reason string
			if appErr, ok := callErr.(*utils.AppError); ok {
				reason = appErr.Message
			}
			g.metricsManager.RecordValidationFailure(reason)
		}
		stats := g.pool.Stats()
		g.metricsManager.UpdatePoolStats(stats.InUse, stats.OpenConnections)
	}

	if g.audit == nil {
		return
	}

	entry := &history.Entry{
		SQL:        sqlText,
		Status:     status,
		DurationMs: duration.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	if callErr != nil {
		msg := callErr.Error()
		entry.Error = &msg
	}
	if result != nil {
		entry.RowCount = result.RowCount
		entry.AppliedLimit = result.AppliedLimit
		entry.AppliedOffset = result.AppliedOffset
	}

	if err := g.audit.Record(ctx, entry); err != nil {
		g.logger.WithError(err).Warn("Failed to record query history entry")
	}
}

// IsHealthy reports whether the gateway can reach the data store
func (g *Gateway) IsHealthy() bool {
	return g.pool.IsHealthy()
}
