package gateway

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/statuswatch/statuswatch/pkg/utils"
)

// PoolConfig holds connection pool configuration
type PoolConfig struct {
	ConnectionString   string        `json:"connection_string"`
	MaxConnections     int           `json:"max_connections"`
	MaxIdleTime        time.Duration `json:"max_idle_time"`
	AcquisitionTimeout time.Duration `json:"acquisition_timeout"`
}

// Pool is the single shared resource of the process: a bounded connection
// pool over the tracker database. It is initialized once at startup, injected
// into the gateway and catalog, and closed on shutdown.
type Pool struct {
	db     *sql.DB
	config *PoolConfig
	logger *logrus.Logger
}

// NewPool creates a new pool handle; Connect must be called before use.
func NewPool(config *PoolConfig) *Pool {
	return &Pool{
		config: config,
		logger: utils.GetLogger(),
	}
}

// NewPoolWithDB wraps an already-open database handle. Used by tests to
// substitute a mock driver.
func NewPoolWithDB(db *sql.DB, config *PoolConfig) *Pool {
	return &Pool{
		db:     db,
		config: config,
		logger: utils.GetLogger(),
	}
}

// Connect opens the database and configures pool bounds
func (p *Pool) Connect() error {
	db, err := sql.Open("postgres", p.config.ConnectionString)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeConnection, "Failed to open tracker database", err.Error())
	}

	// Configure connection pool
	db.SetMaxOpenConns(p.config.MaxConnections)
	db.SetMaxIdleConns(p.config.MaxConnections)
	db.SetConnMaxIdleTime(p.config.MaxIdleTime)

	// Test connection
	if err := db.Ping(); err != nil {
		return utils.NewAppError(utils.ErrCodeConnection, "Failed to ping tracker database", err.Error())
	}

	p.db = db
	p.logger.WithField("max_connections", p.config.MaxConnections).Info("Tracker database connected")

	return nil
}

// Close closes the pool
func (p *Pool) Close() error {
	if p.db != nil {
		err := p.db.Close()
		p.db = nil
		p.logger.Info("Tracker database pool closed")
		return err
	}
	return nil
}

// Ping checks database connectivity
func (p *Pool) Ping() error {
	if p.db == nil {
		return utils.NewAppError(utils.ErrCodeConnection, "Database not connected", "")
	}
	return p.db.Ping()
}

// Acquire checks a dedicated connection out of the pool. The wait is bounded
// by the pool-level acquisition timeout, separate from any statement timeout;
// exceeding it fails with RESOURCE_EXHAUSTED. The caller owns the connection
// exclusively until it calls Close, which returns it to the pool.
func (p *Pool) Acquire(ctx context.Context) (*sql.Conn, error) {
	if p.db == nil {
		return nil, utils.NewAppError(utils.ErrCodeConnection, "Database not connected", "")
	}

	timeout := p.config.AcquisitionTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	acquireCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := p.db.Conn(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, utils.NewAppError(utils.ErrCodeResourceExhausted,
				"No pooled connection available", err.Error())
		}
		return nil, utils.NewAppError(utils.ErrCodeConnection,
			"Failed to acquire connection", err.Error())
	}

	return conn, nil
}

// Stats reports pool usage for metrics and the stats endpoint
func (p *Pool) Stats() sql.DBStats {
	if p.db == nil {
		return sql.DBStats{}
	}
	return p.db.Stats()
}

// IsHealthy reports whether the pool can reach the database
func (p *Pool) IsHealthy() bool {
	return p.Ping() == nil
}
