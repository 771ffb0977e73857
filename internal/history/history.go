package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/statuswatch/statuswatch/pkg/utils"
)

// Entry is one recorded gateway call: the statement, its outcome, and the
// paging actually applied. Kept locally so operators can audit what the
// assistant ran against the tracker database.
type Entry struct {
	ID            string    `json:"id" db:"id"`
	SQL           string    `json:"sql" db:"sql_text"`
	Status        string    `json:"status" db:"status"` // ok, validation_error, resource_exhausted, execution_error
	Error         *string   `json:"error,omitempty" db:"error"`
	DurationMs    int64     `json:"duration_ms" db:"duration_ms"`
	RowCount      int       `json:"row_count" db:"row_count"`
	AppliedLimit  int       `json:"applied_limit" db:"applied_limit"`
	AppliedOffset int       `json:"applied_offset" db:"applied_offset"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// StoreConfig holds history store configuration
type StoreConfig struct {
	Path string `json:"path"`
}

// Store persists query audit entries in a local SQLite database.
type Store struct {
	db     *sql.DB
	config *StoreConfig
	logger *logrus.Logger
}

// NewStore creates a new history store; Connect must be called before use.
func NewStore(config *StoreConfig) *Store {
	return &Store{
		config: config,
		logger: utils.GetLogger(),
	}
}

// Connect opens the local database and ensures the schema exists
func (s *Store) Connect() error {
	db, err := sql.Open("sqlite", s.config.Path)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to open history database", err.Error())
	}

	// A single writer keeps SQLite happy under concurrent gateway calls.
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE IF NOT EXISTS query_history (
			id             TEXT PRIMARY KEY,
			sql_text       TEXT NOT NULL,
			status         TEXT NOT NULL,
			error          TEXT,
			duration_ms    INTEGER NOT NULL,
			row_count      INTEGER NOT NULL DEFAULT 0,
			applied_limit  INTEGER NOT NULL DEFAULT 0,
			applied_offset INTEGER NOT NULL DEFAULT 0,
			created_at     TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_query_history_created_at
			ON query_history(created_at DESC);
	`
	if _, err := db.Exec(schema); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to migrate history database", err.Error())
	}

	s.db = db
	s.logger.WithField("path", s.config.Path).Info("Query history store connected")
	return nil
}

// Close closes the history store
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Record appends one audit entry. A missing ID or timestamp is filled in.
func (s *Store) Record(ctx context.Context, entry *Entry) error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "History store not connected", "")
	}

	if entry.ID == "" {
		entry.ID = ulid.Make().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO query_history
		(id, sql_text, status, error, duration_ms, row_count, applied_limit, applied_offset, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.SQL, entry.Status, entry.Error, entry.DurationMs,
		entry.RowCount, entry.AppliedLimit, entry.AppliedOffset, entry.CreatedAt)

	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to record history entry", err.Error())
	}

	return nil
}

// Recent returns the most recent entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	if s.db == nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "History store not connected", "")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, sql_text, status, error, duration_ms, row_count, applied_limit, applied_offset, created_at
		FROM query_history
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query history", err.Error())
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var errStr sql.NullString

		err := rows.Scan(&entry.ID, &entry.SQL, &entry.Status, &errStr,
			&entry.DurationMs, &entry.RowCount, &entry.AppliedLimit,
			&entry.AppliedOffset, &entry.CreatedAt)
		if err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan history entry", err.Error())
		}

		if errStr.Valid {
			entry.Error = &errStr.String
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to read history entries", err.Error())
	}

	return entries, nil
}

// Count returns the total number of recorded entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "History store not connected", "")
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM query_history").Scan(&count); err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count history entries", err.Error())
	}
	return count, nil
}
