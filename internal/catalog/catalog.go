package catalog

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/statuswatch/statuswatch/internal/gateway"
	"github.com/statuswatch/statuswatch/internal/models"
	"github.com/statuswatch/statuswatch/pkg/utils"
)

// The two tracked tables. The catalog introspects these and nothing else.
var trackedTables = []string{"field_changes", "field_values"}

// usageSummary is hand-authored, not derived from the live introspection, so
// the semantic guidance (what a column means) survives schema drift that raw
// introspection would miss.
const usageSummary = `The tracker database has two tables.

field_changes is an append-only log of field mutations on tracked items. One
row per change: project_name, item_id, field_name, field_type, old_value and
new_value (JSON: scalar, array, or object), changed_at (when the change
happened), detected_at (when it was noticed), and an optional actor. Rows are
unique on (item_id, field_name, changed_at). The reserved field_name
'__deleted__' marks item deletion (old_value = true, new_value = null).

field_values holds the current value of each field on each item, unique on
(item_id, field_name) and updated in place. No rows for an item means it was
never observed or has been deleted.

Common query patterns:
- What's new: SELECT * FROM field_changes WHERE changed_at > $1 ORDER BY changed_at DESC
- Current state of an item: SELECT field_name, value FROM field_values WHERE item_id = $1
- Filter by project and field: SELECT * FROM field_changes WHERE project_name = $1 AND field_name = $2
- Who changed what: SELECT actor, COUNT(*) FROM field_changes WHERE changed_at BETWEEN $1 AND $2 GROUP BY actor`

// Catalog answers "what does the data look like and how should I query it"
// without requiring the caller to already know the table layout.
type Catalog struct {
	pool   *gateway.Pool
	logger *logrus.Logger
}

// NewCatalog creates a new schema catalog service
func NewCatalog(pool *gateway.Pool) *Catalog {
	return &Catalog{
		pool:   pool,
		logger: utils.GetLogger(),
	}
}

// Schema introspects the live layout of the two tracked tables inside a
// single read-only transaction and returns it with the usage summary. On any
// failure the transaction is rolled back and a CONNECTION_ERROR is returned;
// no partial results are ever produced.
func (c *Catalog) Schema(ctx context.Context) (*models.SchemaBundle, error) {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeConnection,
			"Failed to reach tracker database", err.Error())
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeConnection,
			"Failed to begin introspection transaction", err.Error())
	}

	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	columns, err := c.introspectColumns(ctx, tx)
	if err != nil {
		return nil, err
	}

	indexes, err := c.introspectIndexes(ctx, tx)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeConnection,
			"Failed to commit introspection transaction", err.Error())
	}
	committed = true

	return &models.SchemaBundle{
		Columns: columns,
		Indexes: indexes,
		Summary: usageSummary,
	}, nil
}

func (c *Catalog) introspectColumns(ctx context.Context, tx *sql.Tx) ([]models.ColumnInfo, error) {
	query := `
		SELECT table_name, column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_name = ANY($1)
		ORDER BY table_name, ordinal_position
	`

	rows, err := tx.QueryContext(ctx, query, pq.Array(trackedTables))
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeConnection,
			"Failed to introspect columns", err.Error())
	}
	defer rows.Close()

	var columns []models.ColumnInfo
	for rows.Next() {
		var col models.ColumnInfo
		var nullable string

		if err := rows.Scan(&col.Table, &col.Name, &col.DataType, &nullable); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeConnection,
				"Failed to scan column metadata", err.Error())
		}

		col.IsNullable = nullable == "YES"
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeConnection,
			"Failed to read column metadata", err.Error())
	}

	return columns, nil
}

func (c *Catalog) introspectIndexes(ctx context.Context, tx *sql.Tx) ([]models.IndexInfo, error) {
	query := `
		SELECT tablename, indexname, indexdef
		FROM pg_indexes
		WHERE tablename = ANY($1)
		ORDER BY tablename, indexname
	`

	rows, err := tx.QueryContext(ctx, query, pq.Array(trackedTables))
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeConnection,
			"Failed to introspect indexes", err.Error())
	}
	defer rows.Close()

	var indexes []models.IndexInfo
	for rows.Next() {
		var idx models.IndexInfo

		if err := rows.Scan(&idx.Table, &idx.Name, &idx.Definition); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeConnection,
				"Failed to scan index metadata", err.Error())
		}

		indexes = append(indexes, idx)
	}

	if err := rows.Err(); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeConnection,
			"Failed to read index metadata", err.Error())
	}

	return indexes, nil
}

// IsHealthy reports whether the catalog can reach the data store
func (c *Catalog) IsHealthy() bool {
	return c.pool.IsHealthy()
}
