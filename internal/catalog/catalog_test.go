package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statuswatch/statuswatch/internal/gateway"
	"github.com/statuswatch/statuswatch/pkg/utils"
)

func newTestCatalog(t *testing.T) (*Catalog, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	pool := gateway.NewPoolWithDB(db, &gateway.PoolConfig{
		MaxConnections:     2,
		AcquisitionTimeout: time.Second,
	})

	return NewCatalog(pool), mock, func() { db.Close() }
}

func TestSchemaReturnsBundle(t *testing.T) {
	cat, mock, done := newTestCatalog(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM information_schema\.columns`).
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "data_type", "is_nullable"}).
			AddRow("field_changes", "project_name", "text", "NO").
			AddRow("field_changes", "old_value", "jsonb", "YES").
			AddRow("field_changes", "actor", "text", "YES").
			AddRow("field_values", "item_id", "text", "NO").
			AddRow("field_values", "value", "jsonb", "YES"))
	mock.ExpectQuery(`FROM pg_indexes`).
		WillReturnRows(sqlmock.NewRows([]string{"tablename", "indexname", "indexdef"}).
			AddRow("field_changes", "field_changes_pkey",
				"CREATE UNIQUE INDEX field_changes_pkey ON field_changes (item_id, field_name, changed_at)").
			AddRow("field_values", "field_values_pkey",
				"CREATE UNIQUE INDEX field_values_pkey ON field_values (item_id, field_name)"))
	mock.ExpectCommit()

	bundle, err := cat.Schema(context.Background())
	require.NoError(t, err)

	require.Len(t, bundle.Columns, 5)
	assert.Equal(t, "field_changes", bundle.Columns[0].Table)
	assert.Equal(t, "project_name", bundle.Columns[0].Name)
	assert.False(t, bundle.Columns[0].IsNullable)
	assert.True(t, bundle.Columns[1].IsNullable)

	require.Len(t, bundle.Indexes, 2)
	assert.Equal(t, "field_changes_pkey", bundle.Indexes[0].Name)
	assert.Contains(t, bundle.Indexes[0].Definition, "item_id, field_name, changed_at")

	// The summary is hand-authored guidance, not introspection output.
	assert.Contains(t, bundle.Summary, "field_changes")
	assert.Contains(t, bundle.Summary, "field_values")
	assert.Contains(t, bundle.Summary, "__deleted__")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaIntrospectionFailure(t *testing.T) {
	cat, mock, done := newTestCatalog(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM information_schema\.columns`).
		WillReturnError(errors.New("connection refused"))
	mock.ExpectRollback()

	_, err := cat.Schema(context.Background())
	require.Error(t, err)
	assert.True(t, utils.IsConnectionError(err))
	assert.Contains(t, err.Error(), "connection refused")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaIndexFailureReturnsNoPartialResults(t *testing.T) {
	cat, mock, done := newTestCatalog(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM information_schema\.columns`).
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "data_type", "is_nullable"}).
			AddRow("field_changes", "item_id", "text", "NO"))
	mock.ExpectQuery(`FROM pg_indexes`).
		WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	bundle, err := cat.Schema(context.Background())
	require.Error(t, err)
	assert.Nil(t, bundle)
	assert.True(t, utils.IsConnectionError(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}
