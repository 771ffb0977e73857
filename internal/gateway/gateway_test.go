package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statuswatch/statuswatch/internal/models"
	"github.com/statuswatch/statuswatch/pkg/utils"
)

func newTestGateway(t *testing.T) (*Gateway, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	pool := NewPoolWithDB(db, &PoolConfig{
		MaxConnections:     2,
		AcquisitionTimeout: time.Second,
	})
	gw := NewGateway(pool, &Config{}, nil, nil)

	return gw, mock, func() { db.Close() }
}

func intPtr(n int) *int { return &n }

func TestQueryWrapsAndClamps(t *testing.T) {
	gw, mock, done := newTestGateway(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL statement_timeout = 15000`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM \( select 1 as x \) AS t LIMIT \$1 OFFSET \$2`).
		WithArgs(2000, 0).
		WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(int64(1)))
	mock.ExpectCommit()

	result, err := gw.Query(context.Background(), &models.QueryRequest{
		SQL:    "select 1 as x",
		Limit:  intPtr(5000),
		Offset: intPtr(-10),
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result.RowCount)
	assert.Equal(t, 2000, result.AppliedLimit)
	assert.Equal(t, 0, result.AppliedOffset)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, int64(1), result.Rows[0]["x"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryShiftsPagingPlaceholders(t *testing.T) {
	gw, mock, done := newTestGateway(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL statement_timeout = 15000`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM \( select \* from field_changes where project_name = \$1 \) AS t LIMIT \$2 OFFSET \$3`).
		WithArgs("Proj A", 200, 40).
		WillReturnRows(sqlmock.NewRows([]string{"item_id"}))
	mock.ExpectCommit()

	result, err := gw.Query(context.Background(), &models.QueryRequest{
		SQL:    "select * from field_changes where project_name = $1",
		Params: []interface{}{"Proj A"},
		Offset: intPtr(40),
	})

	require.NoError(t, err)
	assert.Equal(t, 0, result.RowCount)
	assert.Equal(t, 200, result.AppliedLimit)
	assert.Equal(t, 40, result.AppliedOffset)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryPlaceholdersBeyondParams(t *testing.T) {
	// The inner query references $2 literally but only one param is supplied;
	// paging binds after the highest referenced placeholder either way.
	gw, mock, done := newTestGateway(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL statement_timeout = 15000`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM \( select \$2::int \) AS t LIMIT \$3 OFFSET \$4`).
		WillReturnError(errors.New(`there is no parameter $2`))
	mock.ExpectRollback()

	_, err := gw.Query(context.Background(), &models.QueryRequest{
		SQL:    "select $2::int",
		Params: []interface{}{1},
	})

	require.Error(t, err)
	assert.True(t, utils.IsExecutionError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryValidationFailureSkipsStore(t *testing.T) {
	gw, mock, done := newTestGateway(t)
	defer done()

	cases := []struct {
		sql     string
		message string
	}{
		{"insert into t values (1)", "not a SELECT"},
		{"select 1; select 2", "multiple statements"},
		{"select * from t where x = DROP", "forbidden keyword"},
		{"", "not a SELECT"},
	}

	for _, tc := range cases {
		_, err := gw.Query(context.Background(), &models.QueryRequest{SQL: tc.sql})
		require.Error(t, err, tc.sql)

		appErr, ok := err.(*utils.AppError)
		require.True(t, ok)
		assert.Equal(t, utils.ErrCodeValidation, appErr.Code)
		assert.Equal(t, tc.message, appErr.Message)
	}

	// No expectations were registered: the store must never have been touched.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryTimeoutClamping(t *testing.T) {
	cases := []struct {
		name      string
		timeoutMs *int
		expected  string
	}{
		{"default", nil, "SET LOCAL statement_timeout = 15000"},
		{"below minimum", intPtr(10), "SET LOCAL statement_timeout = 1000"},
		{"above maximum", intPtr(600000), "SET LOCAL statement_timeout = 60000"},
		{"in range", intPtr(2500), "SET LOCAL statement_timeout = 2500"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw, mock, done := newTestGateway(t)
			defer done()

			mock.ExpectBegin()
			mock.ExpectExec(tc.expected).WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery(`SELECT \* FROM \( select 1 \) AS t LIMIT \$1 OFFSET \$2`).
				WithArgs(200, 0).
				WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(int64(1)))
			mock.ExpectCommit()

			_, err := gw.Query(context.Background(), &models.QueryRequest{
				SQL:       "select 1",
				TimeoutMs: tc.timeoutMs,
			})

			require.NoError(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestQueryZeroLimit(t *testing.T) {
	// Limit 0 is policy, not an error: the wrapped query runs and returns
	// zero rows.
	gw, mock, done := newTestGateway(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL statement_timeout = 15000`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM \( select 1 \) AS t LIMIT \$1 OFFSET \$2`).
		WithArgs(0, 0).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectCommit()

	result, err := gw.Query(context.Background(), &models.QueryRequest{
		SQL:   "select 1",
		Limit: intPtr(0),
	})

	require.NoError(t, err)
	assert.Equal(t, 0, result.RowCount)
	assert.Equal(t, 0, result.AppliedLimit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryExecutionErrorRollsBack(t *testing.T) {
	gw, mock, done := newTestGateway(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL statement_timeout = 15000`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM \( select broken \) AS t LIMIT \$1 OFFSET \$2`).
		WillReturnError(errors.New(`column "broken" does not exist`))
	mock.ExpectRollback()

	_, err := gw.Query(context.Background(), &models.QueryRequest{SQL: "select broken"})

	require.Error(t, err)
	assert.True(t, utils.IsExecutionError(err))
	// The underlying detail is preserved, not masked.
	assert.Contains(t, err.Error(), `column "broken" does not exist`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryIdempotent(t *testing.T) {
	gw, mock, done := newTestGateway(t)
	defer done()

	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectExec(`SET LOCAL statement_timeout = 15000`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT \* FROM \( select item_id from field_values \) AS t LIMIT \$1 OFFSET \$2`).
			WithArgs(200, 0).
			WillReturnRows(sqlmock.NewRows([]string{"item_id"}).AddRow("ITEM_A_1").AddRow("ITEM_A_2"))
		mock.ExpectCommit()
	}

	req := &models.QueryRequest{SQL: "select item_id from field_values"}

	first, err := gw.Query(context.Background(), req)
	require.NoError(t, err)
	second, err := gw.Query(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.RowCount, second.RowCount)
	assert.Equal(t, first.Rows, second.Rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecodeColumn(t *testing.T) {
	// JSON-typed cells become tagged values, whatever shape they hold.
	v := decodeColumn([]byte(`{"labels": ["bug", "p1"], "count": 2}`), "JSONB")
	value, ok := v.(models.Value)
	require.True(t, ok)
	assert.Equal(t, models.KindObject, value.Kind)
	assert.Equal(t, models.KindArray, value.Object["labels"].Kind)

	v = decodeColumn([]byte(`"Done"`), "JSONB")
	value, ok = v.(models.Value)
	require.True(t, ok)
	assert.Equal(t, models.KindString, value.Kind)
	assert.Equal(t, "Done", value.Str)

	v = decodeColumn([]byte(`123`), "JSONB")
	value, ok = v.(models.Value)
	require.True(t, ok)
	assert.Equal(t, models.KindNumber, value.Kind)
	assert.Equal(t, float64(123), value.Number)

	v = decodeColumn([]byte(`true`), "JSON")
	value, ok = v.(models.Value)
	require.True(t, ok)
	assert.Equal(t, models.KindBool, value.Kind)
	assert.True(t, value.Bool)

	v = decodeColumn([]byte(`null`), "JSONB")
	value, ok = v.(models.Value)
	require.True(t, ok)
	assert.True(t, value.IsNull())

	// Text cells stay text, even when they contain digits or JSON-looking
	// punctuation.
	assert.Equal(t, "Done", decodeColumn([]byte("Done"), "TEXT"))
	assert.Equal(t, "123", decodeColumn([]byte("123"), "TEXT"))
	assert.Equal(t, `{"raw"}`, decodeColumn([]byte(`{"raw"}`), "TEXT"))

	// Non-byte driver values pass through untouched.
	assert.Equal(t, int64(7), decodeColumn(int64(7), "INT8"))
	now := time.Now()
	assert.Equal(t, now, decodeColumn(now, "TIMESTAMPTZ"))
	assert.Nil(t, decodeColumn(nil, "JSONB"))
}

func TestQueryDecodesJSONColumns(t *testing.T) {
	gw, mock, done := newTestGateway(t)
	defer done()

	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("item_id").OfType("TEXT", ""),
		sqlmock.NewColumn("new_value").OfType("JSONB", []byte(nil)))
	rows.AddRow("ITEM_A_1", []byte(`3`)).
		AddRow("ITEM_A_2", []byte(`"Done"`)).
		AddRow("ITEM_A_3", []byte(`["bug", "p1"]`))

	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL statement_timeout = 15000`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM \( select item_id, new_value from field_changes \) AS t LIMIT \$1 OFFSET \$2`).
		WithArgs(200, 0).
		WillReturnRows(rows)
	mock.ExpectCommit()

	result, err := gw.Query(context.Background(), &models.QueryRequest{
		SQL: "select item_id, new_value from field_changes",
	})
	require.NoError(t, err)
	require.Equal(t, 3, result.RowCount)

	// A bare jsonb number surfaces as the number variant, not a string.
	number, ok := result.Rows[0]["new_value"].(models.Value)
	require.True(t, ok)
	assert.Equal(t, models.KindNumber, number.Kind)
	assert.Equal(t, float64(3), number.Number)

	str, ok := result.Rows[1]["new_value"].(models.Value)
	require.True(t, ok)
	assert.Equal(t, "Done", str.Str)

	arr, ok := result.Rows[2]["new_value"].(models.Value)
	require.True(t, ok)
	require.Equal(t, models.KindArray, arr.Kind)
	assert.Equal(t, "bug", arr.Array[0].Str)

	// The text column is untouched by JSON decoding.
	assert.Equal(t, "ITEM_A_1", result.Rows[0]["item_id"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClampBounds(t *testing.T) {
	gw := NewGateway(NewPoolWithDB(nil, &PoolConfig{}), &Config{}, nil, nil)

	assert.Equal(t, 200, gw.clampLimit(nil))
	assert.Equal(t, 0, gw.clampLimit(intPtr(-1)))
	assert.Equal(t, 0, gw.clampLimit(intPtr(0)))
	assert.Equal(t, 1500, gw.clampLimit(intPtr(1500)))
	assert.Equal(t, 2000, gw.clampLimit(intPtr(2000)))
	assert.Equal(t, 2000, gw.clampLimit(intPtr(5000)))

	assert.Equal(t, 0, clampOffset(nil))
	assert.Equal(t, 0, clampOffset(intPtr(-10)))
	assert.Equal(t, 30, clampOffset(intPtr(30)))

	assert.Equal(t, 15000, gw.clampTimeout(nil))
	assert.Equal(t, 1000, gw.clampTimeout(intPtr(0)))
	assert.Equal(t, 1000, gw.clampTimeout(intPtr(999)))
	assert.Equal(t, 60000, gw.clampTimeout(intPtr(60001)))
	assert.Equal(t, 30000, gw.clampTimeout(intPtr(30000)))
}

func TestPoolAcquireNotConnected(t *testing.T) {
	pool := NewPool(&PoolConfig{AcquisitionTimeout: time.Second})

	_, err := pool.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, utils.IsConnectionError(err))
}

func TestPoolAcquireExhaustion(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// A single connection held for the duration of the test forces the
	// second acquisition to wait out its timeout.
	db.SetMaxOpenConns(1)

	pool := NewPoolWithDB(db, &PoolConfig{
		MaxConnections:     1,
		AcquisitionTimeout: 50 * time.Millisecond,
	})

	held, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer held.Close()

	_, err = pool.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, utils.IsResourceExhausted(err))

	var appErr *utils.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, utils.ErrCodeResourceExhausted, appErr.Code)
}

func TestPoolReleasesConnection(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	db.SetMaxOpenConns(1)

	pool := NewPoolWithDB(db, &PoolConfig{
		MaxConnections:     1,
		AcquisitionTimeout: 100 * time.Millisecond,
	})

	conn, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	// Released connection is immediately available again.
	conn2, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, conn2.Close())
}
