package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store := NewStore(&StoreConfig{Path: filepath.Join(t.TempDir(), "history.db")})
	require.NoError(t, store.Connect())
	t.Cleanup(func() { store.Close() })

	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	entries := []*Entry{
		{SQL: "select 1", Status: "ok", DurationMs: 3, RowCount: 1, AppliedLimit: 200, CreatedAt: base},
		{SQL: "insert into t values (1)", Status: "validation_error", CreatedAt: base.Add(time.Minute)},
		{SQL: "select broken", Status: "execution_error", DurationMs: 12, CreatedAt: base.Add(2 * time.Minute)},
	}
	errMsg := `column "broken" does not exist`
	entries[2].Error = &errMsg

	for _, entry := range entries {
		require.NoError(t, store.Record(ctx, entry))
		assert.NotEmpty(t, entry.ID)
	}

	recent, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)

	// Newest first.
	assert.Equal(t, "select broken", recent[0].SQL)
	assert.Equal(t, "execution_error", recent[0].Status)
	require.NotNil(t, recent[0].Error)
	assert.Equal(t, errMsg, *recent[0].Error)

	assert.Equal(t, "select 1", recent[2].SQL)
	assert.Equal(t, 200, recent[2].AppliedLimit)
	assert.Nil(t, recent[2].Error)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestRecentLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(ctx, &Entry{
			SQL:       "select 1",
			Status:    "ok",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	// Non-positive limits fall back to the default.
	recent, err = store.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 5)
}

func TestRecordFillsDefaults(t *testing.T) {
	store := newTestStore(t)

	entry := &Entry{SQL: "select 1", Status: "ok"}
	require.NoError(t, store.Record(context.Background(), entry))

	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
}

func TestNotConnected(t *testing.T) {
	store := NewStore(&StoreConfig{Path: "unused.db"})

	err := store.Record(context.Background(), &Entry{SQL: "select 1", Status: "ok"})
	assert.Error(t, err)

	_, err = store.Recent(context.Background(), 10)
	assert.Error(t, err)
}
