package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err, "Failed to create test storage")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_GetSet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, StatisticsKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, StatisticsKey, []byte(`{"a":1}`)))
	got, err := store.Get(ctx, StatisticsKey)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))

	require.NoError(t, store.Set(ctx, StatisticsKey, []byte(`{"a":2}`)))
	got, err = store.Get(ctx, StatisticsKey)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(got))

	count, err := store.WriteCount(ctx, StatisticsKey)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSQLiteStore_DeleteAndKeys(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "pattern_statistics:metrics", []byte("1")))
	require.NoError(t, store.Set(ctx, "pattern_profiler:report", []byte("2")))
	require.NoError(t, store.Set(ctx, "pattern_statistics:analysis", []byte("3")))

	keys, err := store.Keys(ctx, "pattern_statistics:")
	require.NoError(t, err)
	assert.Equal(t, []string{"pattern_statistics:analysis", "pattern_statistics:metrics"}, keys)

	require.NoError(t, store.Delete(ctx, "pattern_statistics:analysis"))
	assert.ErrorIs(t, store.Delete(ctx, "pattern_statistics:analysis"), ErrNotFound)

	keys, err = store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "patternloop.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, StatisticsKey, []byte("snapshot")))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, StatisticsKey)
	require.NoError(t, err)
	assert.Equal(t, "snapshot", string(got))

	version, err := reopened.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}

func TestSQLiteStore_Closed(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err = store.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, store.Set(context.Background(), "k", nil), ErrClosed)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	value := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", value))
	value[0] = 'z'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got), "stored value must not alias caller slice")

	keys, err := store.Keys(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, keys)

	require.NoError(t, store.Delete(ctx, "k"))
	assert.ErrorIs(t, store.Delete(ctx, "k"), ErrNotFound)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, store.Set(cancelled, "k", nil), context.Canceled)

	require.NoError(t, store.Close())
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBuildModeMatchesDriver(t *testing.T) {
	drivers := map[string]string{"cgo": "sqlite3", "purego": "sqlite"}
	want, ok := drivers[BuildMode]
	require.True(t, ok, "unknown build mode %q", BuildMode)
	assert.Equal(t, want, DriverName)
	assert.Contains(t, sql.Drivers(), DriverName)
}
