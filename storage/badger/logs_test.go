package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suchitkumarchennuri/logiq/core"
	"github.com/suchitkumarchennuri/logiq/storage"
)

const testDims = 4

func newTestStore(t *testing.T) storage.LogStore {
	t.Helper()

	store, backend, err := NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		backend.Close()
	})

	require.NoError(t, store.Bootstrap(context.Background(), testDims))
	return store
}

func testRecord(service, level, message string, vector []float32) *core.LogRecord {
	return &core.LogRecord{
		Service: service,
		Level:   level,
		Message: message,
		Vector:  vector,
	}
}

func TestStoreAddAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	records, err := store.Add(ctx, testRecord("api", "ERROR", "connection refused", []float32{1, 0, 0, 0}))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.NotZero(t, records[0].Id)
	assert.False(t, records[0].CreatedAt.IsZero())
	assert.False(t, records[0].Timestamp.IsZero())

	got, err := store.Get(ctx, records[0].Id)
	require.NoError(t, err)
	assert.Equal(t, "api", got.Service)
	assert.Equal(t, "ERROR", got.Level)
	assert.Equal(t, "connection refused", got.Message)
	assert.Equal(t, []float32{1, 0, 0, 0}, got.Vector)
}

func TestStoreGetNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), core.ID(9999))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStoreAddAssignsDistinctIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Add(ctx, testRecord("api", "INFO", "same message", []float32{1, 0, 0, 0}))
	require.NoError(t, err)
	second, err := store.Add(ctx, testRecord("api", "INFO", "same message", []float32{1, 0, 0, 0}))
	require.NoError(t, err)

	assert.NotEqual(t, first[0].Id, second[0].Id)
}

func TestStoreAddRejectsMissingVector(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Add(context.Background(), testRecord("api", "INFO", "no vector", nil))
	assert.ErrorIs(t, err, storage.ErrMissingEmbedding)
}

func TestStoreAddRejectsWrongDimension(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Add(context.Background(), testRecord("api", "INFO", "short vector", []float32{1, 0}))
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
}

func TestStoreAddIsAtomic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	good := testRecord("api", "INFO", "good", []float32{1, 0, 0, 0})
	bad := testRecord("api", "INFO", "bad", []float32{1, 0})
	_, err := store.Add(ctx, good, bad)
	require.ErrorIs(t, err, storage.ErrDimensionMismatch)

	results, err := store.Search(ctx, []float32{1, 0, 0, 0}, core.QueryFilter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStoreRequiresBootstrap(t *testing.T) {
	store, backend, err := NewMemoryStore()
	require.NoError(t, err)
	defer backend.Close()
	defer store.Close()

	_, err = store.Add(context.Background(), testRecord("api", "INFO", "msg", []float32{1, 0, 0, 0}))
	assert.ErrorIs(t, err, storage.ErrNotBootstrapped)

	_, err = store.Search(context.Background(), []float32{1, 0, 0, 0}, core.QueryFilter{}, 5)
	assert.ErrorIs(t, err, storage.ErrNotBootstrapped)
}

func TestStoreBootstrapIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Bootstrap(ctx, testDims))
	assert.ErrorIs(t, store.Bootstrap(ctx, testDims+1), storage.ErrDimensionMismatch)
}

func TestStoreBootstrapConcurrent(t *testing.T) {
	store, backend, err := NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		backend.Close()
	})

	const goroutines = 8
	errs := make(chan error, goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			errs <- store.Bootstrap(context.Background(), testDims)
		}()
	}
	for i := 0; i < goroutines; i++ {
		assert.NoError(t, <-errs)
	}
}

func TestStoreSearchOrdersByDistance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx,
		testRecord("api", "INFO", "exact", []float32{1, 0, 0, 0}),
		testRecord("api", "INFO", "close", []float32{0.9, 0.1, 0, 0}),
		testRecord("api", "INFO", "far", []float32{0, 1, 0, 0}),
	)
	require.NoError(t, err)

	results, err := store.Search(ctx, []float32{1, 0, 0, 0}, core.QueryFilter{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "exact", results[0].Record.Message)
	assert.Equal(t, "close", results[1].Record.Message)
	assert.Equal(t, "far", results[2].Record.Message)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-6)
	assert.LessOrEqual(t, results[0].Distance, results[1].Distance)
	assert.LessOrEqual(t, results[1].Distance, results[2].Distance)
}

func TestStoreSearchBreaksTiesByRecency(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := testRecord("api", "INFO", "older", []float32{1, 0, 0, 0})
	older.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := testRecord("api", "INFO", "newer", []float32{1, 0, 0, 0})
	newer.CreatedAt = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err := store.Add(ctx, older, newer)
	require.NoError(t, err)

	results, err := store.Search(ctx, []float32{1, 0, 0, 0}, core.QueryFilter{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "newer", results[0].Record.Message)
	assert.Equal(t, "older", results[1].Record.Message)
}

func TestStoreSearchAppliesFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx,
		testRecord("api", "ERROR", "api error", []float32{1, 0, 0, 0}),
		testRecord("api", "INFO", "api info", []float32{1, 0, 0, 0}),
		testRecord("worker", "ERROR", "worker error", []float32{1, 0, 0, 0}),
	)
	require.NoError(t, err)

	results, err := store.Search(ctx, []float32{1, 0, 0, 0}, core.QueryFilter{Service: "api", Level: "ERROR"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "api error", results[0].Record.Message)
}

func TestStoreSearchRespectsLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.Add(ctx, testRecord("api", "INFO", "msg", []float32{1, 0, 0, 0}))
		require.NoError(t, err)
	}

	results, err := store.Search(ctx, []float32{1, 0, 0, 0}, core.QueryFilter{}, 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestStoreSearchEmptyStore(t *testing.T) {
	store := newTestStore(t)

	results, err := store.Search(context.Background(), []float32{1, 0, 0, 0}, core.QueryFilter{}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStoreSearchRejectsWrongQueryDimension(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Search(context.Background(), []float32{1, 0}, core.QueryFilter{}, 5)
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
}

func TestStorePersistsAcrossStoreInstances(t *testing.T) {
	dir := t.TempDir()

	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	store, err := NewStore(backend)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Bootstrap(ctx, testDims))
	records, err := store.Add(ctx, testRecord("api", "INFO", "persisted", []float32{1, 0, 0, 0}))
	require.NoError(t, err)

	require.NoError(t, store.Close())
	require.NoError(t, backend.Close())

	backend, err = OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()
	store, err = NewStore(backend)
	require.NoError(t, err)
	defer store.Close()

	// Dimension is reloaded from the meta key, not re-bootstrapped.
	got, err := store.Get(ctx, records[0].Id)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Message)

	assert.ErrorIs(t, store.Bootstrap(ctx, testDims+1), storage.ErrDimensionMismatch)
}
