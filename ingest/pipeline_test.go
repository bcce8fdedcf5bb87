package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suchitkumarchennuri/logiq/ai/mock"
	"github.com/suchitkumarchennuri/logiq/core"
	"github.com/suchitkumarchennuri/logiq/storage"
	"github.com/suchitkumarchennuri/logiq/storage/badger"
)

func newTestPipeline(t *testing.T, opts ...Option) (*Pipeline, storage.LogStore) {
	t.Helper()

	store, backend, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		backend.Close()
	})

	pipeline, err := NewPipeline(store, mock.NewMockProvider(), opts...)
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	return pipeline, store
}

func testPayload(message string) core.LogPayload {
	return core.LogPayload{
		Service: "auth-api",
		Level:   "error",
		Message: message,
	}
}

// waitForRecords polls the store until it holds want records or the deadline
// passes. Enqueue is asynchronous, so tests cannot observe writes directly.
func waitForRecords(t *testing.T, store storage.LogStore, query []float32, want int) []core.ScoredRecord {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		results, err := store.Search(context.Background(), query, core.QueryFilter{}, want+10)
		require.NoError(t, err)
		if len(results) >= want {
			return results
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("store never reached %d records", want)
	return nil
}

func TestPipelineRequiresDependencies(t *testing.T) {
	store, backend, err := badger.NewMemoryStore()
	require.NoError(t, err)
	defer backend.Close()
	defer store.Close()

	_, err = NewPipeline(nil, mock.NewMockProvider())
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = NewPipeline(store, nil)
	assert.ErrorIs(t, err, ErrProviderRequired)
}

func TestProcessStoresRecord(t *testing.T) {
	pipeline, store := newTestPipeline(t)
	ctx := context.Background()

	id, err := pipeline.Process(ctx, testPayload("login failed for user 42"))
	require.NoError(t, err)
	require.NotZero(t, id)

	record, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "auth-api", record.Service)
	assert.Equal(t, "ERROR", record.Level) // level normalized to upper case
	assert.Equal(t, "login failed for user 42", record.Message)
	assert.NotEmpty(t, record.Vector)
	assert.False(t, record.Timestamp.IsZero())
}

func TestProcessRejectsInvalidPayload(t *testing.T) {
	pipeline, _ := newTestPipeline(t)

	_, err := pipeline.Process(context.Background(), core.LogPayload{Service: "auth-api", Level: "INFO"})
	require.ErrorIs(t, err, core.ErrInvalidPayload)
	assert.True(t, IsPermanent(err))
}

func TestProcessRepeatableForSamePayload(t *testing.T) {
	pipeline, _ := newTestPipeline(t)
	ctx := context.Background()

	payload := testPayload("redelivered message")
	first, err := pipeline.Process(ctx, payload)
	require.NoError(t, err)
	second, err := pipeline.Process(ctx, payload)
	require.NoError(t, err)

	// At-least-once: a redelivery stores a second record under a new ID.
	assert.NotEqual(t, first, second)
}

func TestEnqueueReturnsImmediately(t *testing.T) {
	pipeline, store := newTestPipeline(t)

	require.NoError(t, pipeline.Enqueue(context.Background(), testPayload("async message")))

	vector := mock.DeterministicVector("async message", 384)
	results := waitForRecords(t, store, vector, 1)
	assert.Equal(t, "async message", results[0].Record.Message)
}

func TestEnqueueDeadLettersInvalidPayload(t *testing.T) {
	var (
		mu      sync.Mutex
		dead    []core.LogPayload
		deadErr error
	)
	pipeline, _ := newTestPipeline(t, WithDeadLetter(func(payload core.LogPayload, err error) {
		mu.Lock()
		defer mu.Unlock()
		dead = append(dead, payload)
		deadErr = err
	}))

	bad := core.LogPayload{Service: "auth-api", Level: "INFO"}
	require.NoError(t, pipeline.Enqueue(context.Background(), bad))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(dead) == 1
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "auth-api", dead[0].Service)
	assert.ErrorIs(t, deadErr, core.ErrInvalidPayload)
}

func TestEnqueueRetriesTransientFailures(t *testing.T) {
	store, backend, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		backend.Close()
	})

	var (
		mu       sync.Mutex
		failures = 2
	)
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		mu.Lock()
		defer mu.Unlock()
		if failures > 0 {
			failures--
			return nil, errors.New("embedding service unavailable")
		}
		return mock.DeterministicVector(text, 384), nil
	}

	pipeline, err := NewPipeline(store, mock.NewMockProviderWithServices(embedder, nil),
		WithRetry(3, time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	require.NoError(t, pipeline.Enqueue(context.Background(), testPayload("flaky embed")))

	vector := mock.DeterministicVector("flaky embed", 384)
	results := waitForRecords(t, store, vector, 1)
	assert.Equal(t, "flaky embed", results[0].Record.Message)
}

func TestEnqueueDeadLettersAfterRetryExhaustion(t *testing.T) {
	store, backend, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		backend.Close()
	})

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("embedding service unavailable")
	}

	var (
		mu   sync.Mutex
		dead int
	)
	pipeline, err := NewPipeline(store, mock.NewMockProviderWithServices(embedder, nil),
		WithRetry(2, time.Millisecond),
		WithDeadLetter(func(core.LogPayload, error) {
			mu.Lock()
			defer mu.Unlock()
			dead++
		}))
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	require.NoError(t, pipeline.Enqueue(context.Background(), testPayload("always fails")))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return dead == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestProcessDefaultsTimestamp(t *testing.T) {
	pipeline, store := newTestPipeline(t)
	ctx := context.Background()

	before := time.Now().UTC()
	id, err := pipeline.Process(ctx, testPayload("no timestamp"))
	require.NoError(t, err)

	record, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, record.Timestamp.Before(before))
}

func TestProcessPreservesTimestamp(t *testing.T) {
	pipeline, store := newTestPipeline(t)
	ctx := context.Background()

	when := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	payload := testPayload("with timestamp")
	payload.Timestamp = when

	id, err := pipeline.Process(ctx, payload)
	require.NoError(t, err)

	record, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, when, record.Timestamp)
}

func TestIsPermanentClassification(t *testing.T) {
	assert.True(t, IsPermanent(core.ErrInvalidPayload))
	assert.True(t, IsPermanent(storage.ErrDimensionMismatch))
	assert.False(t, IsPermanent(errors.New("connection reset")))
	assert.False(t, IsPermanent(storage.ErrUnavailable))
}
