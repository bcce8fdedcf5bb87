package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suchitkumarchennuri/logiq/ai"
	"github.com/suchitkumarchennuri/logiq/ai/mock"
	"github.com/suchitkumarchennuri/logiq/core"
	"github.com/suchitkumarchennuri/logiq/storage"
	"github.com/suchitkumarchennuri/logiq/storage/badger"
)

func newTestStore(t *testing.T, provider ai.Provider) storage.LogStore {
	t.Helper()

	store, backend, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		backend.Close()
	})

	require.NoError(t, store.Bootstrap(context.Background(), provider.Dimensions()))
	return store
}

func seedLogs(t *testing.T, store storage.LogStore, provider ai.Provider, messages ...string) {
	t.Helper()
	ctx := context.Background()

	for _, message := range messages {
		vector, err := provider.Embedder().EmbedText(ctx, message)
		require.NoError(t, err)
		_, err = store.Add(ctx, &core.LogRecord{
			Service: "auth-api",
			Level:   "ERROR",
			Message: message,
			Vector:  vector,
		})
		require.NoError(t, err)
	}
}

func TestAnswerRetrievesRelevantLog(t *testing.T) {
	provider := mock.NewMockProvider()
	store := newTestStore(t, provider)
	seedLogs(t, store, provider,
		"login failed for user 42: invalid credentials",
		"cache warmed in 300ms",
		"scheduled job completed",
	)

	pipeline, err := NewPipeline(store, provider)
	require.NoError(t, err)

	// The mock embedder is deterministic, so querying with the exact
	// message text retrieves that record at distance zero.
	response, err := pipeline.Answer(context.Background(), "login failed for user 42: invalid credentials", core.QueryFilter{})
	require.NoError(t, err)

	require.NotEmpty(t, response.Contexts)
	assert.Equal(t, "login failed for user 42: invalid credentials", response.Contexts[0].Record.Message)
	assert.InDelta(t, 0.0, response.Contexts[0].Distance, 1e-5)
	assert.NotEmpty(t, response.Answer)
}

func TestAnswerRejectsEmptyQuestion(t *testing.T) {
	provider := mock.NewMockProvider()
	store := newTestStore(t, provider)

	pipeline, err := NewPipeline(store, provider)
	require.NoError(t, err)

	_, err = pipeline.Answer(context.Background(), "  ", core.QueryFilter{})
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestAnswerNoMatches(t *testing.T) {
	provider := mock.NewMockProvider()
	store := newTestStore(t, provider)
	seedLogs(t, store, provider, "login failed for user 42")

	pipeline, err := NewPipeline(store, provider)
	require.NoError(t, err)

	// A filter matching nothing yields the explicit no-match answer and no
	// error; the generator is not consulted.
	generator := provider.(*mock.MockProvider).GetMockGenerator()
	generator.GenerateFunc = func(context.Context, string, []*core.LogRecord) (string, error) {
		t.Fatal("generator must not be invoked with empty context")
		return "", nil
	}

	response, err := pipeline.Answer(context.Background(), "why did payments fail?",
		core.QueryFilter{Service: "payments-api"})
	require.NoError(t, err)
	assert.Equal(t, NoMatchAnswer, response.Answer)
	assert.Empty(t, response.Contexts)
	assert.Zero(t, response.UsedK)
	assert.NotZero(t, response.RequestedK)
}

func TestAnswerClampsLimit(t *testing.T) {
	provider := mock.NewMockProvider()
	store := newTestStore(t, provider)
	seedLogs(t, store, provider, "a", "b", "c")

	pipeline, err := NewPipeline(store, provider, WithLimits(2, 4))
	require.NoError(t, err)
	ctx := context.Background()

	response, err := pipeline.Answer(ctx, "anything", core.QueryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, response.RequestedK) // zero limit falls back to default

	response, err = pipeline.Answer(ctx, "anything", core.QueryFilter{Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, 4, response.RequestedK) // oversized limit clamped to max
}

func TestAnswerCapsContextLogs(t *testing.T) {
	provider := mock.NewMockProvider()
	store := newTestStore(t, provider)
	seedLogs(t, store, provider, "m1", "m2", "m3", "m4", "m5")

	pipeline, err := NewPipeline(store, provider, WithLimits(5, 50), WithMaxContextLogs(2))
	require.NoError(t, err)

	response, err := pipeline.Answer(context.Background(), "anything", core.QueryFilter{Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, response.RequestedK)
	assert.Equal(t, 2, response.UsedK)
	assert.Len(t, response.Contexts, 2)
	assert.LessOrEqual(t, response.UsedK, response.RequestedK)
}

func TestAnswerTrimsToTokenBudget(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	generator := mock.NewMockGenerator()
	// CountTokens is len/4; a 40-token window holds the question plus only
	// the first message.
	generator.Window = 40
	provider := mock.NewMockProviderWithServices(embedder, generator)

	store := newTestStore(t, provider)
	seedLogs(t, store, provider,
		strings.Repeat("x", 80),
		strings.Repeat("y", 80),
		strings.Repeat("z", 80),
	)

	pipeline, err := NewPipeline(store, provider)
	require.NoError(t, err)

	response, err := pipeline.Answer(context.Background(), strings.Repeat("q", 40), core.QueryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, response.UsedK)
}

func TestAnswerFallbackWithoutGenerator(t *testing.T) {
	provider := mock.NewMockProviderWithoutGenerator()
	store := newTestStore(t, provider)
	seedLogs(t, store, provider, "first message", "second message")

	pipeline, err := NewPipeline(store, provider)
	require.NoError(t, err)

	query := "first message"
	response, err := pipeline.Answer(context.Background(), query, core.QueryFilter{})
	require.NoError(t, err)

	// Fallback joins the retrieved messages in rank order.
	var messages []string
	for _, scored := range response.Contexts {
		messages = append(messages, scored.Record.Message)
	}
	assert.Equal(t, strings.Join(messages, "\n"), response.Answer)

	// Deterministic: the same query yields the identical answer.
	again, err := pipeline.Answer(context.Background(), query, core.QueryFilter{})
	require.NoError(t, err)
	assert.Equal(t, response.Answer, again.Answer)
}

func TestAnswerFallbackOnGeneratorError(t *testing.T) {
	provider := mock.NewMockProvider()
	generator := provider.(*mock.MockProvider).GetMockGenerator()
	generator.GenerateFunc = func(context.Context, string, []*core.LogRecord) (string, error) {
		return "", errors.New("model exploded")
	}

	store := newTestStore(t, provider)
	seedLogs(t, store, provider, "only message")

	pipeline, err := NewPipeline(store, provider)
	require.NoError(t, err)

	response, err := pipeline.Answer(context.Background(), "what happened?", core.QueryFilter{})
	require.NoError(t, err)
	assert.Equal(t, "only message", response.Answer)
	require.Len(t, response.Contexts, 1) // context intact despite synthesis failure
	assert.Equal(t, 1, response.UsedK)
}

func TestAnswerFallbackOnGeneratorTimeout(t *testing.T) {
	provider := mock.NewMockProvider()
	generator := provider.(*mock.MockProvider).GetMockGenerator()
	generator.GenerateFunc = func(ctx context.Context, _ string, _ []*core.LogRecord) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	store := newTestStore(t, provider)
	seedLogs(t, store, provider, "slow generator message")

	pipeline, err := NewPipeline(store, provider,
		WithTimeouts(time.Second, time.Second, 20*time.Millisecond))
	require.NoError(t, err)

	response, err := pipeline.Answer(context.Background(), "what happened?", core.QueryFilter{})
	require.NoError(t, err)
	assert.Equal(t, "slow generator message", response.Answer)
	assert.Equal(t, 1, response.UsedK)
}

func TestAnswerFailsOnEmbedError(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return nil, errors.New("embedding endpoint down")
	}
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockGenerator())
	store := newTestStore(t, provider)

	pipeline, err := NewPipeline(store, provider)
	require.NoError(t, err)

	_, err = pipeline.Answer(context.Background(), "anything", core.QueryFilter{})
	assert.Error(t, err)
}

func TestAnswerFiltersNarrowOnly(t *testing.T) {
	provider := mock.NewMockProvider()
	store := newTestStore(t, provider)
	ctx := context.Background()

	vector, err := provider.Embedder().EmbedText(ctx, "shared message")
	require.NoError(t, err)
	for _, service := range []string{"auth-api", "payments-api"} {
		_, err = store.Add(ctx, &core.LogRecord{
			Service: service,
			Level:   "ERROR",
			Message: "shared message",
			Vector:  vector,
		})
		require.NoError(t, err)
	}

	pipeline, err := NewPipeline(store, provider)
	require.NoError(t, err)

	unfiltered, err := pipeline.Answer(ctx, "shared message", core.QueryFilter{})
	require.NoError(t, err)
	filtered, err := pipeline.Answer(ctx, "shared message", core.QueryFilter{Service: "auth-api"})
	require.NoError(t, err)

	assert.Len(t, unfiltered.Contexts, 2)
	assert.Len(t, filtered.Contexts, 1)
	assert.LessOrEqual(t, len(filtered.Contexts), len(unfiltered.Contexts))
}
