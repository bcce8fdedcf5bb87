package ai

import (
	"context"

	"github.com/suchitkumarchennuri/logiq/core"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator synthesizes a natural-language answer from a question and a set
// of retrieved log records. Implementations must be thread-safe for
// concurrent use.
//
// A Generator never truncates its input: the caller is responsible for
// ensuring the assembled context fits within ContextWindow tokens before
// invoking Generate.
type Generator interface {
	// Generate produces an answer to the question grounded in the given
	// records. The records are supplied in relevance order.
	Generate(ctx context.Context, question string, records []*core.LogRecord) (string, error)

	// ContextWindow returns the model's context window size in tokens.
	ContextWindow() int

	// CountTokens estimates the number of tokens the text occupies in the
	// model's context window.
	CountTokens(text string) int
}

// Provider aggregates AI services for convenient initialization and lifecycle
// management. A provider creates and manages Embedder and Generator
// instances, ensuring they share configuration and resources appropriately.
type Provider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Generator returns the answer synthesis service, or nil when no
	// generation model is configured. Callers should consult HasGenerator
	// rather than probing for nil.
	Generator() Generator

	// HasGenerator reports whether answer synthesis is available. The value
	// is decided once from configuration and stable for the provider's
	// lifetime; absence is an expected state, not an error.
	HasGenerator() bool

	// Dimensions returns the embedding vector dimension produced by Embedder.
	Dimensions() int

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
