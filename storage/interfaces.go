package storage

import (
	"context"

	"github.com/suchitkumarchennuri/logiq/core"
)

// LogStore provides durable storage of log records with their embedding
// vectors and filtered nearest-neighbor search.
// Implementations must be thread-safe and support concurrent access.
type LogStore interface {
	// Bootstrap idempotently prepares the store for use: it creates any
	// schema or indexes and pins the embedding dimension. Calling it
	// repeatedly, including concurrently from multiple workers, is a no-op
	// once the store is prepared. If the store was previously bootstrapped
	// with a different dimension, Bootstrap returns ErrDimensionMismatch:
	// this is a fatal configuration error, never silently truncated or
	// padded around.
	Bootstrap(ctx context.Context, dimensions int) error

	// Add atomically persists one or more log records together with their
	// embeddings. Records without an embedding of the bootstrapped
	// dimension are rejected and nothing is written, so a partially
	// embedded record is never visible to searches. IDs and CreatedAt
	// timestamps are assigned by the store and populated on the returned
	// records.
	Add(ctx context.Context, records ...*core.LogRecord) ([]*core.LogRecord, error)

	// Get retrieves a single log record by ID.
	// Returns ErrNotFound if the record doesn't exist.
	Get(ctx context.Context, id core.ID) (*core.LogRecord, error)

	// Search finds the records nearest to the query vector among those
	// matching every set filter field. Results are ordered by ascending
	// cosine distance, ties broken by most recent CreatedAt first, and
	// truncated to limit.
	Search(ctx context.Context, vector []float32, filter core.QueryFilter, limit int) ([]core.ScoredRecord, error)

	// Close closes the storage backend and releases resources.
	Close() error
}
