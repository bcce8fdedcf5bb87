package ingest

import "errors"

var (
	// ErrStoreRequired indicates that a nil log store was provided.
	ErrStoreRequired = errors.New("log store is required")

	// ErrProviderRequired indicates that a nil AI provider was provided.
	ErrProviderRequired = errors.New("ai provider is required")

	// ErrInvalidMaxAttempts indicates maxAttempts was not positive.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)
