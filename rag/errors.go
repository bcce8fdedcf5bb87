package rag

import "errors"

var (
	// ErrStoreRequired indicates that a nil log store was provided.
	ErrStoreRequired = errors.New("log store is required")

	// ErrProviderRequired indicates that a nil AI provider was provided.
	ErrProviderRequired = errors.New("ai provider is required")

	// ErrEmptyQuestion indicates that an empty question was submitted.
	ErrEmptyQuestion = errors.New("question must not be empty")
)
