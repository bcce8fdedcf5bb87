package ai

import "errors"

var (
	// ErrProviderInit indicates that the process-wide provider failed to
	// initialize. Once initialization has failed, every subsequent use in
	// the same process reports this error until the process restarts.
	ErrProviderInit = errors.New("ai provider initialization failed")

	// ErrGeneratorNotConfigured is returned when answer synthesis is invoked
	// without a configured generation model.
	ErrGeneratorNotConfigured = errors.New("no generation model configured")

	// ErrInitFuncRequired is returned when a lazy provider is created
	// without an initializer.
	ErrInitFuncRequired = errors.New("provider init function required")
)
