package mock

import (
	"context"
	"fmt"
	"strings"

	"github.com/suchitkumarchennuri/logiq/core"
)

// MockGenerator is a test double for ai.Generator.
// It allows custom behavior injection via function fields.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	// If nil, produces a deterministic summary of the inputs.
	GenerateFunc func(ctx context.Context, question string, records []*core.LogRecord) (string, error)

	// Window is the reported context window size. Defaults to 4096.
	Window int

	callCount int
}

// NewMockGenerator creates a mock generator with default deterministic behavior.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Generate returns a deterministic answer derived from the inputs.
func (m *MockGenerator) Generate(ctx context.Context, question string, records []*core.LogRecord) (string, error) {
	m.callCount++

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, question, records)
	}

	messages := make([]string, len(records))
	for i, record := range records {
		messages[i] = record.Message
	}
	return fmt.Sprintf("answer(%s): %s", question, strings.Join(messages, "; ")), nil
}

// ContextWindow returns the configured window size.
func (m *MockGenerator) ContextWindow() int {
	if m.Window > 0 {
		return m.Window
	}
	return 4096
}

// CountTokens estimates tokens as one per four characters.
func (m *MockGenerator) CountTokens(text string) int {
	return len(text) / 4
}

// CallCount returns the number of times Generate was called.
func (m *MockGenerator) CallCount() int {
	return m.callCount
}

// Reset clears the call count and any injected behavior.
func (m *MockGenerator) Reset() {
	m.callCount = 0
	m.GenerateFunc = nil
}
