package mock

import (
	"context"
	"fmt"

	"github.com/poiesic/docent/ai"
)

// MockGenerator is a test double for ai.Generator.
// It allows custom behavior injection via function fields.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	// If nil, returns a deterministic echo of the prompt.
	GenerateFunc func(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error)

	callCount int
	// Prompts records every prompt passed to Generate, in order.
	Prompts []string
}

// NewMockGenerator creates a mock generator with default deterministic behavior.
// Note: Returns concrete type to allow test assertions via GetMockGenerator().
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Generate returns the injected behavior, or a deterministic stub answer.
func (m *MockGenerator) Generate(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	m.callCount++
	m.Prompts = append(m.Prompts, prompt)

	resolved := ai.ApplyGenerateOptions(ai.GenerateOptions{}, opts...)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, resolved)
	}

	return fmt.Sprintf("mock answer (%d chars of prompt)", len(prompt)), nil
}

// CallCount returns the number of times Generate was called.
func (m *MockGenerator) CallCount() int {
	return m.callCount
}

// Reset clears the call count, recorded prompts and injected behavior.
func (m *MockGenerator) Reset() {
	m.callCount = 0
	m.Prompts = nil
	m.GenerateFunc = nil
}
