package mock

import (
	"context"
)

// MockReranker is a test double for ai.Reranker.
// It allows custom behavior injection via function fields.
type MockReranker struct {
	// RerankFunc is called by Rerank if set.
	// If nil, uses default deterministic behavior: longer candidates score higher.
	RerankFunc func(ctx context.Context, query string, candidates []string) ([]float32, error)

	callCount int
	// BatchSizes records the candidate count of every Rerank call, in order.
	BatchSizes []int
}

// NewMockReranker creates a mock reranker with default deterministic behavior.
// Note: Returns concrete type to allow test assertions via GetMockReranker().
func NewMockReranker() *MockReranker {
	return &MockReranker{}
}

// Rerank returns one score per candidate, aligned to input order.
// An empty candidate list returns an empty slice without counting as a call
// to the underlying model, but the invocation is still recorded.
func (m *MockReranker) Rerank(ctx context.Context, query string, candidates []string) ([]float32, error) {
	m.callCount++
	m.BatchSizes = append(m.BatchSizes, len(candidates))

	if m.RerankFunc != nil {
		return m.RerankFunc(ctx, query, candidates)
	}

	// Default: score by candidate length so ordering is deterministic
	scores := make([]float32, len(candidates))
	for i, candidate := range candidates {
		scores[i] = float32(len(candidate))
	}
	return scores, nil
}

// CallCount returns the number of times Rerank was called.
func (m *MockReranker) CallCount() int {
	return m.callCount
}

// MaxBatchSize returns the largest candidate count seen in one call.
func (m *MockReranker) MaxBatchSize() int {
	max := 0
	for _, size := range m.BatchSizes {
		if size > max {
			max = size
		}
	}
	return max
}

// Reset clears the call count, recorded batches and injected behavior.
func (m *MockReranker) Reset() {
	m.callCount = 0
	m.BatchSizes = nil
	m.RerankFunc = nil
}
