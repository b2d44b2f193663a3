package ai

import "context"

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
	// Empty input returns an empty slice, not an error.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces free text from a prompt using a large language model.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Generate produces a completion for the prompt.
	// Rate-limit rejections are reported as ErrRateLimited; other backend
	// failures as ErrGenerationUnavailable.
	Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error)
}

// Reranker scores candidate texts against a query with a cross-encoder model.
// Higher scores mean more relevant. Scores are comparable within one call but
// carry no fixed range across calls.
// Implementations must be thread-safe for concurrent use.
type Reranker interface {
	// Rerank returns one relevance score per candidate, aligned to the input
	// order; the caller re-sorts. An empty candidate list returns an empty
	// slice without error. Implementations may batch internally but must
	// preserve the one-score-per-candidate contract.
	Rerank(ctx context.Context, query string, candidates []string) ([]float32, error)
}

// Provider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder, Generator and Reranker instances,
// ensuring they share configuration and resources appropriately.
type Provider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Generator returns the answer generation service.
	// The returned Generator is safe for concurrent use.
	Generator() Generator

	// Reranker returns the cross-encoder scoring service.
	// The returned Reranker is safe for concurrent use.
	Reranker() Reranker

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
