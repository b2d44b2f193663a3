package retrieval

import (
	"context"

	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/storage"
)

// VectorMatch is one nearest-neighbor hit from a vector index.
type VectorMatch struct {
	Id       core.ID
	Score    float32
	Text     string
	Metadata map[string]string
}

// VectorRecord is the stored form of a chunk as returned by a fetch.
type VectorRecord struct {
	Text     string
	Metadata map[string]string
}

// VectorIndex is the nearest-neighbor search contract. Implementations may
// be remote; consumers tolerate empty result sets, missing metadata, and
// partial fetches where some ids are absent from the response.
type VectorIndex interface {
	Query(ctx context.Context, vector []float32, topK int, namespace string) ([]VectorMatch, error)
	Fetch(ctx context.Context, ids []core.ID, namespace string) (map[core.ID]VectorRecord, error)
}

// ChunkVectorIndex serves vector queries from a local chunk repository by
// exhaustive cosine scan. The namespace argument is ignored; an embedded
// corpus has a single namespace.
type ChunkVectorIndex struct {
	chunks storage.ChunkRepository
}

var _ VectorIndex = (*ChunkVectorIndex)(nil)

// NewChunkVectorIndex creates a VectorIndex over a chunk repository.
func NewChunkVectorIndex(chunks storage.ChunkRepository) (*ChunkVectorIndex, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	return &ChunkVectorIndex{chunks: chunks}, nil
}

// Query returns the topK most similar chunks by cosine similarity.
func (v *ChunkVectorIndex) Query(ctx context.Context, vector []float32, topK int, _ string) ([]VectorMatch, error) {
	chunks, scores, err := v.chunks.FindSimilar(ctx, vector, 0, topK)
	if err != nil {
		return nil, err
	}

	matches := make([]VectorMatch, 0, len(chunks))
	for i, chunk := range chunks {
		matches = append(matches, VectorMatch{
			Id:       chunk.Id,
			Score:    scores[i],
			Text:     chunk.Text,
			Metadata: chunk.Metadata,
		})
	}
	return matches, nil
}

// Fetch retrieves stored chunks by id. Missing ids are simply absent from
// the returned map.
func (v *ChunkVectorIndex) Fetch(ctx context.Context, ids []core.ID, _ string) (map[core.ID]VectorRecord, error) {
	chunks, err := v.chunks.GetChunks(ctx, ids...)
	if err != nil {
		return nil, err
	}

	records := make(map[core.ID]VectorRecord, len(chunks))
	for id, chunk := range chunks {
		records[id] = VectorRecord{Text: chunk.Text, Metadata: chunk.Metadata}
	}
	return records, nil
}
