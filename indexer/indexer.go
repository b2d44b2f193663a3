// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package indexer builds the lexical and vector indexes from a pre-chunked
// corpus. Embedding runs on a worker pool in batches; the lexical index is
// rebuilt from the full stored corpus and persisted so retrieval can
// restore it without re-tokenizing on startup.
package indexer

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docent/ai"
	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/retrieval"
	"github.com/poiesic/docent/storage"
)

// LexicalIndexName is the blob store key the lexical index persists under.
const LexicalIndexName = "lexical"

const (
	defaultBatchSize   = 16
	embedMaxAttempts   = 3
	embedRetryBaseWait = time.Second
)

// Document is one pre-chunked corpus entry to index.
type Document struct {
	Text     string
	Metadata map[string]string
}

// Indexer embeds and stores corpus chunks and maintains the persisted
// lexical index.
type Indexer struct {
	chunks    storage.ChunkRepository
	blobs     storage.IndexBlobStore
	embedder  ai.Embedder
	pool      *ants.Pool
	batchSize int
	config    retrieval.Config
	logger    *slog.Logger
}

// Option configures an Indexer.
type Option func(*Indexer) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Indexer) error {
		if logger == nil {
			logger = slog.Default()
		}
		ix.logger = logger
		return nil
	}
}

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(ix *Indexer) error {
		if size < 1 {
			size = 1
		}
		if ix.pool != nil {
			ix.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		ix.pool = pool
		return nil
	}
}

// WithBatchSize sets how many texts are embedded per collaborator call.
// Default is 16.
func WithBatchSize(size int) Option {
	return func(ix *Indexer) error {
		if size < 1 {
			return ErrInvalidBatchSize
		}
		ix.batchSize = size
		return nil
	}
}

// WithRetrievalConfig sets the parameters used when building the lexical
// index. Default is retrieval.DefaultConfig().
func WithRetrievalConfig(config retrieval.Config) Option {
	return func(ix *Indexer) error {
		if err := config.Validate(); err != nil {
			return err
		}
		ix.config = config
		return nil
	}
}

// NewIndexer creates a new indexer.
func NewIndexer(
	chunks storage.ChunkRepository,
	blobs storage.IndexBlobStore,
	embedder ai.Embedder,
	opts ...Option,
) (*Indexer, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if blobs == nil {
		return nil, ErrIndexBlobStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	ix := &Indexer{
		chunks:    chunks,
		blobs:     blobs,
		embedder:  embedder,
		pool:      pool,
		batchSize: defaultBatchSize,
		config:    retrieval.DefaultConfig(),
		logger:    slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(ix); err != nil {
			ix.pool.Release()
			return nil, err
		}
	}

	return ix, nil
}

// Close releases the worker pool.
func (ix *Indexer) Close() error {
	ix.pool.Release()
	return nil
}

// Index embeds and stores the documents, then rebuilds and persists the
// lexical index over the whole stored corpus. Returns the rebuilt index
// and the number of chunks stored. Identical texts collapse to one chunk.
func (ix *Indexer) Index(ctx context.Context, docs []Document) (*retrieval.LexicalIndex, int, error) {
	seen := make(map[core.ID]bool)
	chunks := make([]*core.Chunk, 0, len(docs))
	for _, doc := range docs {
		if doc.Text == "" {
			continue
		}
		chunk := core.NewChunk(doc.Text, doc.Metadata)
		if seen[chunk.Id] {
			continue
		}
		seen[chunk.Id] = true
		chunks = append(chunks, chunk)
	}

	if len(chunks) > 0 {
		if err := ix.embedChunks(ctx, chunks); err != nil {
			return nil, 0, err
		}
		if err := ix.chunks.UpsertChunks(ctx, chunks...); err != nil {
			return nil, 0, err
		}
	}

	index, err := ix.RebuildLexical(ctx)
	if err != nil {
		return nil, 0, err
	}
	return index, len(chunks), nil
}

// embedChunks fills in chunk vectors, batching texts across the worker
// pool. Transient embedding failures retry with backoff; a batch that
// still fails aborts the whole build.
func (ix *Indexer) embedChunks(ctx context.Context, chunks []*core.Chunk) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for start := 0; start < len(chunks); start += ix.batchSize {
		end := start + ix.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		wg.Add(1)
		err := ix.pool.Submit(func() {
			defer wg.Done()

			texts := make([]string, len(batch))
			for i, chunk := range batch {
				texts[i] = chunk.Text
			}

			var vectors [][]float32
			err := ai.RetryWithBackoff(ctx, func() error {
				var embedErr error
				vectors, embedErr = ix.embedder.EmbedTexts(ctx, texts)
				return embedErr
			}, embedMaxAttempts, embedRetryBaseWait)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}

			for i, vector := range vectors {
				batch[i].Vector = vector
			}
		})
		if err != nil {
			wg.Done()
			return err
		}
	}
	wg.Wait()
	return firstErr
}

// RebuildLexical reconstructs the lexical index from every stored chunk
// and persists it.
func (ix *Indexer) RebuildLexical(ctx context.Context) (*retrieval.LexicalIndex, error) {
	all, err := ix.chunks.AllChunks(ctx)
	if err != nil {
		return nil, err
	}

	index, err := retrieval.NewLexicalIndex(ix.config)
	if err != nil {
		return nil, err
	}
	index.Build(all)

	data, err := index.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if err := ix.blobs.SaveIndex(ctx, LexicalIndexName, data); err != nil {
		return nil, err
	}

	ix.logger.Info("lexical index rebuilt", "chunks", len(all))
	return index, nil
}

// LoadLexical restores the persisted lexical index. A missing or corrupt
// blob is an error; retrieval cannot run without the index.
func (ix *Indexer) LoadLexical(ctx context.Context) (*retrieval.LexicalIndex, error) {
	data, err := ix.blobs.LoadIndex(ctx, LexicalIndexName)
	if err != nil {
		return nil, err
	}

	index, err := retrieval.NewLexicalIndex(ix.config)
	if err != nil {
		return nil, err
	}
	if err := index.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return index, nil
}
