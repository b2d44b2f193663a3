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


// Package cache provides a session-scoped semantic answer cache. Entries
// are stored under a content-hash key but looked up by embedding
// similarity, so a rephrased question can hit an answer cached for its
// original wording. The cache is an optimization, never a correctness
// dependency; every backend failure degrades to a miss or a no-op.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/storage"
)

// DefaultSimilarityThreshold is the minimum cosine similarity between a
// query embedding and a stored entry for the entry to count as a hit.
const DefaultSimilarityThreshold float32 = 0.88

// DefaultTTL is how long entries live regardless of access.
const DefaultTTL = 24 * time.Hour

// SemanticCache caches generated answers keyed by query embedding
// similarity within a session.
type SemanticCache struct {
	store     storage.CacheStore
	threshold float32
	ttl       time.Duration
	logger    *slog.Logger
}

// Option configures a SemanticCache.
type Option func(*SemanticCache) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *SemanticCache) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// WithSimilarityThreshold overrides the hit threshold.
func WithSimilarityThreshold(threshold float32) Option {
	return func(c *SemanticCache) error {
		if threshold <= 0 || threshold > 1 {
			return ErrInvalidThreshold
		}
		c.threshold = threshold
		return nil
	}
}

// WithTTL overrides the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *SemanticCache) error {
		if ttl <= 0 {
			return ErrInvalidTTL
		}
		c.ttl = ttl
		return nil
	}
}

// NewSemanticCache creates a new cache over the given store.
func NewSemanticCache(store storage.CacheStore, opts ...Option) (*SemanticCache, error) {
	if store == nil {
		return nil, ErrCacheStoreRequired
	}

	c := &SemanticCache{
		store:     store,
		threshold: DefaultSimilarityThreshold,
		ttl:       DefaultTTL,
		logger:    slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Get looks up a cached answer for the query. All of the session's entries
// are scanned and the one with the highest embedding similarity wins, if it
// clears the threshold. Returns the answer and true on a hit.
func (c *SemanticCache) Get(ctx context.Context, sessionID, query string, queryEmbedding []float32) (string, bool) {
	entries, err := c.store.Entries(ctx, sessionID)
	if err != nil {
		c.logger.Warn("cache lookup failed, treating as miss", "session", sessionID, "err", err)
		return "", false
	}

	var best float32
	var answer string
	found := false
	for _, entry := range entries {
		similarity := core.CosineSimilarity(queryEmbedding, entry.Embedding)
		if similarity >= c.threshold && (!found || similarity > best) {
			best = similarity
			answer = entry.Answer
			found = true
		}
	}
	if found {
		c.logger.Debug("cache hit", "session", sessionID, "similarity", best)
	}
	return answer, found
}

// Set stores an answer under the query's content hash. An exact repeat of
// the same question overwrites the entry and refreshes its TTL.
func (c *SemanticCache) Set(ctx context.Context, sessionID, query, answer string, queryEmbedding []float32) {
	entry := &core.CacheEntry{
		Query:     query,
		Answer:    answer,
		Embedding: queryEmbedding,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.store.Put(ctx, sessionID, core.IDFromContent(query), entry, c.ttl); err != nil {
		c.logger.Warn("cache store failed, answer not cached", "session", sessionID, "err", err)
	}
}
