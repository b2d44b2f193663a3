package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/storage"
	"github.com/poiesic/docent/storage/badger"
)

func newTestCache(t *testing.T, opts ...Option) *SemanticCache {
	t.Helper()
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	c, err := NewSemanticCache(stores.Cache, opts...)
	require.NoError(t, err)
	return c
}

func TestCacheSimilarityLookup(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	stored := []float32{1, 0, 0}
	c.Set(ctx, "session-1", "What is the maximum metformin dose?", "2550 mg per day.", stored)

	t.Run("similar query hits", func(t *testing.T) {
		// Cosine similarity with the stored embedding is ~0.995
		similar := []float32{1, 0.1, 0}
		answer, ok := c.Get(ctx, "session-1", "What's the max dose of metformin?", similar)
		require.True(t, ok)
		assert.Equal(t, "2550 mg per day.", answer)
	})

	t.Run("dissimilar query misses", func(t *testing.T) {
		dissimilar := []float32{0, 1, 0}
		_, ok := c.Get(ctx, "session-1", "How should insulin be stored?", dissimilar)
		assert.False(t, ok)
	})

	t.Run("other session misses", func(t *testing.T) {
		_, ok := c.Get(ctx, "session-2", "What is the maximum metformin dose?", stored)
		assert.False(t, ok)
	})
}

func TestCacheBestOfSeveral(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "session-1", "q1", "answer one", []float32{1, 0.3, 0})
	c.Set(ctx, "session-1", "q2", "answer two", []float32{1, 0, 0})

	answer, ok := c.Get(ctx, "session-1", "q3", []float32{1, 0.02, 0})
	require.True(t, ok)
	assert.Equal(t, "answer two", answer, "highest similarity entry must win")
}

func TestCacheExactRepeatOverwrites(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	embedding := []float32{1, 0}
	c.Set(ctx, "session-1", "same question", "old answer", embedding)
	c.Set(ctx, "session-1", "same question", "new answer", embedding)

	answer, ok := c.Get(ctx, "session-1", "same question", embedding)
	require.True(t, ok)
	assert.Equal(t, "new answer", answer)
}

// failingStore simulates a broken cache backend.
type failingStore struct{}

func (f *failingStore) Put(context.Context, string, core.ID, *core.CacheEntry, time.Duration) error {
	return errors.New("backend down")
}

func (f *failingStore) Entries(context.Context, string) ([]*core.CacheEntry, error) {
	return nil, errors.New("backend down")
}

func (f *failingStore) Close() error { return nil }

var _ storage.CacheStore = (*failingStore)(nil)

func TestCacheBackendFailureAbsorbed(t *testing.T) {
	c, err := NewSemanticCache(&failingStore{})
	require.NoError(t, err)
	ctx := context.Background()

	// Neither call may return an error or panic
	c.Set(ctx, "session-1", "q", "a", []float32{1})
	_, ok := c.Get(ctx, "session-1", "q", []float32{1})
	assert.False(t, ok)
}

func TestCacheOptionValidation(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	_, err = NewSemanticCache(nil)
	assert.ErrorIs(t, err, ErrCacheStoreRequired)

	_, err = NewSemanticCache(stores.Cache, WithSimilarityThreshold(1.5))
	assert.ErrorIs(t, err, ErrInvalidThreshold)

	_, err = NewSemanticCache(stores.Cache, WithTTL(-time.Hour))
	assert.ErrorIs(t, err, ErrInvalidTTL)
}
