package storage

import (
	"context"
	"time"

	"github.com/poiesic/docent/core"
)

// ChunkRepository provides operations for the content-addressed corpus.
// Chunks are immutable: upserting a chunk with identical text overwrites the
// same record because identity is the content hash.
type ChunkRepository interface {
	// UpsertChunks stores one or more chunks, including embedding vectors.
	// Chunks with an unset ID get their content hash computed.
	UpsertChunks(ctx context.Context, chunks ...*core.Chunk) error

	// GetChunks retrieves chunks by their IDs.
	// Returns only the chunks that exist (no error for missing IDs); callers
	// must tolerate partial results.
	GetChunks(ctx context.Context, ids ...core.ID) (map[core.ID]*core.Chunk, error)

	// AllChunks returns every stored chunk, in insertion-key order.
	// Used to (re)build the lexical index.
	AllChunks(ctx context.Context) ([]*core.Chunk, error)

	// FindSimilar finds chunks whose vectors are similar to the given vector.
	// Returns up to limit chunks with similarity >= minSimilarity, ordered by
	// similarity score (highest first).
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.Chunk, []float32, error)

	// Close closes the repository and releases resources.
	Close() error
}

// SessionRepository provides operations for per-session conversation state:
// the append-only message log and the single-slot rolling summary.
// Message truncation to the recent window happens at read time via the limit
// parameter, never by physical deletion.
type SessionRepository interface {
	// AppendMessage adds a message to a session's log.
	// Sets the message timestamp if not already set.
	AppendMessage(ctx context.Context, sessionID string, message *core.Message) error

	// GetRecentMessages retrieves the most recent limit messages for a
	// session, oldest first. Returns an empty slice if none.
	GetRecentMessages(ctx context.Context, sessionID string, limit int) ([]*core.Message, error)

	// GetAllMessages retrieves a session's full transcript, oldest first.
	GetAllMessages(ctx context.Context, sessionID string) ([]*core.Message, error)

	// GetSummary retrieves a session's rolling summary.
	// Returns ErrNotFound if the session has never been summarized.
	GetSummary(ctx context.Context, sessionID string) (string, error)

	// SetSummary overwrites a session's rolling summary.
	// At most one summary exists per session.
	SetSummary(ctx context.Context, sessionID string, summary string) error

	// Close closes the repository and releases resources.
	Close() error
}

// CacheStore provides the key-value backing for the semantic answer cache.
// Entries are stored under (session, key) with a per-entry TTL, but lookup
// enumerates every live entry of a session: the storage key is not the
// lookup key.
type CacheStore interface {
	// Put stores an entry under (sessionID, key), replacing any existing
	// entry with the same key and resetting its TTL.
	Put(ctx context.Context, sessionID string, key core.ID, entry *core.CacheEntry, ttl time.Duration) error

	// Entries enumerates every live (unexpired) entry for a session.
	Entries(ctx context.Context, sessionID string) ([]*core.CacheEntry, error)

	// Close closes the store and releases resources.
	Close() error
}

// IndexBlobStore persists opaque serialized index structures under a name.
// Used for the lexical index, which must survive restarts.
type IndexBlobStore interface {
	// SaveIndex stores the serialized index, replacing any previous version.
	SaveIndex(ctx context.Context, name string, blob []byte) error

	// LoadIndex retrieves a serialized index.
	// Returns ErrNotFound if no index was saved under name.
	LoadIndex(ctx context.Context, name string) ([]byte, error)

	// Close closes the store and releases resources.
	Close() error
}
