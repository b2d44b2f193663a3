package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// Chunk and cache-entry IDs are generated with content-based hashing so that
// identical text always collides to the same ID.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Role identifies the author of a conversation message.
type Role int

const (
	// RoleUser represents the human asking questions.
	RoleUser Role = iota + 1
	// RoleAssistant represents generated answers.
	RoleAssistant
	// RoleSystem represents injected context such as the rolling summary.
	RoleSystem
)

// String returns the wire name used in prompts and transcripts.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	case RoleSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Chunk is a content-addressed fragment of a source document.
// Identity is derived from Text, so two chunks with identical text are the
// same chunk everywhere in the system.
type Chunk struct {
	Id       ID
	Text     string
	Metadata map[string]string
	Vector   []float32 // Embedding vector (populated by the indexer)
}

// NewChunk creates a chunk with its content-addressed ID populated.
func NewChunk(text string, metadata map[string]string) *Chunk {
	return &Chunk{
		Id:       IDFromContent(text),
		Text:     text,
		Metadata: metadata,
	}
}

// Message is a single turn in a session's conversation.
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// CacheEntry is a previously generated answer stored for similarity lookup.
// Entries are keyed by (session, IDFromContent(Query)) for storage but looked
// up by nearest-neighbor similarity over Embedding across the whole session.
type CacheEntry struct {
	Query     string
	Answer    string
	Embedding []float32
	CreatedAt time.Time
}
