package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/docent/core"
)

// Key prefixes for different data types
const (
	chunkPrefix      = "chunk"
	sessionMsgPrefix = "sesmsg"
	sessionMsgIDSeq  = "sesmsgseq"
	summaryPrefix    = "sessum"
	cachePrefix      = "anscache"
	indexBlobPrefix  = "idxblob"
)

// makeChunkKey generates a key for a chunk by content-addressed ID.
func makeChunkKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", chunkPrefix, id))
}

// makeMessageKey generates a composite key for a session message.
// Format: prefix:session:seq
// The sequence number is written in BigEndian order so lexicographic sort
// matches append order.
func makeMessageKey(sessionID string, seq uint64) []byte {
	prefix := makeMessagePrefix(sessionID)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// makeMessagePrefix generates the iteration prefix for a session's messages.
func makeMessagePrefix(sessionID string) []byte {
	return []byte(sessionMsgPrefix + ":" + sessionID + ":")
}

// makeSummaryKey generates the single-slot summary key for a session.
func makeSummaryKey(sessionID string) []byte {
	return []byte(summaryPrefix + ":" + sessionID)
}

// makeCacheKey generates a composite key for an answer cache entry.
// Format: prefix:session:id
func makeCacheKey(sessionID string, id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%s:%d", cachePrefix, sessionID, id))
}

// makeCachePrefix generates the iteration prefix for a session's cache entries.
func makeCachePrefix(sessionID string) []byte {
	return []byte(cachePrefix + ":" + sessionID + ":")
}

// makeIndexBlobKey generates the key for a persisted index structure.
func makeIndexBlobKey(name string) []byte {
	return []byte(indexBlobPrefix + ":" + name)
}
