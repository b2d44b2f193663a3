package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/storage"
)

// CacheStore implements storage.CacheStore on BadgerDB. Entries carry a
// BadgerDB TTL, so expiry is enforced by the store itself and expired
// entries simply stop appearing in Entries.
type CacheStore struct {
	backend *Backend
}

var _ storage.CacheStore = (*CacheStore)(nil)

// NewCacheStore creates a new CacheStore.
func NewCacheStore(backend *Backend) (storage.CacheStore, error) {
	return &CacheStore{backend: backend}, nil
}

// Close is a no-op; the backend owns the database handle.
func (s *CacheStore) Close() error {
	return nil
}

// Put stores a cache entry under the session and key, expiring after ttl.
// A ttl of zero stores the entry without expiry.
func (s *CacheStore) Put(ctx context.Context, sessionID string, key core.ID, entry *core.CacheEntry, ttl time.Duration) error {
	if err := core.ValidateSessionID(sessionID); err != nil {
		return err
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		e := badger.NewEntry(makeCacheKey(sessionID, key), storage.MarshalCacheEntry(entry))
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		if err := tx.SetEntry(e); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Entries returns all live cache entries for a session.
func (s *CacheStore) Entries(ctx context.Context, sessionID string) ([]*core.CacheEntry, error) {
	var results []*core.CacheEntry
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeCachePrefix(sessionID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var entry *core.CacheEntry
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				entry, err = storage.UnmarshalCacheEntry(val)
				return err
			}); err != nil {
				return err
			}
			if entry != nil {
				results = append(results, entry)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []*core.CacheEntry{}
	}
	return results, nil
}
