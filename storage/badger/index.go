package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docent/storage"
)

// IndexBlobStore persists serialized index structures under a single key
// per index name, overwritten on every save.
type IndexBlobStore struct {
	backend *Backend
}

var _ storage.IndexBlobStore = (*IndexBlobStore)(nil)

// NewIndexBlobStore creates a new IndexBlobStore.
func NewIndexBlobStore(backend *Backend) (storage.IndexBlobStore, error) {
	return &IndexBlobStore{backend: backend}, nil
}

// Close is a no-op; the backend owns the database handle.
func (s *IndexBlobStore) Close() error {
	return nil
}

// SaveIndex overwrites the persisted blob for the named index.
func (s *IndexBlobStore) SaveIndex(ctx context.Context, name string, data []byte) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeIndexBlobKey(name), data); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadIndex retrieves the persisted blob for the named index, returning
// storage.ErrNotFound when no blob has been saved.
func (s *IndexBlobStore) LoadIndex(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeIndexBlobKey(name))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return data, nil
}
