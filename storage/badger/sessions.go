package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/storage"
)

// SessionRepository implements storage.SessionRepository for BadgerDB.
// Messages are keyed by a monotonic sequence so lexicographic key order is
// append order; the summary is a single overwritten slot per session.
type SessionRepository struct {
	backend *Backend
	msgSeq  *badger.Sequence
}

var _ storage.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(backend *Backend) (storage.SessionRepository, error) {
	msgSeq, err := backend.GetSequence(sessionMsgIDSeq)
	if err != nil {
		return nil, err
	}

	return &SessionRepository{
		backend: backend,
		msgSeq:  msgSeq,
	}, nil
}

// Close releases the message sequence.
func (r *SessionRepository) Close() error {
	return r.msgSeq.Release()
}

// AppendMessage adds a message to a session's log.
func (r *SessionRepository) AppendMessage(ctx context.Context, sessionID string, message *core.Message) error {
	if err := core.ValidateSessionID(sessionID); err != nil {
		return err
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}
	if err := core.ValidateMessage(message); err != nil {
		return err
	}

	seq, err := r.msgSeq.Next()
	if err != nil {
		return err
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeMessageKey(sessionID, seq)
		if err := tx.Set(key, storage.MarshalMessage(message)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetRecentMessages retrieves the most recent limit messages for a session,
// oldest first. Truncation happens here at read time; nothing is deleted.
func (r *SessionRepository) GetRecentMessages(ctx context.Context, sessionID string, limit int) ([]*core.Message, error) {
	if limit <= 0 {
		return []*core.Message{}, nil
	}

	var newestFirst []*core.Message
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeMessagePrefix(sessionID)

		// Reverse iterate from just past the session's key range
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		startKey := append(append([]byte{}, prefix...), 0xFF)
		for iter.Seek(startKey); iter.Valid() && len(newestFirst) < limit; iter.Next() {
			key := iter.Item().Key()
			if !keyHasPrefix(key, prefix) {
				break
			}

			var message *core.Message
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				message, err = storage.UnmarshalMessage(val)
				return err
			}); err != nil {
				return err
			}
			if message != nil {
				newestFirst = append(newestFirst, message)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Flip to chronological order
	oldestFirst := make([]*core.Message, len(newestFirst))
	for i, message := range newestFirst {
		oldestFirst[len(newestFirst)-1-i] = message
	}
	return oldestFirst, nil
}

// GetAllMessages retrieves a session's full transcript, oldest first.
func (r *SessionRepository) GetAllMessages(ctx context.Context, sessionID string) ([]*core.Message, error) {
	var results []*core.Message
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeMessagePrefix(sessionID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var message *core.Message
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				message, err = storage.UnmarshalMessage(val)
				return err
			}); err != nil {
				return err
			}
			if message != nil {
				results = append(results, message)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []*core.Message{}
	}
	return results, nil
}

// GetSummary retrieves a session's rolling summary.
func (r *SessionRepository) GetSummary(ctx context.Context, sessionID string) (string, error) {
	var summary string
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeSummaryKey(sessionID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			summary = string(val)
			return nil
		})
	}, false)
	if err != nil {
		return "", err
	}
	return summary, nil
}

// SetSummary overwrites a session's rolling summary.
func (r *SessionRepository) SetSummary(ctx context.Context, sessionID string, summary string) error {
	if err := core.ValidateSessionID(sessionID); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeSummaryKey(sessionID), []byte(summary)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
