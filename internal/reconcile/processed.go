package reconcile

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const processedBucket = "processed_messages"

// ProcessedStore is the idempotency coordinator: a durable set of
// message ids that have been run through the pipeline, success or not.
type ProcessedStore interface {
	// IsProcessed reports whether the id has been handled before.
	IsProcessed(id string) bool

	// MarkProcessed durably adds the id to the set. Marking an id that
	// is already present is a no-op.
	MarkProcessed(id string) error

	// Close closes the store.
	Close() error
}

// BoltProcessedStore implements ProcessedStore over bbolt. The full
// set is mirrored in memory at open for O(1) lookups; every mark is a
// synchronous bolt write, so a crash loses at most the message being
// handled when it happened.
type BoltProcessedStore struct {
	db   *bbolt.DB
	seen map[string]struct{}
}

// OpenProcessedStore opens (or creates) the store at path and loads
// the id set.
func OpenProcessedStore(path string) (*BoltProcessedStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	seen := make(map[string]struct{})
	err = db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(processedBucket))
		if err != nil {
			return err
		}
		return bucket.ForEach(func(k, v []byte) error {
			seen[string(k)] = struct{}{}
			return nil
		})
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("loading processed set: %w", err)
	}

	return &BoltProcessedStore{db: db, seen: seen}, nil
}

// IsProcessed checks the in-memory mirror.
func (s *BoltProcessedStore) IsProcessed(id string) bool {
	_, ok := s.seen[id]
	return ok
}

// MarkProcessed writes the id through to disk before updating the
// mirror. The stored value is the mark time, for debugging only.
func (s *BoltProcessedStore) MarkProcessed(id string) error {
	if id == "" {
		return nil
	}
	if _, ok := s.seen[id]; ok {
		return nil
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(processedBucket))
		return bucket.Put([]byte(id), []byte(time.Now().UTC().Format(time.RFC3339)))
	})
	if err != nil {
		return fmt.Errorf("marking processed: %w", err)
	}
	s.seen[id] = struct{}{}
	return nil
}

// Close closes the database.
func (s *BoltProcessedStore) Close() error {
	return s.db.Close()
}
