package reference

import (
	"context"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"electa/internal/election/models"
	"electa/pkg/platform/sentinel"
)

var bucketName = []byte("election")

// BoltStore keeps the reference in a local bbolt file so a single node
// survives restarts without Redis.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens or creates the file at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init bolt bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Get(_ context.Context) (models.Reference, error) {
	var ref models.Reference
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		ref, err = decode(tx.Bucket(bucketName).Get([]byte(storageKey)))
		return err
	})
	if err != nil {
		return models.Reference{}, err
	}
	return ref, nil
}

// CompareAndSwap relies on bbolt allowing one read-write transaction at a time.
func (s *BoltStore) CompareAndSwap(_ context.Context, expected int64, next models.Reference) (models.Reference, error) {
	next.Version = expected + 1
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		current, err := decode(bucket.Get([]byte(storageKey)))
		if err != nil {
			return err
		}
		if current.Version != expected {
			return fmt.Errorf("reference version %d, expected %d: %w", current.Version, expected, sentinel.ErrConflict)
		}
		payload, err := encode(next)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(storageKey), payload)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return models.Reference{}, err
		}
		return models.Reference{}, fmt.Errorf("swap reference: %w", err)
	}
	return next, nil
}
