package bolt

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"plower/internal/domain"
)

var bucketBlobs = []byte("blobs")

// Store is a blob store backed by a single bbolt file.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the database file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBlobs)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketBlobs).Get([]byte(key))
		if data == nil {
			return domain.ErrNotFound
		}
		// bbolt values are only valid inside the transaction
		out = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Put(_ context.Context, key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBlobs).Put([]byte(key), value)
	})
}

func (s *Store) Delete(_ context.Context, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBlobs).Delete([]byte(key))
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}
