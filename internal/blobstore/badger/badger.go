package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"plower/internal/domain"
	"plower/internal/logger"
)

// Store is a blob store backed by badger.
type Store struct {
	db *badger.DB
}

// Open opens a badger directory. An empty dir runs fully in memory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(logger.GetLogger())
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	return out, err
}

func (s *Store) Put(_ context.Context, key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (s *Store) Delete(_ context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}
