package memory

import (
	"context"
	"sync"

	"plower/internal/domain"
)

// Store is an in-process blob store. Contents are lost on exit.
type Store struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func New() *Store { return &Store{blobs: map[string][]byte{}} }

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.blobs[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

func (s *Store) Close() error { return nil }
