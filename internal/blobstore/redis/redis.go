package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"plower/internal/domain"
)

// Config contains connection details for the Redis server.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Store keeps blobs as plain Redis string values.
type Store struct {
	client *redis.Client
	prefix string
}

func New(cfg Config) *Store {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "plower:"
	}
	return &Store{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		prefix: prefix,
	}
}

// Ping verifies the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	return data, err
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, s.prefix+key, value, 0).Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
