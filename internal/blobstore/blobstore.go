package blobstore

import (
	"context"
	"fmt"

	"plower/internal/blobstore/badger"
	"plower/internal/blobstore/bolt"
	"plower/internal/blobstore/memory"
	"plower/internal/blobstore/redis"
	"plower/internal/config"
	"plower/internal/domain"
)

// Open builds the blob store selected by cfg.Type.
func Open(ctx context.Context, cfg config.StoreConfig) (domain.BlobStore, error) {
	switch cfg.Type {
	case "bolt", "":
		return bolt.Open(cfg.Path)
	case "badger":
		return badger.Open(cfg.Path)
	case "memory":
		return memory.New(), nil
	case "redis":
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis store config missing")
		}
		st := redis.New(redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := st.Ping(ctx); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown blob store: %s", cfg.Type)
	}
}
