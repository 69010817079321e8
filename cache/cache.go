// Package cache stores registry lookups keyed by normalized plate.
package cache

import (
	"context"
	"fmt"

	"github.com/aluiziolira/go-car-prices/config"
)

// Store is a byte-oriented key-value cache with a fixed expiry per entry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// New returns the backend selected by cfg.CacheBackend, or nil for "none".
func New(cfg *config.Config) (Store, error) {
	switch cfg.CacheBackend {
	case "memory":
		return NewMemory(cfg.CacheSize, cfg.CacheTTL), nil
	case "redis":
		return NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL, DefaultRedisPrefix), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}
