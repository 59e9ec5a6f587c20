package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ppiankov/truthgauge/internal/model"
)

// Cache stores opaque upstream responses keyed by CacheKey
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// CacheKey generates a cache key for a query within a namespace.
// Queries differing only in case or surrounding whitespace share a key.
func CacheKey(namespace, query string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	hash := sha256.Sum256([]byte(normalized))
	return "truthgauge:v1:" + namespace + ":" + hex.EncodeToString(hash[:])
}

// redisPingTimeout bounds the connectivity check made when a redis cache is built
const redisPingTimeout = 3 * time.Second

// New builds the configured cache backend. A disabled cache returns nil.
// A redis backend must answer a ping before it is returned.
func New(ctx context.Context, cfg model.CacheConfig) (Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	switch cfg.Backend {
	case "", "memory":
		return NewMemoryCache(cfg.TTL, 10*time.Minute), nil
	case "disk":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("disk cache requires a directory")
		}
		return NewDiskCache(cfg.Dir, cfg.TTL), nil
	case "layered":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("layered cache requires a directory")
		}
		return NewLayeredCache(cfg.TTL, cfg.Dir, cfg.TTL), nil
	case "redis":
		rc := NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.TTL)
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := rc.Ping(pingCtx); err != nil {
			_ = rc.Close()
			return nil, model.NewError(model.KindMisconfigured, "redis cache unreachable at "+cfg.RedisAddr, err)
		}
		return rc, nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s (supported: memory, disk, layered, redis)", cfg.Backend)
	}
}

// Close releases backends that hold connections. It is safe on nil.
func Close(c Cache) error {
	if closer, ok := c.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
