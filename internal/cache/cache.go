package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// NoExpiration is the ttl for entries that live until evicted by the backend.
const NoExpiration time.Duration = 0

// Cache stores opaque byte values under string keys.
// Get returns (value, true, nil) on hit and (nil, false, nil) on miss or expiry.
// Set with ttl NoExpiration keeps the entry indefinitely.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Pinger is implemented by backends that can report reachability for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// InMemoryCache implements Cache on top of go-cache. Safe for concurrent use.
type InMemoryCache struct {
	items *gocache.Cache
}

// NewInMemoryCache creates an in-memory cache. Expired entries are purged every cleanupInterval
// (and always hidden from Get once expired).
func NewInMemoryCache(cleanupInterval time.Duration) *InMemoryCache {
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}
	return &InMemoryCache{items: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

// Get implements Cache.Get.
func (c *InMemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	v, ok := c.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false, fmt.Errorf("cache entry %q has unexpected type %T", key, v)
	}
	return b, true, nil
}

// Set implements Cache.Set. The value is copied so callers may reuse their buffer.
func (c *InMemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	exp := ttl
	if ttl <= NoExpiration {
		exp = gocache.NoExpiration
	}
	c.items.Set(key, append([]byte(nil), value...), exp)
	return nil
}

// Ping always succeeds.
func (c *InMemoryCache) Ping(ctx context.Context) error { return nil }

// Close is a no-op kept for symmetry with the network backends.
func (c *InMemoryCache) Close() error { return nil }

// GetValue reads key from c and decodes it as JSON into V.
func GetValue[V any](ctx context.Context, c Cache, key string) (V, bool, error) {
	var v V
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return v, false, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, fmt.Errorf("decode cache entry %q: %w", key, err)
	}
	return v, true, nil
}

// SetValue encodes v as JSON and stores it under key.
func SetValue[V any](ctx context.Context, c Cache, key string, v V, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry %q: %w", key, err)
	}
	return c.Set(ctx, key, raw, ttl)
}
