package geocoding

import (
	"context"
	"time"

	"github.com/babui-rent/babui/pkg/cache"
)

// Cache stores geocoder results as strings. The Redis client in
// internal/infrastructure/redis satisfies it, as does MemoryCache.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
}

// MemoryCache is the in-process Cache used when no Redis is configured
type MemoryCache struct {
	entries *cache.Cache[string]
}

// NewMemoryCache creates an empty in-process cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: cache.New[string]()}
}

func (m *MemoryCache) Get(_ context.Context, key string) (string, bool) {
	return m.entries.Get(key)
}

func (m *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) {
	m.entries.Set(key, value, ttl)
}

// Sweep drops expired entries
func (m *MemoryCache) Sweep() int {
	return m.entries.Sweep()
}
