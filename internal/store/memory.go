package store

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryCache is an in-process Cache backed by go-cache.
type MemoryCache struct {
	c *cache.Cache
}

// NewMemoryCache creates a MemoryCache whose entries default to ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{c: cache.New(ttl, 2*ttl)}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	v, found := m.c.Get(key)
	if !found {
		return nil, ErrNotFound
	}
	raw, ok := v.([]byte)
	if !ok {
		return nil, ErrNotFound
	}
	return raw, nil
}

// Set stores value; ttl <= 0 uses the cache default.
func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = cache.DefaultExpiration
	}
	m.c.Set(key, value, ttl)
	return nil
}

// Len returns the number of live entries.
func (m *MemoryCache) Len() int {
	return m.c.ItemCount()
}
