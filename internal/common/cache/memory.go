package cache

import (
	"context"
	"sync"
	"time"

	"postcode-workers/internal/lookup"
)

// MemoryCache is a process-local cache for the CLI and tests.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]lookup.CacheEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]lookup.CacheEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Name() string { return "memory" }

func (c *MemoryCache) Find(_ context.Context, postcode string) (*lookup.CacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[postcode]
	if !ok {
		return nil, lookup.ErrCacheMiss
	}
	return &entry, nil
}

func (c *MemoryCache) Upsert(_ context.Context, postcode, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[postcode] = lookup.CacheEntry{
		Postcode:  postcode,
		Content:   content,
		CreatedAt: c.now(),
	}
	return nil
}

// Len reports the number of cached postcodes.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
