package lookup

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Cache.Find when no entry exists.
var ErrCacheMiss = errors.New("cache miss")

// CacheEntry is one cached lookup: the serialized address list for a
// normalized postcode and when it was written.
type CacheEntry struct {
	Postcode  string
	Content   string
	CreatedAt time.Time
}

// Cache is the persistence contract for address lists keyed by normalized
// postcode. Upsert replaces any existing entry and refreshes its timestamp.
type Cache interface {
	Find(ctx context.Context, postcode string) (*CacheEntry, error)
	Upsert(ctx context.Context, postcode, content string) error
}

// Named caches report a backend label for metrics.
type Named interface {
	Name() string
}

func cacheName(c Cache) string {
	if n, ok := c.(Named); ok {
		return n.Name()
	}
	return "custom"
}
