package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	apperrors "postcode-workers/internal/common/errors"
	"postcode-workers/internal/lookup"
)

// maxRelativeExpiration is the largest TTL memcached reads as relative
// seconds; larger values are taken as an absolute Unix time.
const maxRelativeExpiration = 30 * 24 * time.Hour

// memcacheClient is the subset of *memcache.Client used here.
type memcacheClient interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
}

// MemcachedCache stores the same envelope as RedisCache. Keys may not
// contain spaces, so the compact postcode is used.
type MemcachedCache struct {
	client memcacheClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

func NewMemcachedCache(client memcacheClient, prefix string, ttl time.Duration) *MemcachedCache {
	return &MemcachedCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (c *MemcachedCache) Name() string { return "memcached" }

func (c *MemcachedCache) key(postcode string) string {
	return c.prefix + strings.ReplaceAll(postcode, " ", "")
}

func (c *MemcachedCache) Find(_ context.Context, postcode string) (*lookup.CacheEntry, error) {
	item, err := c.client.Get(c.key(postcode))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, lookup.ErrCacheMiss
		}
		return nil, apperrors.NewCacheReadFailedError(postcode, err)
	}

	var env envelope
	if err := json.Unmarshal(item.Value, &env); err != nil {
		return nil, apperrors.NewCacheReadFailedError(postcode, err)
	}
	return &lookup.CacheEntry{Postcode: postcode, Content: env.Content, CreatedAt: env.Created}, nil
}

func (c *MemcachedCache) Upsert(_ context.Context, postcode, content string) error {
	payload, err := json.Marshal(envelope{Content: content, Created: c.now().UTC()})
	if err != nil {
		return apperrors.NewCacheWriteFailedError(postcode, err)
	}

	err = c.client.Set(&memcache.Item{
		Key:        c.key(postcode),
		Value:      payload,
		Expiration: c.expiration(),
	})
	if err != nil {
		return apperrors.NewCacheWriteFailedError(postcode, err)
	}
	return nil
}

func (c *MemcachedCache) expiration() int32 {
	switch {
	case c.ttl <= 0:
		return 0
	case c.ttl > maxRelativeExpiration:
		return int32(c.now().Add(c.ttl).Unix())
	default:
		return int32(c.ttl / time.Second)
	}
}
