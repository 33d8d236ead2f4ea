package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "postcode-workers/internal/common/errors"
	"postcode-workers/internal/lookup"
)

// envelope is the stored form for key-value backends.
type envelope struct {
	Content string    `json:"content"`
	Created time.Time `json:"created"`
}

// RedisCache keeps one key per postcode. A zero ttl keeps entries until
// they are replaced; freshness is decided by the lookup service either way.
type RedisCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisCache(client redis.Cmdable, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (c *RedisCache) Name() string { return "redis" }

func (c *RedisCache) key(postcode string) string {
	return c.prefix + postcode
}

func (c *RedisCache) Find(ctx context.Context, postcode string) (*lookup.CacheEntry, error) {
	data, err := c.client.Get(ctx, c.key(postcode)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, lookup.ErrCacheMiss
		}
		return nil, apperrors.NewCacheReadFailedError(postcode, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, apperrors.NewCacheReadFailedError(postcode, err)
	}
	return &lookup.CacheEntry{Postcode: postcode, Content: env.Content, CreatedAt: env.Created}, nil
}

func (c *RedisCache) Upsert(ctx context.Context, postcode, content string) error {
	payload, err := json.Marshal(envelope{Content: content, Created: c.now().UTC()})
	if err != nil {
		return apperrors.NewCacheWriteFailedError(postcode, err)
	}
	if err := c.client.Set(ctx, c.key(postcode), payload, c.ttl).Err(); err != nil {
		return apperrors.NewCacheWriteFailedError(postcode, err)
	}
	return nil
}
