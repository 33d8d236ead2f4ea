package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postcode-workers/internal/lookup"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	return mr, redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}

func TestRedisCache_RoundTrip(t *testing.T) {
	mr, client := setupRedis(t)
	c := NewRedisCache(client, "postcode:address:", 0)
	c.now = func() time.Time { return fixedNow }
	ctx := context.Background()

	_, err := c.Find(ctx, "SW1A 1AA")
	assert.ErrorIs(t, err, lookup.ErrCacheMiss)

	require.NoError(t, c.Upsert(ctx, "SW1A 1AA", `[{"id":"1"}]`))
	assert.True(t, mr.Exists("postcode:address:SW1A 1AA"))
	assert.Equal(t, time.Duration(0), mr.TTL("postcode:address:SW1A 1AA"))

	entry, err := c.Find(ctx, "SW1A 1AA")
	require.NoError(t, err)
	assert.Equal(t, "SW1A 1AA", entry.Postcode)
	assert.Equal(t, `[{"id":"1"}]`, entry.Content)
	assert.True(t, fixedNow.Equal(entry.CreatedAt))

	c.now = func() time.Time { return fixedNow.Add(time.Hour) }
	require.NoError(t, c.Upsert(ctx, "SW1A 1AA", `[]`))

	entry, err = c.Find(ctx, "SW1A 1AA")
	require.NoError(t, err)
	assert.Equal(t, `[]`, entry.Content)
	assert.True(t, fixedNow.Add(time.Hour).Equal(entry.CreatedAt), "upsert refreshes created")
}

func TestRedisCache_TTL(t *testing.T) {
	mr, client := setupRedis(t)
	c := NewRedisCache(client, "pc:", 10*time.Minute)

	require.NoError(t, c.Upsert(context.Background(), "EC1A 1BB", "[]"))
	assert.Equal(t, 10*time.Minute, mr.TTL("pc:EC1A 1BB"))

	mr.FastForward(11 * time.Minute)
	_, err := c.Find(context.Background(), "EC1A 1BB")
	assert.ErrorIs(t, err, lookup.ErrCacheMiss)
}

func TestRedisCache_StoredEnvelope(t *testing.T) {
	mr, client := setupRedis(t)
	c := NewRedisCache(client, "postcode:address:", 0)
	c.now = func() time.Time { return fixedNow }

	require.NoError(t, c.Upsert(context.Background(), "SW1A 1AA", "[]"))

	raw, err := mr.Get("postcode:address:SW1A 1AA")
	require.NoError(t, err)
	var env map[string]string
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	assert.Equal(t, "[]", env["content"])
	assert.Equal(t, "2024-03-01T09:30:00Z", env["created"])
}

func TestRedisCache_CorruptEntry(t *testing.T) {
	mr, client := setupRedis(t)
	require.NoError(t, mr.Set("postcode:address:SW1A 1AA", "not-json"))

	_, err := NewRedisCache(client, "postcode:address:", 0).Find(context.Background(), "SW1A 1AA")

	require.Error(t, err)
	assert.False(t, errors.Is(err, lookup.ErrCacheMiss))
}

func TestRedisCache_ReadErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCache(db, "postcode:address:", 0)

	mock.ExpectGet("postcode:address:SW1A 1AA").RedisNil()
	_, err := c.Find(context.Background(), "SW1A 1AA")
	assert.ErrorIs(t, err, lookup.ErrCacheMiss)

	cause := errors.New("i/o timeout")
	mock.ExpectGet("postcode:address:SW1A 1AA").SetErr(cause)
	_, err = c.Find(context.Background(), "SW1A 1AA")
	assert.ErrorIs(t, err, cause)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_WriteError(t *testing.T) {
	mr, client := setupRedis(t)
	mr.SetError("READONLY You can't write against a read only replica.")

	err := NewRedisCache(client, "postcode:address:", 0).Upsert(context.Background(), "SW1A 1AA", "[]")
	assert.Error(t, err)
}
