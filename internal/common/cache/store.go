package cache

import (
	"context"
	"fmt"
	"strings"

	"postcode-workers/internal/common/config"
	"postcode-workers/internal/common/database"
	"postcode-workers/internal/common/logger"
	"postcode-workers/internal/lookup"
)

type connection interface {
	Ping(ctx context.Context) error
	Close() error
}

type schemaOwner interface {
	EnsureSchema(ctx context.Context) error
}

// Store is the configured cache together with the connection behind it.
// Cache is nil for the "none" backend.
type Store struct {
	Cache   lookup.Cache
	backend string
	conn    connection
}

// Open connects the backend selected by cfg.Cache.Backend.
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (*Store, error) {
	cc := cfg.Cache
	store := &Store{backend: cc.Backend}

	switch cc.Backend {
	case config.CacheBackendPostgres:
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return nil, err
		}
		store.conn = pg
		store.Cache = NewPostgresCache(pg.DB, cc.Table)

	case config.CacheBackendRedis:
		rc, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return nil, err
		}
		store.conn = rc
		store.Cache = NewRedisCache(rc.Client, cc.KeyPrefix, cc.TTLDuration())

	case config.CacheBackendElasticsearch:
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch, nil)
		if err != nil {
			return nil, err
		}
		store.conn = es
		store.Cache = NewElasticsearchCache(es.Client, cc.Index)

	case config.CacheBackendMemcached:
		mc, err := database.NewMemcached(cfg.Database.Memcached)
		if err != nil {
			return nil, err
		}
		store.conn = mc
		store.Cache = NewMemcachedCache(mc.Client, memcachedPrefix(cc.KeyPrefix), cc.TTLDuration())

	case config.CacheBackendMemory:
		store.Cache = NewMemoryCache()

	case config.CacheBackendNone:

	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cc.Backend)
	}

	if owner, ok := store.Cache.(schemaOwner); ok && cc.EnsureSchema {
		if err := owner.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		log.Info("Address cache schema ready", map[string]interface{}{"backend": cc.Backend})
	}

	log.Info("Address cache opened", map[string]interface{}{"backend": cc.Backend})
	return store, nil
}

// Memcached keys use underscores, e.g. postcode_address_SW1A1AA.
func memcachedPrefix(prefix string) string {
	return strings.ReplaceAll(prefix, ":", "_")
}

func (s *Store) Backend() string {
	return s.backend
}

// Ping checks the backing connection. Local backends are always ready.
func (s *Store) Ping(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Ping(ctx)
}

func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
