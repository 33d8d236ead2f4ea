// internal/common/database/memcached.go
package database

import (
	"context"
	"fmt"
	"time"

	"postcode-workers/internal/common/config"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcachedClient wraps the memcache client
type MemcachedClient struct {
	Client *memcache.Client
}

// NewMemcached creates a client for the configured server list.
func NewMemcached(cfg config.MemcachedConfig) (*MemcachedClient, error) {
	if len(cfg.Servers) == 0 {
		return nil, fmt.Errorf("memcached servers are required")
	}

	mc := memcache.New(cfg.Servers...)
	mc.Timeout = config.GetDuration(cfg.Timeout)
	if mc.Timeout <= 0 {
		mc.Timeout = 500 * time.Millisecond
	}

	return &MemcachedClient{Client: mc}, nil
}

// Ping checks every configured server.
func (c *MemcachedClient) Ping(_ context.Context) error {
	if err := c.Client.Ping(); err != nil {
		return fmt.Errorf("memcached ping failed: %w", err)
	}
	return nil
}

// Close is a no-op; idle connections are reaped by the client.
func (c *MemcachedClient) Close() error {
	return nil
}
