// Package cache provides the address cache backends.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	apperrors "postcode-workers/internal/common/errors"
	"postcode-workers/internal/lookup"
)

// PostgresCache stores one row per postcode:
// (postcode PRIMARY KEY, content TEXT, created TIMESTAMPTZ).
type PostgresCache struct {
	db    *sql.DB
	table string
	now   func() time.Time
}

func NewPostgresCache(db *sql.DB, table string) *PostgresCache {
	return &PostgresCache{
		db:    db,
		table: pq.QuoteIdentifier(table),
		now:   time.Now,
	}
}

func (c *PostgresCache) Name() string { return "postgres" }

// EnsureSchema creates the cache table if it does not exist.
func (c *PostgresCache) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			postcode VARCHAR(8) PRIMARY KEY,
			content  TEXT NOT NULL,
			created  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, c.table)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure address cache table: %w", err)
	}
	return nil
}

func (c *PostgresCache) Find(ctx context.Context, postcode string) (*lookup.CacheEntry, error) {
	query := fmt.Sprintf(`SELECT postcode, content, created FROM %s WHERE postcode = $1`, c.table)

	var entry lookup.CacheEntry
	err := c.db.QueryRowContext(ctx, query, postcode).Scan(&entry.Postcode, &entry.Content, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, lookup.ErrCacheMiss
		}
		return nil, apperrors.NewCacheReadFailedError(postcode, err)
	}
	return &entry, nil
}

// Upsert inserts or replaces the row and refreshes its created timestamp.
func (c *PostgresCache) Upsert(ctx context.Context, postcode, content string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (postcode, content, created)
		VALUES ($1, $2, $3)
		ON CONFLICT (postcode) DO UPDATE SET
			content = EXCLUDED.content,
			created = EXCLUDED.created`, c.table)

	if _, err := c.db.ExecContext(ctx, query, postcode, content, c.now().UTC()); err != nil {
		return apperrors.NewCacheWriteFailedError(postcode, err)
	}
	return nil
}
