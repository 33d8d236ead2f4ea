package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"postcode-workers/internal/common/cache"
	"postcode-workers/internal/common/config"
	"postcode-workers/internal/common/logger"
	"postcode-workers/internal/common/pca"
	"postcode-workers/internal/lookup"
	"postcode-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

const oneAddress = `[{"Udprn":"23747771","Company":"","Line1":"Flat 1","Line2":"10 Downing Street",
 "PrimaryStreet":"Downing Street","PostTown":"London","County":"","CountryName":"England",
 "Postcode":"SW1A 2AA","Type":"Residential"}]`

func newAddressServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "SW1A 2AA", r.URL.Query().Get("Postcode"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(oneAddress))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func createTestConfig(baseURL, backend string) *config.Config {
	return &config.Config{
		Lookup: config.LookupConfig{
			BaseURL: baseURL,
			Key:     "AA11-BB22",
			Timeout: 2000,
		},
		Cache: config.CacheConfig{Backend: backend},
	}
}

// ==========================
// Freshness Tests
// ==========================

func TestFreshnessFromConfig(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("empty config disables both checks", func(t *testing.T) {
		policy, err := FreshnessFromConfig(config.CacheConfig{}, now)
		require.NoError(t, err)
		assert.True(t, policy.Cutoff.IsZero())
		assert.Zero(t, policy.MaxAge)
	})

	t.Run("absolute cutoff and max age", func(t *testing.T) {
		policy, err := FreshnessFromConfig(config.CacheConfig{
			FreshnessCutoff: "2024-01-01",
			MaxAge:          "720h",
		}, now)
		require.NoError(t, err)
		assert.True(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local).Equal(policy.Cutoff))
		assert.Equal(t, 720*time.Hour, policy.MaxAge)
	})

	t.Run("relative cutoff", func(t *testing.T) {
		policy, err := FreshnessFromConfig(config.CacheConfig{FreshnessCutoff: "-24h"}, now)
		require.NoError(t, err)
		assert.Equal(t, now.Add(-24*time.Hour), policy.Cutoff)
	})

	t.Run("invalid cutoff", func(t *testing.T) {
		_, err := FreshnessFromConfig(config.CacheConfig{FreshnessCutoff: "last tuesday"}, now)
		assert.ErrorIs(t, err, lookup.ErrInvalidCutoff)
	})

	t.Run("invalid max age", func(t *testing.T) {
		_, err := FreshnessFromConfig(config.CacheConfig{MaxAge: "a month"}, now)
		assert.ErrorContains(t, err, "cache.max_age")
	})
}

// ==========================
// Assembly Tests
// ==========================

func TestNewLookup_MemoryBackendCachesSecondCall(t *testing.T) {
	srv, calls := newAddressServer(t)
	cfg := createTestConfig(srv.URL, config.CacheBackendMemory)

	l, err := NewLookup(context.Background(), cfg, logger.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	assert.Equal(t, "AA11-BB22", l.Credentials.Key)
	assert.Equal(t, config.CacheBackendMemory, l.Store.Backend())

	first, err := l.Service.Get(context.Background(), "sw1a2aa", l.Credentials, false)
	require.NoError(t, err)
	assert.Equal(t, models.SourceAPI, first.Source)
	require.Len(t, first.Data, 1)

	second, err := l.Service.Get(context.Background(), "SW1A 2AA", l.Credentials, false)
	require.NoError(t, err)
	assert.Equal(t, models.SourceCache, second.Source)
	assert.Equal(t, first.Data, second.Data)

	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestNewLookup_NoneBackendAlwaysCallsRemote(t *testing.T) {
	srv, calls := newAddressServer(t)
	cfg := createTestConfig(srv.URL, config.CacheBackendNone)

	l, err := NewLookup(context.Background(), cfg, logger.NewNoOpLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	assert.Nil(t, l.Store.Cache)
	assert.NoError(t, l.Store.Ping(context.Background()))

	for i := 0; i < 2; i++ {
		result, err := l.Service.Get(context.Background(), "SW1A 2AA", l.Credentials, false)
		require.NoError(t, err)
		assert.Equal(t, models.SourceAPI, result.Source)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestNewLookupWithStore_AppliesFreshness(t *testing.T) {
	srv, calls := newAddressServer(t)
	cfg := createTestConfig(srv.URL, config.CacheBackendMemory)

	store, err := cache.Open(context.Background(), cfg, logger.NewNoOpLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	// Everything cached before the far-future cutoff is stale.
	freshness := lookup.FreshnessPolicy{Cutoff: time.Now().Add(24 * time.Hour)}
	l := NewLookupWithStore(cfg, store, freshness, logger.NewTestLogger(t))
	assert.Same(t, store, l.Store)

	for i := 0; i < 2; i++ {
		result, err := l.Service.Get(context.Background(), "SW1A 2AA", l.Credentials, false)
		require.NoError(t, err)
		assert.Equal(t, models.SourceAPI, result.Source)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestNewLookup_Errors(t *testing.T) {
	t.Run("bad cutoff", func(t *testing.T) {
		cfg := createTestConfig("http://127.0.0.1:1", config.CacheBackendMemory)
		cfg.Cache.FreshnessCutoff = "soon"
		_, err := NewLookup(context.Background(), cfg, logger.NewNoOpLogger())
		assert.ErrorIs(t, err, lookup.ErrInvalidCutoff)
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := createTestConfig("http://127.0.0.1:1", "mongo")
		_, err := NewLookup(context.Background(), cfg, logger.NewNoOpLogger())
		assert.ErrorContains(t, err, "mongo")
	})
}

func TestNewRemoteClient_UsesConfiguredEndpoint(t *testing.T) {
	c := NewRemoteClient(config.LookupConfig{
		BaseURL:  "https://pca.example.test/",
		Product:  "PostcodeAnywhere",
		Mode:     "Interactive",
		Endpoint: "RetrieveByParts",
		Version:  "1.00",
	})

	u, err := c.BuildURL("SW1A 2AA", pca.Credentials{Key: "AA11-BB22"})
	require.NoError(t, err)
	assert.Contains(t, u, "https://pca.example.test/PostcodeAnywhere/Interactive/RetrieveByParts/1.00/json.ws?")
}
