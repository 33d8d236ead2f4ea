// Package app assembles the lookup service from application configuration
// for the worker manager and the operator CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"postcode-workers/internal/common/cache"
	"postcode-workers/internal/common/config"
	httpclient "postcode-workers/internal/common/http"
	"postcode-workers/internal/common/logger"
	"postcode-workers/internal/common/pca"
	"postcode-workers/internal/lookup"
)

// Lookup bundles the service with the resources it owns.
type Lookup struct {
	Service     *lookup.Service
	Store       *cache.Store
	Credentials pca.Credentials
}

// FreshnessFromConfig resolves cache.freshness_cutoff and cache.max_age.
func FreshnessFromConfig(cc config.CacheConfig, now time.Time) (lookup.FreshnessPolicy, error) {
	cutoff, err := lookup.ParseCutoff(cc.FreshnessCutoff, now)
	if err != nil {
		return lookup.FreshnessPolicy{}, err
	}

	policy := lookup.FreshnessPolicy{Cutoff: cutoff}
	if cc.MaxAge != "" {
		maxAge, err := time.ParseDuration(cc.MaxAge)
		if err != nil {
			return lookup.FreshnessPolicy{}, fmt.Errorf("cache.max_age: %w", err)
		}
		policy.MaxAge = maxAge
	}
	return policy, nil
}

// NewRemoteClient builds the address service client on the shared outbound
// HTTP client.
func NewRemoteClient(lc config.LookupConfig) *pca.Client {
	httpClient := httpclient.NewClient(httpclient.Options{
		Timeout:            config.GetDuration(lc.Timeout),
		InsecureSkipVerify: lc.InsecureSkipVerify,
		UserAgent:          lc.UserAgent,
	})

	return pca.NewClient(pca.Config{
		BaseURL:  lc.BaseURL,
		Product:  lc.Product,
		Mode:     lc.Mode,
		Endpoint: lc.Endpoint,
		Version:  lc.Version,
	}, httpClient)
}

// NewLookup opens the configured cache and wires the service. The caller
// closes the returned Store.
func NewLookup(ctx context.Context, cfg *config.Config, log logger.Logger) (*Lookup, error) {
	freshness, err := FreshnessFromConfig(cfg.Cache, time.Now())
	if err != nil {
		return nil, err
	}

	store, err := cache.Open(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", cfg.Cache.Backend, err)
	}

	return NewLookupWithStore(cfg, store, freshness, log), nil
}

// NewLookupWithStore wires the service over an already opened store, for
// callers that manage the cache connection themselves.
func NewLookupWithStore(cfg *config.Config, store *cache.Store, freshness lookup.FreshnessPolicy, log logger.Logger) *Lookup {
	if freshness.MaxAge > 0 || !freshness.Cutoff.IsZero() {
		log.Info("Cache freshness policy", map[string]interface{}{
			"cutoff": freshness.Cutoff,
			"maxAge": freshness.MaxAge.String(),
		})
	}

	svc := lookup.NewService(
		lookup.Config{Freshness: freshness},
		NewRemoteClient(cfg.Lookup),
		store.Cache,
		log,
	)

	return &Lookup{
		Service: svc,
		Store:   store,
		Credentials: pca.Credentials{
			Key:      cfg.Lookup.Key,
			UserName: cfg.Lookup.UserName,
		},
	}
}

func (l *Lookup) Close() error {
	return l.Store.Close()
}
