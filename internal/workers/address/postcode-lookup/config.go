package postcodelookup

import (
	"fmt"
	"time"

	"postcode-workers/internal/common/config"
	"postcode-workers/internal/common/pca"
)

type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	Credentials   pca.Credentials
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30 * time.Second,
		MaxRetries:    3,
	}
}

// Validate leaves credentials alone: a missing key is reported per job as a
// configuration error so the process still starts and serves /health.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	return nil
}

// ConfigFromAppConfig merges the workers.<TaskType> section and the lookup
// credentials over the defaults.
func ConfigFromAppConfig(appConfig *config.Config) *Config {
	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}

	wc := config.GetWorkerConfig(appConfig, TaskType)
	cfg.Enabled = wc.Enabled
	if wc.MaxJobsActive > 0 {
		cfg.MaxJobsActive = wc.MaxJobsActive
	}
	if wc.Timeout > 0 {
		cfg.Timeout = config.GetDuration(wc.Timeout)
	}
	if wc.MaxRetries > 0 {
		cfg.MaxRetries = wc.MaxRetries
	}

	cfg.Credentials = pca.Credentials{
		Key:      appConfig.Lookup.Key,
		UserName: appConfig.Lookup.UserName,
	}
	return cfg
}
