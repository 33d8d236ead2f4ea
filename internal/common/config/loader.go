// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"postcode-workers/internal/lookup"
)

const (
	CacheBackendPostgres      = "postgres"
	CacheBackendRedis         = "redis"
	CacheBackendElasticsearch = "elasticsearch"
	CacheBackendMemcached     = "memcached"
	CacheBackendMemory        = "memory"
	CacheBackendNone          = "none"
)

// Load reads configs/config.yaml, merges configs/config.<APP_ENVIRONMENT>.yaml
// on top and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads the first .env found walking up from the working
// directory, so binaries and tests in subdirectories share one file.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string and list values.
// Unset variables expand to empty; empty list items are dropped.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		switch val := v.Get(key).(type) {
		case string:
			if hasEnvRef(val) {
				v.Set(key, os.ExpandEnv(val))
			}
		case []interface{}:
			changed := false
			out := make([]string, 0, len(val))
			for _, item := range val {
				s, ok := item.(string)
				if !ok {
					s = fmt.Sprint(item)
				}
				if hasEnvRef(s) {
					s = os.ExpandEnv(s)
					changed = true
				}
				if s != "" {
					out = append(out, s)
				}
			}
			if changed {
				v.Set(key, out)
			}
		}
	}
}

func hasEnvRef(s string) bool {
	return strings.Contains(s, "${") || (strings.HasPrefix(s, "$") && len(s) > 1)
}

// Direct override if config values are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	if cfg.Lookup.Key == "" {
		if val := os.Getenv("PCA_KEY"); val != "" {
			cfg.Lookup.Key = val
		}
	}
	if cfg.Lookup.UserName == "" {
		if val := os.Getenv("PCA_USERNAME"); val != "" {
			cfg.Lookup.UserName = val
		}
	}
	if cfg.Cache.FreshnessCutoff == "" {
		if val := os.Getenv("PCA_CACHE_CUTOFF"); val != "" {
			cfg.Cache.FreshnessCutoff = val
		}
	}
	if cfg.Tracing.JaegerEndpoint == "" {
		if val := os.Getenv("JAEGER_ENDPOINT"); val != "" {
			cfg.Tracing.JaegerEndpoint = val
		}
	}

	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "postcode-workers"
	}

	// Camunda defaults
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	// Database defaults
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Memcached.Timeout == 0 {
		cfg.Database.Memcached.Timeout = 500
	}

	// Lookup defaults
	if cfg.Lookup.BaseURL == "" {
		cfg.Lookup.BaseURL = "https://services.postcodeanywhere.co.uk"
	}
	if cfg.Lookup.Product == "" {
		cfg.Lookup.Product = "PostcodeAnywhere"
	}
	if cfg.Lookup.Mode == "" {
		cfg.Lookup.Mode = "Interactive"
	}
	if cfg.Lookup.Endpoint == "" {
		cfg.Lookup.Endpoint = "RetrieveByParts"
	}
	if cfg.Lookup.Version == "" {
		cfg.Lookup.Version = "1.00"
	}
	if cfg.Lookup.Timeout == 0 {
		cfg.Lookup.Timeout = 5000
	}

	// Cache defaults
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = CacheBackendMemory
	}
	if cfg.Cache.Table == "" {
		cfg.Cache.Table = "pa_address"
	}
	if cfg.Cache.Index == "" {
		cfg.Cache.Index = "postcode-addresses"
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "postcode:address:"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields. A missing PCA key
// is not checked here: it surfaces as a configuration error on first lookup.
func validateConfig(cfg *Config) error {
	switch cfg.Cache.Backend {
	case CacheBackendPostgres:
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	case CacheBackendRedis:
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required")
		}
	case CacheBackendElasticsearch:
		if len(cfg.Database.Elasticsearch.GetAddresses()) == 0 {
			return fmt.Errorf("database.elasticsearch.addresses or url is required")
		}
	case CacheBackendMemcached:
		if len(cfg.Database.Memcached.Servers) == 0 {
			return fmt.Errorf("database.memcached.servers is required")
		}
	case CacheBackendMemory, CacheBackendNone:
	default:
		return fmt.Errorf("cache.backend %q is not supported", cfg.Cache.Backend)
	}

	if cfg.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	if _, err := lookup.ParseCutoff(cfg.Cache.FreshnessCutoff, time.Now()); err != nil {
		return fmt.Errorf("cache.freshness_cutoff: %w", err)
	}
	if cfg.Cache.MaxAge != "" {
		if _, err := time.ParseDuration(cfg.Cache.MaxAge); err != nil {
			return fmt.Errorf("cache.max_age: %w", err)
		}
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
