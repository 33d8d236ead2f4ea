// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig               `mapstructure:"app"`
	Camunda  CamundaConfig           `mapstructure:"camunda"`
	Database DatabaseConfig          `mapstructure:"database"`
	Workers  map[string]WorkerConfig `mapstructure:"workers"`
	Lookup   LookupConfig            `mapstructure:"lookup"`
	Cache    CacheConfig             `mapstructure:"cache"`
	Logging  LoggingConfig           `mapstructure:"logging"`
	Server   ServerConfig            `mapstructure:"server"`
	Tracing  TracingConfig           `mapstructure:"tracing"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	UsePlaintext   bool   `mapstructure:"use_plaintext"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Memcached     MemcachedConfig     `mapstructure:"memcached"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetAddresses returns the configured node addresses, falling back to URL.
func (e ElasticsearchConfig) GetAddresses() []string {
	if len(e.Addresses) > 0 {
		return e.Addresses
	}
	if e.URL != "" {
		return []string{e.URL}
	}
	return nil
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MemcachedConfig struct {
	Servers []string `mapstructure:"servers"`
	Timeout int      `mapstructure:"timeout"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Address Lookup ---

// LookupConfig holds the Postcode Anywhere settings.
type LookupConfig struct {
	BaseURL            string `mapstructure:"base_url"`
	Product            string `mapstructure:"product"`
	Mode               string `mapstructure:"mode"`
	Endpoint           string `mapstructure:"endpoint"`
	Version            string `mapstructure:"version"`
	Key                string `mapstructure:"key"`
	UserName           string `mapstructure:"username"`
	Timeout            int    `mapstructure:"timeout"` // milliseconds
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
	UserAgent          string `mapstructure:"user_agent"`
}

// CacheConfig selects and tunes the address cache backend.
type CacheConfig struct {
	Backend         string `mapstructure:"backend"` // postgres, redis, elasticsearch, memcached, memory, none
	Table           string `mapstructure:"table"`
	Index           string `mapstructure:"index"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	TTL             int    `mapstructure:"ttl"` // seconds, 0 = no eviction
	FreshnessCutoff string `mapstructure:"freshness_cutoff"`
	MaxAge          string `mapstructure:"max_age"`
	EnsureSchema    bool   `mapstructure:"ensure_schema"`
}

// TTLDuration returns the configured eviction TTL.
func (c CacheConfig) TTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ServerConfig holds the health/metrics listener settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// TracingConfig enables OpenTelemetry spans for jobs and lookups.
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}
