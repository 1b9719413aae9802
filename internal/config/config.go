// Package config provides configuration management for the upstream access layer.
package config

import (
	"time"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

// SecretString is a string type that redacts its value when marshaled or logged.
type SecretString = types.SecretString

// NewSecretString creates a new SecretString with the provided value.
func NewSecretString(value string) SecretString {
	return types.NewSecretString(value)
}

// Config contains all configuration for the resilient access layer.
//
//nolint:govet // fields grouped by concern, not by size
type Config struct {
	Redis         RedisConfig                 `mapstructure:"redis" json:"redis"`
	Memory        MemoryConfig                `mapstructure:"memory" json:"memory"`
	Cache         CacheConfig                 `mapstructure:"cache" json:"cache"`
	Breaker       BreakerConfig               `mapstructure:"breaker" json:"breaker"`
	Retry         RetryConfig                 `mapstructure:"retry" json:"retry"`
	Bulkhead      BulkheadConfig              `mapstructure:"bulkhead" json:"bulkhead"`
	Metrics       MetricsConfig               `mapstructure:"metrics" json:"metrics"`
	Defaults      DefaultsConfig              `mapstructure:"defaults" json:"defaults"`
	KeyValidation KeyValidationConfig         `mapstructure:"keyValidation" json:"keyValidation"`
	Dependencies  map[string]DependencyConfig `mapstructure:"dependencies" json:"dependencies"`
}

// KeyValidationConfig contains configuration for key component validation.
type KeyValidationConfig struct {
	ReservedPatterns  []string `mapstructure:"reservedPatterns" json:"reservedPatterns"`
	MaxComponentLen   int      `mapstructure:"maxComponentLen" json:"maxComponentLen"`
	Enabled           bool     `mapstructure:"enabled" json:"enabled"`
	AllowEmpty        bool     `mapstructure:"allowEmpty" json:"allowEmpty"`
	AllowControlChars bool     `mapstructure:"allowControlChars" json:"allowControlChars"`
	AllowWhitespace   bool     `mapstructure:"allowWhitespace" json:"allowWhitespace"`
}

// ToTypesConfig converts this config to a types.KeyValidationConfig.
func (c KeyValidationConfig) ToTypesConfig() types.KeyValidationConfig {
	return types.KeyValidationConfig{
		MaxComponentLen:   c.MaxComponentLen,
		AllowEmpty:        c.AllowEmpty,
		AllowControlChars: c.AllowControlChars,
		AllowWhitespace:   c.AllowWhitespace,
		ReservedPatterns:  c.ReservedPatterns,
	}
}

// MemoryConfig contains configuration for the memory cache layer. MaxSizeMB
// is a hard cap; the local tier evicts rather than grow past it.
type MemoryConfig struct {
	DefaultTTL      time.Duration `mapstructure:"defaultTTL" json:"defaultTTL"`
	CleanupInterval time.Duration `mapstructure:"cleanupInterval" json:"cleanupInterval"`
	MaxSizeMB       int           `mapstructure:"maxSizeMB" json:"maxSizeMB"`
	Shards          int           `mapstructure:"shards" json:"shards"`
	MaxEntrySize    int           `mapstructure:"maxEntrySize" json:"maxEntrySize"`
	Enabled         bool          `mapstructure:"enabled" json:"enabled"`
}

// RedisConfig contains configuration for the Redis cache layer and the
// breaker state store.
//
//nolint:govet // fields grouped by concern, not by size
type RedisConfig struct {
	DefaultTTL          time.Duration `mapstructure:"defaultTTL" json:"defaultTTL"`
	DialTimeout         time.Duration `mapstructure:"dialTimeout" json:"dialTimeout"`
	ReadTimeout         time.Duration `mapstructure:"readTimeout" json:"readTimeout"`
	WriteTimeout        time.Duration `mapstructure:"writeTimeout" json:"writeTimeout"`
	PoolTimeout         time.Duration `mapstructure:"poolTimeout" json:"poolTimeout"`
	HealthCheckInterval time.Duration `mapstructure:"healthCheckInterval" json:"healthCheckInterval"`
	Password            SecretString  `mapstructure:"password" json:"password"`
	Address             string        `mapstructure:"address" json:"address"`
	KeyPrefix           string        `mapstructure:"keyPrefix" json:"keyPrefix"`
	DB                  int           `mapstructure:"db" json:"db"`
	PoolSize            int           `mapstructure:"poolSize" json:"poolSize"`
	MinIdleConns        int           `mapstructure:"minIdleConns" json:"minIdleConns"`
	MaxPendingWrites    int           `mapstructure:"maxPendingWrites" json:"maxPendingWrites"`
	Enabled             bool          `mapstructure:"enabled" json:"enabled"`
	EnableTLS           bool          `mapstructure:"enableTLS" json:"enableTLS"`
	TLSSkipVerify       bool          `mapstructure:"tlsSkipVerify" json:"tlsSkipVerify"`
}

// CacheConfig contains the strategy TTL table and entry-handling policy.
//
//nolint:govet // fields grouped by concern, not by size
type CacheConfig struct {
	Strategies           StrategyTTLConfig `mapstructure:"strategies" json:"strategies"`
	Serializer           string            `mapstructure:"serializer" json:"serializer"`
	FreshnessFraction    float64           `mapstructure:"freshnessFraction" json:"freshnessFraction"`
	CompressionThreshold int               `mapstructure:"compressionThreshold" json:"compressionThreshold"`
	CompressionEnabled   bool              `mapstructure:"compressionEnabled" json:"compressionEnabled"`
	DegradedTTL          time.Duration     `mapstructure:"degradedTTL" json:"degradedTTL"`
	StorageMaxRetries    int               `mapstructure:"storageMaxRetries" json:"storageMaxRetries"`
}

// StrategyTTLConfig maps each caching strategy to its TTL.
type StrategyTTLConfig struct {
	Static      time.Duration `mapstructure:"static" json:"static"`
	Dynamic     time.Duration `mapstructure:"dynamic" json:"dynamic"`
	Realtime    time.Duration `mapstructure:"realtime" json:"realtime"`
	Computation time.Duration `mapstructure:"computation" json:"computation"`
}

// TTLFor returns the configured TTL for a strategy. Unset strategies fall
// back to the baked-in defaults so a partial config section stays usable.
func (c StrategyTTLConfig) TTLFor(s types.Strategy) time.Duration {
	var ttl, baked time.Duration
	switch s {
	case types.StrategyStatic:
		ttl, baked = c.Static, 24*time.Hour
	case types.StrategyRealtime:
		ttl, baked = c.Realtime, 30*time.Minute
	case types.StrategyComputation:
		ttl, baked = c.Computation, 4*time.Hour
	default:
		ttl, baked = c.Dynamic, 2*time.Hour
	}
	if ttl <= 0 {
		return baked
	}
	return ttl
}

// DefaultsConfig contains fallthrough values for cache operations.
type DefaultsConfig struct {
	Strategy string `mapstructure:"strategy" json:"strategy"`
	Level    string `mapstructure:"level" json:"level"`
	// FireAndForget enables async Redis writes. When true, SET operations
	// are queued and may be dropped if the queue is full.
	FireAndForget bool `mapstructure:"fireAndForget" json:"fireAndForget"`
}

// BreakerConfig contains per-dependency circuit breaker defaults.
type BreakerConfig struct {
	Enabled           bool               `mapstructure:"enabled" json:"enabled"`
	FailureThreshold  int                `mapstructure:"failureThreshold" json:"failureThreshold"`
	SuccessThreshold  int                `mapstructure:"successThreshold" json:"successThreshold"`
	RecoveryTimeout   time.Duration      `mapstructure:"recoveryTimeout" json:"recoveryTimeout"`
	RequestTimeout    time.Duration      `mapstructure:"requestTimeout" json:"requestTimeout"`
	SlidingWindowSize int                `mapstructure:"slidingWindowSize" json:"slidingWindowSize"`
	Store             BreakerStoreConfig `mapstructure:"store" json:"store"`
}

// BreakerStoreConfig controls snapshot persistence of breaker state in the
// shared Redis store.
type BreakerStoreConfig struct {
	Enabled   bool          `mapstructure:"enabled" json:"enabled"`
	KeyPrefix string        `mapstructure:"keyPrefix" json:"keyPrefix"`
	TTL       time.Duration `mapstructure:"ttl" json:"ttl"`
}

// RetryConfig contains retry defaults for upstream operations.
type RetryConfig struct {
	Enabled           bool          `mapstructure:"enabled" json:"enabled"`
	MaxAttempts       int           `mapstructure:"maxAttempts" json:"maxAttempts"`
	BaseDelay         time.Duration `mapstructure:"baseDelay" json:"baseDelay"`
	MaxDelay          time.Duration `mapstructure:"maxDelay" json:"maxDelay"`
	Exponential       bool          `mapstructure:"exponential" json:"exponential"`
	Jitter            bool          `mapstructure:"jitter" json:"jitter"`
	RetryableKinds    []string      `mapstructure:"retryableKinds" json:"retryableKinds"`
	NonRetryableKinds []string      `mapstructure:"nonRetryableKinds" json:"nonRetryableKinds"`
}

// FallbackConfig selects the substitute path used when retries are exhausted.
// Alternative operations cannot be expressed in a config file and are set
// programmatically at registration time.
type FallbackConfig struct {
	Strategy string        `mapstructure:"strategy" json:"strategy"`
	CacheTTL time.Duration `mapstructure:"cacheTTL" json:"cacheTTL"`
	Default  any           `mapstructure:"default" json:"default"`
}

// BulkheadConfig contains configuration for the per-dependency concurrency cap.
type BulkheadConfig struct {
	Enabled        bool          `mapstructure:"enabled" json:"enabled"`
	MaxConcurrent  int           `mapstructure:"maxConcurrent" json:"maxConcurrent"`
	MaxQueue       int           `mapstructure:"maxQueue" json:"maxQueue"`
	AcquireTimeout time.Duration `mapstructure:"acquireTimeout" json:"acquireTimeout"`
}

// DependencyConfig overrides the protection defaults for one named upstream
// dependency. Nil sections inherit the top-level defaults.
type DependencyConfig struct {
	Strategy string          `mapstructure:"strategy" json:"strategy"`
	Breaker  *BreakerConfig  `mapstructure:"breaker" json:"breaker"`
	Retry    *RetryConfig    `mapstructure:"retry" json:"retry"`
	Fallback *FallbackConfig `mapstructure:"fallback" json:"fallback"`
	Bulkhead *BulkheadConfig `mapstructure:"bulkhead" json:"bulkhead"`
}

// MetricsConfig contains configuration for metrics publishing.
//
//nolint:govet // small struct, reordering buys nothing
type MetricsConfig struct {
	PublishInterval time.Duration `mapstructure:"publishInterval" json:"publishInterval"`
	DataDog         DataDogConfig `mapstructure:"datadog" json:"datadog"`
	Enabled         bool          `mapstructure:"enabled" json:"enabled"`
}

// DataDogConfig contains configuration for DataDog metrics publishing.
//
//nolint:govet // small struct, reordering buys nothing
type DataDogConfig struct {
	Tags                   []string `mapstructure:"tags" json:"tags"`
	AgentHost              string   `mapstructure:"agentHost" json:"agentHost"`
	Prefix                 string   `mapstructure:"prefix" json:"prefix"`
	Port                   int      `mapstructure:"port" json:"port"`
	PublishIntervalSeconds int      `mapstructure:"publishIntervalSeconds" json:"publishIntervalSeconds"`
	Enabled                bool     `mapstructure:"enabled" json:"enabled"`
}
