package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

// Load reads configuration from a YAML or JSON file. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	return load(path, false)
}

// LoadWithEnv loads configuration from a file and applies environment
// overrides. Keys map to TRAZO_-prefixed variables with dots flattened to
// underscores, e.g. redis.address becomes TRAZO_REDIS_ADDRESS.
func LoadWithEnv(path string) (*Config, error) {
	return load(path, true)
}

func load(path string, withEnv bool) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	setDefaults(v, cfg)

	if withEnv {
		v.SetEnvPrefix("TRAZO")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// Missing file falls through to defaults.
		}
	}

	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if withEnv {
		applyDataDogEnv(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key with viper so environment overrides are
// visible to Unmarshal. Values come from DefaultConfig so there is a single
// source of truth.
//
//nolint:gocyclo // Flat key registration, one line per field
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("memory.enabled", cfg.Memory.Enabled)
	v.SetDefault("memory.maxSizeMB", cfg.Memory.MaxSizeMB)
	v.SetDefault("memory.defaultTTL", cfg.Memory.DefaultTTL)
	v.SetDefault("memory.cleanupInterval", cfg.Memory.CleanupInterval)
	v.SetDefault("memory.shards", cfg.Memory.Shards)
	v.SetDefault("memory.maxEntrySize", cfg.Memory.MaxEntrySize)

	v.SetDefault("redis.enabled", cfg.Redis.Enabled)
	v.SetDefault("redis.address", cfg.Redis.Address)
	v.SetDefault("redis.password", cfg.Redis.Password.Value())
	v.SetDefault("redis.db", cfg.Redis.DB)
	v.SetDefault("redis.keyPrefix", cfg.Redis.KeyPrefix)
	v.SetDefault("redis.defaultTTL", cfg.Redis.DefaultTTL)
	v.SetDefault("redis.poolSize", cfg.Redis.PoolSize)
	v.SetDefault("redis.minIdleConns", cfg.Redis.MinIdleConns)
	v.SetDefault("redis.dialTimeout", cfg.Redis.DialTimeout)
	v.SetDefault("redis.readTimeout", cfg.Redis.ReadTimeout)
	v.SetDefault("redis.writeTimeout", cfg.Redis.WriteTimeout)
	v.SetDefault("redis.poolTimeout", cfg.Redis.PoolTimeout)
	v.SetDefault("redis.maxPendingWrites", cfg.Redis.MaxPendingWrites)
	v.SetDefault("redis.enableTLS", cfg.Redis.EnableTLS)
	v.SetDefault("redis.tlsSkipVerify", cfg.Redis.TLSSkipVerify)
	v.SetDefault("redis.healthCheckInterval", cfg.Redis.HealthCheckInterval)

	v.SetDefault("cache.strategies.static", cfg.Cache.Strategies.Static)
	v.SetDefault("cache.strategies.dynamic", cfg.Cache.Strategies.Dynamic)
	v.SetDefault("cache.strategies.realtime", cfg.Cache.Strategies.Realtime)
	v.SetDefault("cache.strategies.computation", cfg.Cache.Strategies.Computation)
	v.SetDefault("cache.freshnessFraction", cfg.Cache.FreshnessFraction)
	v.SetDefault("cache.compressionEnabled", cfg.Cache.CompressionEnabled)
	v.SetDefault("cache.compressionThreshold", cfg.Cache.CompressionThreshold)
	v.SetDefault("cache.degradedTTL", cfg.Cache.DegradedTTL)
	v.SetDefault("cache.storageMaxRetries", cfg.Cache.StorageMaxRetries)

	v.SetDefault("defaults.strategy", cfg.Defaults.Strategy)
	v.SetDefault("defaults.level", cfg.Defaults.Level)
	v.SetDefault("defaults.fireAndForget", cfg.Defaults.FireAndForget)

	v.SetDefault("breaker.enabled", cfg.Breaker.Enabled)
	v.SetDefault("breaker.failureThreshold", cfg.Breaker.FailureThreshold)
	v.SetDefault("breaker.successThreshold", cfg.Breaker.SuccessThreshold)
	v.SetDefault("breaker.recoveryTimeout", cfg.Breaker.RecoveryTimeout)
	v.SetDefault("breaker.requestTimeout", cfg.Breaker.RequestTimeout)
	v.SetDefault("breaker.slidingWindowSize", cfg.Breaker.SlidingWindowSize)
	v.SetDefault("breaker.store.enabled", cfg.Breaker.Store.Enabled)
	v.SetDefault("breaker.store.keyPrefix", cfg.Breaker.Store.KeyPrefix)
	v.SetDefault("breaker.store.ttl", cfg.Breaker.Store.TTL)

	v.SetDefault("retry.enabled", cfg.Retry.Enabled)
	v.SetDefault("retry.maxAttempts", cfg.Retry.MaxAttempts)
	v.SetDefault("retry.baseDelay", cfg.Retry.BaseDelay)
	v.SetDefault("retry.maxDelay", cfg.Retry.MaxDelay)
	v.SetDefault("retry.exponential", cfg.Retry.Exponential)
	v.SetDefault("retry.jitter", cfg.Retry.Jitter)
	v.SetDefault("retry.retryableKinds", cfg.Retry.RetryableKinds)
	v.SetDefault("retry.nonRetryableKinds", cfg.Retry.NonRetryableKinds)

	v.SetDefault("bulkhead.enabled", cfg.Bulkhead.Enabled)
	v.SetDefault("bulkhead.maxConcurrent", cfg.Bulkhead.MaxConcurrent)
	v.SetDefault("bulkhead.maxQueue", cfg.Bulkhead.MaxQueue)
	v.SetDefault("bulkhead.acquireTimeout", cfg.Bulkhead.AcquireTimeout)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.publishInterval", cfg.Metrics.PublishInterval)
	v.SetDefault("metrics.datadog.enabled", cfg.Metrics.DataDog.Enabled)
	v.SetDefault("metrics.datadog.agentHost", cfg.Metrics.DataDog.AgentHost)
	v.SetDefault("metrics.datadog.port", cfg.Metrics.DataDog.Port)
	v.SetDefault("metrics.datadog.prefix", cfg.Metrics.DataDog.Prefix)
	v.SetDefault("metrics.datadog.tags", cfg.Metrics.DataDog.Tags)
	v.SetDefault("metrics.datadog.publishIntervalSeconds", cfg.Metrics.DataDog.PublishIntervalSeconds)

	v.SetDefault("keyValidation.enabled", cfg.KeyValidation.Enabled)
	v.SetDefault("keyValidation.maxComponentLen", cfg.KeyValidation.MaxComponentLen)
	v.SetDefault("keyValidation.allowEmpty", cfg.KeyValidation.AllowEmpty)
	v.SetDefault("keyValidation.allowControlChars", cfg.KeyValidation.AllowControlChars)
	v.SetDefault("keyValidation.allowWhitespace", cfg.KeyValidation.AllowWhitespace)
}

func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		stringToSecretHook(),
	)
}

// stringToSecretHook decodes plain config strings into SecretString so the
// raw value never appears in marshaled or logged config.
func stringToSecretHook() mapstructure.DecodeHookFunc {
	secretType := reflect.TypeOf(types.SecretString{})
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t != secretType {
			return data, nil
		}
		return types.NewSecretString(data.(string)), nil
	}
}

// applyDataDogEnv honors the standard DataDog agent environment variables,
// which take precedence over file configuration.
func applyDataDogEnv(cfg *Config) {
	if v := os.Getenv("DD_AGENT_HOST"); v != "" {
		cfg.Metrics.DataDog.AgentHost = v
		cfg.Metrics.DataDog.Enabled = true
	}
	if v := os.Getenv("DD_DOGSTATSD_PORT"); v != "" {
		if port, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Metrics.DataDog.Port = port
		}
	}
	if v := os.Getenv("DD_SERVICE"); v != "" {
		cfg.Metrics.DataDog.Prefix = v
	}
	if v := os.Getenv("DD_ENV"); v != "" {
		cfg.Metrics.DataDog.Tags = append(cfg.Metrics.DataDog.Tags, "env:"+v)
	}
	if v := os.Getenv("DD_VERSION"); v != "" {
		cfg.Metrics.DataDog.Tags = append(cfg.Metrics.DataDog.Tags, "version:"+v)
	}
}

// Validate rejects configurations that no component could run under.
//
//nolint:gocyclo // Flat validation of independent sections
func (c *Config) Validate() error {
	if c.Memory.Enabled {
		if c.Memory.MaxSizeMB <= 0 {
			return fmt.Errorf("%w: memory.maxSizeMB must be positive", types.ErrInvalidConfig)
		}
		if c.Memory.Shards <= 0 || (c.Memory.Shards&(c.Memory.Shards-1)) != 0 {
			return fmt.Errorf("%w: memory.shards must be a positive power of 2", types.ErrInvalidConfig)
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("%w: redis.address is required when redis is enabled", types.ErrInvalidConfig)
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("%w: redis.poolSize must be positive", types.ErrInvalidConfig)
		}
	}

	if c.Cache.FreshnessFraction <= 0 || c.Cache.FreshnessFraction > 1 {
		return fmt.Errorf("%w: cache.freshnessFraction must be in (0, 1]", types.ErrInvalidConfig)
	}
	for _, ttl := range []struct {
		name string
		d    time.Duration
	}{
		{"cache.strategies.static", c.Cache.Strategies.Static},
		{"cache.strategies.dynamic", c.Cache.Strategies.Dynamic},
		{"cache.strategies.realtime", c.Cache.Strategies.Realtime},
		{"cache.strategies.computation", c.Cache.Strategies.Computation},
	} {
		if ttl.d <= 0 {
			return fmt.Errorf("%w: %s must be positive", types.ErrInvalidConfig, ttl.name)
		}
	}
	if c.Cache.StorageMaxRetries < 0 {
		return fmt.Errorf("%w: cache.storageMaxRetries cannot be negative", types.ErrInvalidConfig)
	}

	if _, err := types.ParseStrategy(c.Defaults.Strategy); err != nil {
		return fmt.Errorf("%w: defaults.strategy: %q", types.ErrInvalidConfig, c.Defaults.Strategy)
	}

	if err := validateBreaker("breaker", &c.Breaker); err != nil {
		return err
	}
	if err := validateRetry("retry", &c.Retry); err != nil {
		return err
	}
	if c.Bulkhead.Enabled && c.Bulkhead.MaxConcurrent <= 0 {
		return fmt.Errorf("%w: bulkhead.maxConcurrent must be positive", types.ErrInvalidConfig)
	}

	for name, dep := range c.Dependencies {
		if name == "" {
			return fmt.Errorf("%w: dependency name cannot be empty", types.ErrInvalidConfig)
		}
		if dep.Strategy != "" {
			if _, err := types.ParseStrategy(dep.Strategy); err != nil {
				return fmt.Errorf("%w: dependencies.%s.strategy: %q", types.ErrInvalidConfig, name, dep.Strategy)
			}
		}
		if dep.Breaker != nil {
			if err := validateBreaker("dependencies."+name+".breaker", dep.Breaker); err != nil {
				return err
			}
		}
		if dep.Retry != nil {
			if err := validateRetry("dependencies."+name+".retry", dep.Retry); err != nil {
				return err
			}
		}
		if dep.Fallback != nil {
			if _, err := types.ParseFallbackStrategy(dep.Fallback.Strategy); err != nil {
				return fmt.Errorf("%w: dependencies.%s.fallback.strategy: %q", types.ErrInvalidConfig, name, dep.Fallback.Strategy)
			}
		}
		if dep.Bulkhead != nil && dep.Bulkhead.Enabled && dep.Bulkhead.MaxConcurrent <= 0 {
			return fmt.Errorf("%w: dependencies.%s.bulkhead.maxConcurrent must be positive", types.ErrInvalidConfig, name)
		}
	}

	return nil
}

func validateBreaker(section string, b *BreakerConfig) error {
	if !b.Enabled {
		return nil
	}
	if b.FailureThreshold <= 0 {
		return fmt.Errorf("%w: %s.failureThreshold must be positive", types.ErrInvalidConfig, section)
	}
	if b.SuccessThreshold <= 0 {
		return fmt.Errorf("%w: %s.successThreshold must be positive", types.ErrInvalidConfig, section)
	}
	if b.RecoveryTimeout <= 0 {
		return fmt.Errorf("%w: %s.recoveryTimeout must be positive", types.ErrInvalidConfig, section)
	}
	if b.SlidingWindowSize <= 0 {
		return fmt.Errorf("%w: %s.slidingWindowSize must be positive", types.ErrInvalidConfig, section)
	}
	return nil
}

func validateRetry(section string, r *RetryConfig) error {
	if !r.Enabled {
		return nil
	}
	if r.MaxAttempts <= 0 {
		return fmt.Errorf("%w: %s.maxAttempts must be positive", types.ErrInvalidConfig, section)
	}
	if r.BaseDelay < 0 || r.MaxDelay < 0 {
		return fmt.Errorf("%w: %s delays cannot be negative", types.ErrInvalidConfig, section)
	}
	if r.MaxDelay > 0 && r.BaseDelay > r.MaxDelay {
		return fmt.Errorf("%w: %s.baseDelay exceeds maxDelay", types.ErrInvalidConfig, section)
	}
	for _, kind := range append(append([]string{}, r.RetryableKinds...), r.NonRetryableKinds...) {
		if !types.KnownErrorKind(kind) {
			return fmt.Errorf("%w: %s references unknown error kind %q", types.ErrInvalidConfig, section, kind)
		}
	}
	return nil
}
