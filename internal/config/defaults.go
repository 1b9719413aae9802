package config

import "time"

// DefaultConfig returns the production defaults. Environments override
// individual fields through the loader before the facade consumes the result.
func DefaultConfig() *Config {
	return &Config{
		Redis: RedisConfig{
			DefaultTTL:          2 * time.Hour,
			DialTimeout:         5 * time.Second,
			ReadTimeout:         3 * time.Second,
			WriteTimeout:        3 * time.Second,
			PoolTimeout:         4 * time.Second,
			HealthCheckInterval: 5 * time.Second,
			Address:             "localhost:6379",
			KeyPrefix:           "trazo:upstream:",
			PoolSize:            100,
			MinIdleConns:        10,
			MaxPendingWrites:    500,
			Enabled:             false, // opt in per environment
		},
		Memory: MemoryConfig{
			DefaultTTL:      24 * time.Hour,
			CleanupInterval: 10 * time.Second,
			MaxSizeMB:       256,
			Shards:          1024,
			MaxEntrySize:    10 << 20,
			Enabled:         true,
		},
		Cache: CacheConfig{
			Strategies: StrategyTTLConfig{
				Static:      24 * time.Hour,
				Dynamic:     2 * time.Hour,
				Realtime:    30 * time.Minute,
				Computation: 4 * time.Hour,
			},
			Serializer:           "json",
			FreshnessFraction:    0.8,
			CompressionEnabled:   true,
			CompressionThreshold: 1024,
			DegradedTTL:          5 * time.Minute,
			StorageMaxRetries:    3,
		},
		Breaker: BreakerConfig{
			Enabled:           true,
			FailureThreshold:  5,
			SuccessThreshold:  2,
			RecoveryTimeout:   30 * time.Second,
			RequestTimeout:    10 * time.Second,
			SlidingWindowSize: 10,
			Store: BreakerStoreConfig{
				Enabled:   true,
				KeyPrefix: "trazo:breaker:",
				TTL:       time.Hour,
			},
		},
		Retry: RetryConfig{
			Enabled:           true,
			MaxAttempts:       3,
			BaseDelay:         200 * time.Millisecond,
			MaxDelay:          5 * time.Second,
			Exponential:       true,
			Jitter:            true,
			NonRetryableKinds: []string{"circuit_open", "validation"},
		},
		Bulkhead: BulkheadConfig{
			Enabled:        true,
			MaxConcurrent:  100,
			MaxQueue:       50,
			AcquireTimeout: 100 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			PublishInterval: 10 * time.Second,
			Enabled:         true,
			DataDog: DataDogConfig{
				AgentHost:              "127.0.0.1",
				Prefix:                 "trazo.upstream",
				Port:                   8125,
				PublishIntervalSeconds: 30,
			},
		},
		Defaults: DefaultsConfig{
			Strategy: "dynamic",
			Level:    "memory-then-redis",
		},
		KeyValidation: KeyValidationConfig{
			MaxComponentLen: 512,
			Enabled:         true,
		},
		Dependencies: map[string]DependencyConfig{},
	}
}

// ForTesting returns a config sized for unit tests: a small local tier, the
// shared tier off, and protection timings in the low milliseconds so breaker
// and retry paths run in a test's lifetime.
func ForTesting() *Config {
	return &Config{
		Redis: RedisConfig{
			DefaultTTL:       time.Minute,
			DialTimeout:      time.Second,
			ReadTimeout:      time.Second,
			WriteTimeout:     time.Second,
			PoolTimeout:      time.Second,
			Address:          "localhost:6379",
			KeyPrefix:        "test:",
			PoolSize:         10,
			MinIdleConns:     1,
			MaxPendingWrites: 50,
		},
		Memory: MemoryConfig{
			DefaultTTL:      time.Minute,
			CleanupInterval: time.Second,
			MaxSizeMB:       16,
			Shards:          64,
			MaxEntrySize:    1 << 20,
			Enabled:         true,
		},
		Cache: CacheConfig{
			Strategies: StrategyTTLConfig{
				Static:      time.Minute,
				Dynamic:     30 * time.Second,
				Realtime:    10 * time.Second,
				Computation: 30 * time.Second,
			},
			Serializer:           "json",
			FreshnessFraction:    0.8,
			CompressionEnabled:   true,
			CompressionThreshold: 256,
			DegradedTTL:          5 * time.Second,
			StorageMaxRetries:    1,
		},
		Breaker: BreakerConfig{
			Enabled:           true,
			FailureThreshold:  3,
			SuccessThreshold:  1,
			RecoveryTimeout:   50 * time.Millisecond,
			RequestTimeout:    time.Second,
			SlidingWindowSize: 5,
			Store: BreakerStoreConfig{
				KeyPrefix: "test:breaker:",
				TTL:       time.Minute,
			},
		},
		Retry: RetryConfig{
			Enabled:           true,
			MaxAttempts:       3,
			BaseDelay:         5 * time.Millisecond,
			MaxDelay:          50 * time.Millisecond,
			Exponential:       true,
			NonRetryableKinds: []string{"circuit_open", "validation"},
		},
		Bulkhead: BulkheadConfig{
			MaxConcurrent:  4,
			MaxQueue:       2,
			AcquireTimeout: 20 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			PublishInterval: time.Second,
		},
		Defaults: DefaultsConfig{
			Strategy: "dynamic",
			Level:    "memory-only",
		},
		KeyValidation: KeyValidationConfig{
			MaxComponentLen: 512,
			Enabled:         true,
		},
		Dependencies: map[string]DependencyConfig{},
	}
}

// ForTestingWithRedis is ForTesting pointed at a live Redis, for the
// integration suites that run against a real instance.
func ForTestingWithRedis(addr string) *Config {
	cfg := ForTesting()
	cfg.Redis.Enabled = true
	cfg.Redis.Address = addr
	cfg.Defaults.Level = "memory-then-redis"
	cfg.Breaker.Store.Enabled = true
	return cfg
}
