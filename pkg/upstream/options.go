package upstream

import (
	"time"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

type (
	// Option customizes one cache operation.
	Option = types.Option
	// ManagerOptions holds construction-time dependencies.
	ManagerOptions = types.ManagerOptions
)

// ApplyOptions applies functional options to create CacheOptions.
func ApplyOptions(opts ...Option) *CacheOptions {
	return types.ApplyOptions(opts...)
}

// WithTTL overrides the strategy TTL for one write.
func WithTTL(ttl time.Duration) Option {
	return types.WithTTL(ttl)
}

// WithLevel selects which cache tiers one operation touches.
func WithLevel(level CacheLevel) Option {
	return types.WithLevel(level)
}

// WithFireAndForget queues the redis write instead of waiting for it.
func WithFireAndForget() Option {
	return types.WithFireAndForget()
}

// WithSkipLocalCache bypasses the memory tier for one operation.
func WithSkipLocalCache() Option {
	return types.WithSkipLocalCache()
}

// WithMemoryOnly restricts one operation to the memory tier.
func WithMemoryOnly() Option {
	return types.WithLevel(LevelMemoryOnly)
}

// WithRedisOnly restricts one operation to the Redis tier.
func WithRedisOnly() Option {
	return types.WithLevel(LevelRedisOnly)
}

// ManagerOption customizes access layer construction.
type ManagerOption func(*ManagerOptions)

// WithLogger sets the structured logger.
func WithLogger(logger Logger) ManagerOption {
	return func(o *ManagerOptions) {
		o.Logger = logger
	}
}

// WithMetrics registers an additional metrics recorder. The internal tracker
// keeps running; the recorder observes the same stream.
func WithMetrics(metrics MetricsRecorder) ManagerOption {
	return func(o *ManagerOptions) {
		o.Metrics = metrics
	}
}

// WithPublisher replaces the config-selected metrics publisher. The publisher
// receives periodic health batches while metrics publishing is enabled.
func WithPublisher(publisher Publisher) ManagerOption {
	return func(o *ManagerOptions) {
		o.Publisher = publisher
	}
}

// WithSerializer replaces the payload serializer.
func WithSerializer(serializer Serializer) ManagerOption {
	return func(o *ManagerOptions) {
		o.Serializer = serializer
	}
}

// WithRedisAddress overrides the Redis address from config.
func WithRedisAddress(addr string) ManagerOption {
	return func(o *ManagerOptions) {
		o.RedisAddress = addr
	}
}

// WithRedisPassword overrides the Redis password from config.
func WithRedisPassword(password string) ManagerOption {
	return func(o *ManagerOptions) {
		o.RedisPassword = types.NewSecretString(password)
	}
}

// WithRedisDB overrides the Redis database from config.
func WithRedisDB(db int) ManagerOption {
	return func(o *ManagerOptions) {
		o.RedisDB = db
	}
}

// WithoutRedis disables the Redis tier entirely.
func WithoutRedis() ManagerOption {
	return func(o *ManagerOptions) {
		o.DisableRedis = true
	}
}

// WithoutResilience disables the storage breaker and retry wrapping around
// the Redis tier.
func WithoutResilience() ManagerOption {
	return func(o *ManagerOptions) {
		o.DisableResilience = true
	}
}

// WithClock overrides the clock used for freshness and recovery decisions.
// Tests use this to age entries without sleeping.
func WithClock(now func() time.Time) ManagerOption {
	return func(o *ManagerOptions) {
		o.Now = now
	}
}
