package types

import "time"

// Option adjusts one cache operation.
type Option func(*CacheOptions)

// ApplyOptions folds a set of options over the operation defaults.
func ApplyOptions(opts ...Option) *CacheOptions {
	out := DefaultOptions()
	for _, apply := range opts {
		apply(out)
	}
	return out
}

// WithTTL overrides the strategy TTL for one write.
func WithTTL(ttl time.Duration) Option {
	return func(o *CacheOptions) { o.TTL = ttl }
}

// WithLevel selects which tiers one operation touches.
func WithLevel(level CacheLevel) Option {
	return func(o *CacheOptions) { o.Level = level }
}

// WithFireAndForget queues the redis write instead of waiting for it.
func WithFireAndForget() Option {
	return func(o *CacheOptions) { o.FireAndForget = true }
}

// WithSkipLocalCache bypasses the memory tier for one operation.
func WithSkipLocalCache() Option {
	return func(o *CacheOptions) { o.SkipLocalCache = true }
}

// ManagerOptions holds construction-time dependencies for the cache manager.
type ManagerOptions struct {
	// Observability hooks. A nil Logger falls back to slog.Default; a nil
	// Metrics recorder to the internal tracker. Publisher, when set,
	// receives the periodic health batches in place of the config-selected
	// DataDog sink.
	Logger    Logger
	Metrics   MetricsRecorder
	Publisher Publisher

	// Serializer encodes entry envelopes. Defaults to JSON.
	Serializer Serializer

	// Connection overrides applied on top of the loaded config.
	RedisAddress  string
	RedisPassword SecretString
	RedisDB       int

	// DisableRedis turns the shared tier off entirely. DisableResilience
	// removes the storage breaker and retry wrapping around it.
	DisableRedis      bool
	DisableResilience bool

	// Now overrides the clock used for freshness decisions. Tests use this
	// to age entries without sleeping.
	Now func() time.Time
}
