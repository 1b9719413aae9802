package upstream

import (
	"github.com/oscarmunoz1/trazo-back-sub000/internal/cache"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

type (
	// Strategy selects the caching profile for a dataset.
	Strategy = types.Strategy
	// Quality tags where the payload of a resilient call came from.
	Quality = types.Quality
	// FallbackStrategy selects the substitute path after exhausted retries.
	FallbackStrategy = types.FallbackStrategy
	// CacheLevel specifies which cache tiers an operation touches.
	CacheLevel = types.CacheLevel
	// Operation is a unit of upstream work executed under the protection stack.
	Operation = types.Operation
	// DegradedPayload wraps a graceful-degradation substitute.
	DegradedPayload = types.DegradedPayload
	// CacheOptions contains options for cache operations.
	CacheOptions = types.CacheOptions
	// Serializer provides serialization and deserialization operations.
	Serializer = types.Serializer
	// MetricsRecorder provides operations for recording access metrics.
	MetricsRecorder = types.MetricsRecorder
	// Logger provides logging operations.
	Logger = types.Logger
	// Publisher ships metrics batches to an external sink.
	Publisher = types.Publisher
	// PublisherHealthMetrics is the batch a Publisher receives periodically.
	PublisherHealthMetrics = types.PublisherHealthMetrics

	// Cache is the two-tier cache manager behind the access layer.
	Cache = cache.Manager
	// Lookup is a cache read result: payload bytes plus freshness verdict.
	Lookup = cache.Lookup
)

const (
	// StrategyStatic is for reference data that changes rarely.
	StrategyStatic = types.StrategyStatic
	// StrategyDynamic is for data that changes within a day.
	StrategyDynamic = types.StrategyDynamic
	// StrategyRealtime is for short-lived data.
	StrategyRealtime = types.StrategyRealtime
	// StrategyComputation is for derived results from the computation service.
	StrategyComputation = types.StrategyComputation
)

const (
	// QualityLive means the upstream operation executed and succeeded.
	QualityLive = types.QualityLive
	// QualityCachedFresh means a cache entry inside the freshness window was used.
	QualityCachedFresh = types.QualityCachedFresh
	// QualityCachedStale means a cache entry past the freshness window was used.
	QualityCachedStale = types.QualityCachedStale
	// QualityFallbackDefault means a configured static default was substituted.
	QualityFallbackDefault = types.QualityFallbackDefault
	// QualityFallbackDegraded means a degraded or alternative substitute was used.
	QualityFallbackDegraded = types.QualityFallbackDegraded
)

const (
	// FallbackNone propagates the original error.
	FallbackNone = types.FallbackNone
	// FallbackCache serves the most recent cached payload regardless of freshness.
	FallbackCache = types.FallbackCache
	// FallbackDefault serves a configured static default.
	FallbackDefault = types.FallbackDefault
	// FallbackAlternative delegates to a registered alternate operation.
	FallbackAlternative = types.FallbackAlternative
	// FallbackGraceful serves a minimal degraded-mode payload.
	FallbackGraceful = types.FallbackGraceful
)

const (
	// LevelMemoryOnly uses only the in-memory cache tier.
	LevelMemoryOnly = types.LevelMemoryOnly
	// LevelRedisOnly uses only the Redis cache tier.
	LevelRedisOnly = types.LevelRedisOnly
	// LevelMemoryThenRedis checks memory first, then falls back to Redis.
	LevelMemoryThenRedis = types.LevelMemoryThenRedis
	// LevelAll uses all available cache tiers.
	LevelAll = types.LevelAll
)

// ParseStrategy converts a config string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	return types.ParseStrategy(s)
}

// ParseFallbackStrategy converts a config string into a FallbackStrategy.
func ParseFallbackStrategy(s string) (FallbackStrategy, error) {
	return types.ParseFallbackStrategy(s)
}

// DefaultOptions returns a default CacheOptions configuration.
func DefaultOptions() *CacheOptions {
	return types.DefaultOptions()
}
