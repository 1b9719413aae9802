// Package types provides shared types for the trazo upstream access library.
// This package breaks import cycles between pkg/upstream and the internal packages.
package types

import (
	"context"
	"fmt"
	"time"
)

// Strategy selects the caching profile for a dataset. Each strategy maps to a
// default TTL and controls compression and version tagging of stored entries.
type Strategy int

const (
	// StrategyStatic is for reference data that changes rarely (emission
	// factors, regional lookup tables).
	StrategyStatic Strategy = iota + 1
	// StrategyDynamic is for data that changes within a day (market prices,
	// provider catalogs).
	StrategyDynamic
	// StrategyRealtime is for short-lived data (weather, sensor-adjacent
	// feeds). Realtime entries are never compressed.
	StrategyRealtime
	// StrategyComputation is for derived results from the computation service.
	StrategyComputation
)

func (s Strategy) String() string {
	switch s {
	case StrategyStatic:
		return "static"
	case StrategyDynamic:
		return "dynamic"
	case StrategyRealtime:
		return "realtime"
	case StrategyComputation:
		return "computation"
	default:
		return "unknown"
	}
}

// ParseStrategy converts a config string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "static":
		return StrategyStatic, nil
	case "dynamic":
		return StrategyDynamic, nil
	case "realtime":
		return StrategyRealtime, nil
	case "computation":
		return StrategyComputation, nil
	default:
		return 0, fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, s)
	}
}

func (s Strategy) Valid() bool {
	return s >= StrategyStatic && s <= StrategyComputation
}

// VersionTag returns the revision tag mixed into cache keys for strategies
// whose stored shape evolves over time. Bumping a tag orphans old entries
// instead of decoding them wrongly. Strategies with a stable shape return "".
func (s Strategy) VersionTag() string {
	switch s {
	case StrategyStatic:
		return "sv2"
	case StrategyComputation:
		return "cv3"
	default:
		return ""
	}
}

// Compressible reports whether entries under this strategy may be compressed.
// Realtime payloads stay raw so hot reads skip the inflate step.
func (s Strategy) Compressible() bool {
	return s != StrategyRealtime
}

// Quality tags where the payload of a resilient call came from.
type Quality int

const (
	// QualityLive means the upstream operation executed and succeeded.
	QualityLive Quality = iota + 1
	// QualityCachedFresh means a cache entry inside the freshness window was used.
	QualityCachedFresh
	// QualityCachedStale means a cache entry past the freshness window but
	// inside its TTL was used.
	QualityCachedStale
	// QualityFallbackDefault means a configured static default was substituted.
	QualityFallbackDefault
	// QualityFallbackDegraded means a degraded or alternative substitute was used.
	QualityFallbackDegraded
)

func (q Quality) String() string {
	switch q {
	case QualityLive:
		return "live"
	case QualityCachedFresh:
		return "cached_fresh"
	case QualityCachedStale:
		return "cached_stale"
	case QualityFallbackDefault:
		return "fallback_default"
	case QualityFallbackDegraded:
		return "fallback_degraded"
	default:
		return "unknown"
	}
}

// FromCache reports whether the payload was served from the cache tiers.
func (q Quality) FromCache() bool {
	return q == QualityCachedFresh || q == QualityCachedStale
}

// IsFallback reports whether the payload is substitute data rather than a
// live or cached upstream response.
func (q Quality) IsFallback() bool {
	return q == QualityFallbackDefault || q == QualityFallbackDegraded
}

// Severity classifies how alarming an exhausted failure is. It drives log
// level and stats buckets only, never retry behavior.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ErrorKind is the coarse classification used to decide retryability and to
// bucket failures in stats. Kinds are strings so config files can narrow the
// retryable set without an enum mapping layer.
type ErrorKind string

const (
	KindCircuitOpen ErrorKind = "circuit_open"
	KindTimeout     ErrorKind = "timeout"
	KindConnection  ErrorKind = "connection"
	KindRateLimit   ErrorKind = "rate_limit"
	KindUnavailable ErrorKind = "unavailable"
	KindValidation  ErrorKind = "validation"
	KindNotFound    ErrorKind = "not_found"
	KindCorruption  ErrorKind = "data_corruption"
	KindPermission  ErrorKind = "permission"
	KindPanic       ErrorKind = "panic"
	KindUnknown     ErrorKind = "unknown"
)

// FallbackStrategy selects the substitute path used after retries are
// exhausted.
type FallbackStrategy int

const (
	// FallbackNone propagates the original error.
	FallbackNone FallbackStrategy = iota
	// FallbackCache serves the most recent cached payload, regardless of
	// freshness, or the configured default when the cache is empty.
	FallbackCache
	// FallbackDefault serves a configured static default.
	FallbackDefault
	// FallbackAlternative delegates to a named alternate operation.
	FallbackAlternative
	// FallbackGraceful serves a minimal degraded-mode payload.
	FallbackGraceful
)

func (f FallbackStrategy) String() string {
	switch f {
	case FallbackNone:
		return "none"
	case FallbackCache:
		return "cache"
	case FallbackDefault:
		return "default"
	case FallbackAlternative:
		return "alternative"
	case FallbackGraceful:
		return "graceful_degradation"
	default:
		return "unknown"
	}
}

// ParseFallbackStrategy converts a config string into a FallbackStrategy.
// The empty string means no fallback.
func ParseFallbackStrategy(s string) (FallbackStrategy, error) {
	switch s {
	case "", "none":
		return FallbackNone, nil
	case "cache":
		return FallbackCache, nil
	case "default":
		return FallbackDefault, nil
	case "alternative":
		return FallbackAlternative, nil
	case "graceful_degradation":
		return FallbackGraceful, nil
	default:
		return 0, fmt.Errorf("%w: unknown fallback strategy %q", ErrInvalidConfig, s)
	}
}

// KnownErrorKind reports whether s names one of the classification kinds.
func KnownErrorKind(s string) bool {
	switch ErrorKind(s) {
	case KindCircuitOpen, KindTimeout, KindConnection, KindRateLimit,
		KindUnavailable, KindValidation, KindNotFound, KindCorruption,
		KindPermission, KindPanic, KindUnknown:
		return true
	default:
		return false
	}
}

// Operation is a unit of upstream work executed under the protection stack.
type Operation func(ctx context.Context) (any, error)

// FallbackFunc produces a substitute value after the primary path failed.
// cause is the error that triggered the substitution.
type FallbackFunc func(ctx context.Context, cause error) (any, error)

// DegradedPayload wraps a graceful-degradation substitute so consumers can
// always tell it apart from live data.
type DegradedPayload struct {
	Value        any       `json:"value"`
	DegradedMode bool      `json:"degradedMode"`
	Timestamp    time.Time `json:"timestamp"`
}

type CacheLevel int

const (
	LevelMemoryOnly CacheLevel = iota + 1
	LevelRedisOnly
	LevelMemoryThenRedis
	LevelAll
)

func (l CacheLevel) String() string {
	switch l {
	case LevelMemoryOnly:
		return "memory-only"
	case LevelRedisOnly:
		return "redis-only"
	case LevelMemoryThenRedis:
		return "memory-then-redis"
	case LevelAll:
		return "all"
	default:
		return "unknown"
	}
}

func (l CacheLevel) IncludesMemory() bool {
	return l == LevelMemoryOnly || l == LevelMemoryThenRedis || l == LevelAll
}

func (l CacheLevel) IncludesRedis() bool {
	return l == LevelRedisOnly || l == LevelMemoryThenRedis || l == LevelAll
}

// CacheOptions carries per-write settings. A zero TTL means "use the TTL of
// the entry's strategy".
type CacheOptions struct {
	TTL            time.Duration
	Level          CacheLevel
	FireAndForget  bool
	SkipLocalCache bool
}

func DefaultOptions() *CacheOptions {
	return &CacheOptions{}
}

type MemoryCacheStats struct {
	Hits      int64
	Misses    int64
	Sets      int64
	Deletes   int64
	Evictions int64
}
