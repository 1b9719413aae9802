package types

import (
	"context"
	"time"
)

// Tier is the behavior every cache tier shares: identity, point reads and
// writes, bulk invalidation, shutdown.
type Tier interface {
	Name() string
	IsAvailable() bool
	Get(ctx context.Context, key string) ([]byte, error)
	Contains(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, value []byte, opts *CacheOptions) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	ClearByPattern(ctx context.Context, pattern string) (int, error)
	Close() error
}

// MemoryCacheLayer is the local tier: Tier plus its sizing and hit gauges.
type MemoryCacheLayer interface {
	Tier
	EntryCount() int
	Size() int64
	MaxSize() int64
	UsagePercentage() float64
	HitRatio() float64
	Stats() MemoryCacheStats
}

// RedisCacheLayer is the shared tier: Tier plus batch operations and the
// write-behind queue gauges.
type RedisCacheLayer interface {
	Tier
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)
	SetMany(ctx context.Context, items map[string][]byte, opts *CacheOptions) error
	PendingWrites() int
	DroppedWrites() int64
	Hits() int64
	Misses() int64
}

// Serializer converts payloads to and from their stored byte form.
type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, dest any) error
}

// MetricsRecorder receives every observable event in the access layer. The
// zero-cost implementation is metrics.NewNoOpTracker.
type MetricsRecorder interface {
	RecordHit(layer string, key string, latency time.Duration)
	RecordMiss(layer string, key string, latency time.Duration)
	RecordSet(layer string, key string, size int, latency time.Duration)
	RecordDelete(layer string, key string, latency time.Duration)
	RecordError(layer string, operation string, err error)
	RecordBreakerTransition(dependency string, from, to string)
	RecordRetry(dependency string, attempt int)
	RecordFallback(dependency string, strategy string)
	RecordCall(dependency string, quality string, latency time.Duration)
}

// Publisher ships metrics to an external sink such as a StatsD agent.
type Publisher interface {
	Gauge(name string, value float64, tags ...string)
	Incr(name string, tags ...string)
	Count(name string, value int64, tags ...string)
	Histogram(name string, value float64, tags ...string)
	Timing(name string, duration time.Duration, tags ...string)
	Event(title, text string, alertType string, tags ...string)
	PublishHealthMetrics(metrics *PublisherHealthMetrics)
	Close() error
}

// PublisherHealthMetrics is the periodic health batch pushed by the
// background publisher.
type PublisherHealthMetrics struct {
	MemoryUsedBytes       int64
	MemoryLimitBytes      int64
	MemoryUsagePercentage float64
	TotalEntries          int64
	HitRatio              float64
	AverageLatencyMs      float64
	IsConnected           bool

	RetryCount       int64
	FallbackCount    int64
	BreakerOpens     int64
	OpenDependencies []string
	CallsByQuality   map[string]int64
}

// Logger is the minimal logging surface callers can plug in. The facade
// adapts it onto slog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
