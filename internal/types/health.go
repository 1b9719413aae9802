package types

import "time"

// HealthStatus is the verdict scale used both for single components and for
// the layer as a whole, ordered from best to worst.
type HealthStatus int

const (
	// HealthStatusHealthy indicates no recorded failures.
	HealthStatusHealthy HealthStatus = iota + 1
	// HealthStatusStable indicates failures occurred but nearly all were
	// recovered by retries or fallbacks.
	HealthStatusStable
	// HealthStatusDegraded indicates a meaningful share of failures went
	// unrecovered or a tier is down.
	HealthStatusDegraded
	// HealthStatusUnstable indicates most recoveries are failing.
	HealthStatusUnstable
	// HealthStatusCritical indicates at least one critical-severity failure
	// was observed.
	HealthStatusCritical
)

func (s HealthStatus) String() string {
	switch s {
	case HealthStatusHealthy:
		return "healthy"
	case HealthStatusStable:
		return "stable"
	case HealthStatusDegraded:
		return "degraded"
	case HealthStatusUnstable:
		return "unstable"
	case HealthStatusCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// DependencyHealth is the per-dependency view assembled from its breaker.
type DependencyHealth struct {
	Dependency          string
	State               string
	SuccessRate         float64
	RecentFailureRate   float64
	ConsecutiveFailures int
	TotalRequests       int64
	CircuitOpens        int64
	Timeouts            int64
	LastFailure         time.Time
}

// OverallHealth is the aggregate view assembled from the orchestrator stats.
type OverallHealth struct {
	Status              HealthStatus
	TotalRequests       int64
	TotalErrors         int64
	RecoveryRatePercent float64
	CriticalErrors      int64
	Timestamp           time.Time
}

// HealthMetrics pairs the two cache tiers' health under one verdict.
type HealthMetrics struct {
	Timestamp time.Time
	Redis     RedisHealthMetrics
	Memory    MemoryHealthMetrics
	Status    HealthStatus
}

// MemoryHealthMetrics describes the local tier.
type MemoryHealthMetrics struct {
	Status          HealthStatus
	Available       bool
	EntryCount      int
	SizeBytes       int64
	MaxSizeBytes    int64
	UsagePercentage float64
	HitCount        int64
	MissCount       int64
	HitRatio        float64
	EvictionCount   int64
}

// RedisHealthMetrics describes the shared tier, including the write-behind
// queue depth and the storage breaker guarding it.
type RedisHealthMetrics struct {
	Status        HealthStatus
	Available     bool
	Connected     bool
	BreakerState  string
	PendingWrites int
	DroppedWrites int64
	HitCount      int64
	MissCount     int64
	HitRatio      float64
}

// MetricsSnapshot is a point-in-time view of the whole access layer: cache
// traffic, latency percentiles, tier gauges, and the protection-stack
// counters.
type MetricsSnapshot struct {
	Timestamp time.Time

	MemoryHits   int64
	MemoryMisses int64
	RedisHits    int64
	RedisMisses  int64

	GetCount     int64
	SetCount     int64
	DeleteCount  int64
	ErrorCount   int64
	BytesWritten int64

	// Latencies in milliseconds.
	AvgLatencyMs float64
	P50LatencyMs float64
	P95LatencyMs float64
	P99LatencyMs float64

	MemorySizeBytes  int64
	MemoryEntries    int64
	MemoryEvictions  int64
	MemoryMaxBytes   int64
	MemoryUsageRatio float64

	RedisConnected     bool
	RedisPendingWrites int
	RedisDroppedWrites int64
	StorageBreaker     string

	RetryCount       int64
	FallbackCount    int64
	BreakerOpens     int64
	BulkheadRejected int64
	CallsByQuality   map[string]int64
}

func ratio(hits, misses int64) float64 {
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// MemoryHitRatio is the local tier's hit ratio.
func (s *MetricsSnapshot) MemoryHitRatio() float64 {
	return ratio(s.MemoryHits, s.MemoryMisses)
}

// RedisHitRatio is the shared tier's hit ratio.
func (s *MetricsSnapshot) RedisHitRatio() float64 {
	return ratio(s.RedisHits, s.RedisMisses)
}

// TotalHitRatio is the hit ratio across both tiers.
func (s *MetricsSnapshot) TotalHitRatio() float64 {
	return ratio(s.MemoryHits+s.RedisHits, s.MemoryMisses+s.RedisMisses)
}
