package upstream

import (
	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

type (
	// HealthStatus is the verdict scale, ordered from best to worst.
	HealthStatus = types.HealthStatus

	// DependencyHealth is the per-dependency view assembled from its breaker.
	DependencyHealth = types.DependencyHealth

	// OverallHealth is the aggregate view across all dependencies.
	OverallHealth = types.OverallHealth

	// HealthMetrics contains cache tier health information.
	HealthMetrics = types.HealthMetrics

	// MemoryHealthMetrics contains memory tier health details.
	MemoryHealthMetrics = types.MemoryHealthMetrics

	// RedisHealthMetrics contains Redis tier health details.
	RedisHealthMetrics = types.RedisHealthMetrics

	// MetricsSnapshot contains a point-in-time view of access-layer metrics.
	MetricsSnapshot = types.MetricsSnapshot
)

const (
	// HealthStatusHealthy indicates no recorded failures.
	HealthStatusHealthy = types.HealthStatusHealthy
	// HealthStatusStable indicates failures occurred but nearly all recovered.
	HealthStatusStable = types.HealthStatusStable
	// HealthStatusDegraded indicates a meaningful share of unrecovered failures.
	HealthStatusDegraded = types.HealthStatusDegraded
	// HealthStatusUnstable indicates most recoveries are failing.
	HealthStatusUnstable = types.HealthStatusUnstable
	// HealthStatusCritical indicates a critical-severity failure was observed.
	HealthStatusCritical = types.HealthStatusCritical
)
