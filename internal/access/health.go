package access

import (
	"context"
	"errors"
	"sort"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/metrics"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/resilience"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

// DependencyHealth reports the breaker view of one dependency. A dependency
// registered with its breaker disabled always reads as a healthy pass
// through.
func (f *Facade) DependencyHealth(name string) (types.DependencyHealth, error) {
	dep, err := f.dependency(name)
	if err != nil {
		return types.DependencyHealth{}, err
	}

	if dep.breaker == nil {
		return types.DependencyHealth{
			Dependency:  name,
			State:       "disabled",
			SuccessRate: 1,
		}, nil
	}
	return dep.breaker.Health(), nil
}

// OverallHealth grades the whole access layer from the error journal.
func (f *Facade) OverallHealth() types.OverallHealth {
	stats := f.orch.Stats()
	return types.OverallHealth{
		Status:              stats.Verdict,
		TotalRequests:       f.calls.Load(),
		TotalErrors:         stats.TotalErrors,
		RecoveryRatePercent: stats.RecoveryRatePercent,
		CriticalErrors:      stats.CriticalErrors,
		Timestamp:           f.now(),
	}
}

// ResetBreaker force-closes one dependency's breaker and clears its
// counters. Dependencies without a breaker are a no-op.
func (f *Facade) ResetBreaker(name string) error {
	dep, err := f.dependency(name)
	if err != nil {
		return err
	}
	if dep.breaker == nil {
		return nil
	}
	return f.registry.Reset(name)
}

// InvalidateCache removes cached entries after an out-of-band correction.
// An empty identifier clears the whole dataset; otherwise the identifier is
// cleared under every strategy key shape, since the caller cannot know which
// strategy wrote it. Returns how many entries were removed.
func (f *Facade) InvalidateCache(ctx context.Context, dataset, identifier string) (int, error) {
	if identifier == "" {
		return f.cache.Invalidate(ctx, dataset, "", types.StrategyDynamic)
	}

	removed := 0
	seen := make(map[string]bool)
	var errs []error
	for _, strategy := range []types.Strategy{
		types.StrategyStatic,
		types.StrategyDynamic,
		types.StrategyRealtime,
		types.StrategyComputation,
	} {
		tag := strategy.VersionTag()
		if seen[tag] {
			continue
		}
		seen[tag] = true

		n, err := f.cache.Invalidate(ctx, dataset, identifier, strategy)
		removed += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return removed, errors.Join(errs...)
}

// Health reports liveness of the cache tiers.
func (f *Facade) Health(ctx context.Context) (*types.HealthMetrics, error) {
	return f.cache.Health(ctx)
}

// Stats assembles a point-in-time snapshot of the whole layer: call and
// protection counters from the tracker, tier gauges from the cache manager,
// and bulkhead rejections summed across dependencies.
func (f *Facade) Stats() types.MetricsSnapshot {
	snap := f.tracker.Snapshot()

	cs := f.cache.Stats()
	snap.MemorySizeBytes = cs.MemorySizeBytes
	snap.MemoryEntries = int64(cs.MemoryEntries)
	snap.MemoryEvictions = cs.MemoryEvictions
	snap.MemoryMaxBytes = cs.MemoryMaxBytes
	if cs.MemoryMaxBytes > 0 {
		snap.MemoryUsageRatio = float64(cs.MemorySizeBytes) / float64(cs.MemoryMaxBytes)
	}
	snap.RedisConnected = cs.RedisConnected
	snap.RedisPendingWrites = cs.PendingWrites
	snap.RedisDroppedWrites = cs.DroppedWrites
	snap.StorageBreaker = cs.StorageBreaker

	var rejected int64
	f.depMu.RLock()
	for _, dep := range f.deps {
		rejected += dep.bulkhead.RejectedCount()
	}
	f.depMu.RUnlock()
	snap.BulkheadRejected = rejected

	return snap
}

// openDependencies lists dependencies whose breaker is currently open.
func (f *Facade) openDependencies() []string {
	var open []string
	for name, health := range f.registry.HealthAll() {
		if health.State == resilience.StateOpen.String() {
			open = append(open, name)
		}
	}
	sort.Strings(open)
	return open
}

func (f *Facade) healthBatch() *types.PublisherHealthMetrics {
	return metrics.HealthFromSnapshot(f.Stats(), f.openDependencies())
}
