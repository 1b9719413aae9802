package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

// BackgroundPublisher pushes health batches on a fixed cadence until its
// context is canceled, then pushes one last batch on the way out.
type BackgroundPublisher struct {
	publisher types.Publisher
	logger    *slog.Logger
	health    func() *types.PublisherHealthMetrics
	interval  time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBackgroundPublisher wires a publisher to a health callback. The
// callback runs once per interval after Start.
func NewBackgroundPublisher(
	publisher types.Publisher,
	interval time.Duration,
	healthFn func() *types.PublisherHealthMetrics,
	logger *slog.Logger,
) *BackgroundPublisher {
	if logger == nil {
		logger = slog.Default()
	}

	return &BackgroundPublisher{
		publisher: publisher,
		interval:  interval,
		health:    healthFn,
		logger:    logger.With("component", "health-publisher"),
	}
}

// Start launches the publishing loop under ctx.
func (b *BackgroundPublisher) Start(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(ctx)
	b.wg.Add(1)
	go b.loop(ctx)
	b.logger.Info("Publishing health batches", "interval", b.interval)
}

// Stop ends the loop and waits for its final publish.
func (b *BackgroundPublisher) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
	b.logger.Info("Health publishing stopped")
}

func (b *BackgroundPublisher) loop(ctx context.Context) {
	defer b.wg.Done()

	tick := time.NewTicker(b.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			b.flush()
			return
		case <-tick.C:
			b.flush()
		}
	}
}

// flush publishes one batch. A panicking health callback is contained so it
// cannot take the loop down.
func (b *BackgroundPublisher) flush() {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic while publishing health metrics", "panic", r)
		}
	}()

	if b.health == nil {
		return
	}
	if batch := b.health(); batch != nil {
		b.publisher.PublishHealthMetrics(batch)
	}
}

// PublishNow pushes a batch outside the cadence.
func (b *BackgroundPublisher) PublishNow() {
	b.flush()
}

// HealthFromSnapshot converts a metrics snapshot into the batch shape the
// publishers consume.
func HealthFromSnapshot(s types.MetricsSnapshot, openDependencies []string) *types.PublisherHealthMetrics {
	return &types.PublisherHealthMetrics{
		MemoryUsedBytes:       s.MemorySizeBytes,
		MemoryLimitBytes:      s.MemoryMaxBytes,
		MemoryUsagePercentage: s.MemoryUsageRatio * 100,
		TotalEntries:          s.MemoryEntries,
		HitRatio:              s.TotalHitRatio(),
		AverageLatencyMs:      s.AvgLatencyMs,
		IsConnected:           s.RedisConnected,
		RetryCount:            s.RetryCount,
		FallbackCount:         s.FallbackCount,
		BreakerOpens:          s.BreakerOpens,
		OpenDependencies:      openDependencies,
		CallsByQuality:        s.CallsByQuality,
	}
}
