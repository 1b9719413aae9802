package metrics

import (
	"time"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

// NoOpTracker discards every measurement. It backs disabled metrics and
// keeps test wiring simple.
type NoOpTracker struct{}

func NewNoOpTracker() *NoOpTracker { return &NoOpTracker{} }

func (t *NoOpTracker) RecordHit(layer string, key string, latency time.Duration) {}

func (t *NoOpTracker) RecordMiss(layer string, key string, latency time.Duration) {}

func (t *NoOpTracker) RecordSet(layer string, key string, size int, latency time.Duration) {}

func (t *NoOpTracker) RecordDelete(layer string, key string, latency time.Duration) {}

func (t *NoOpTracker) RecordError(layer string, operation string, err error) {}

func (t *NoOpTracker) RecordBreakerTransition(dependency, from, to string) {}

func (t *NoOpTracker) RecordRetry(dependency string, attempt int) {}

func (t *NoOpTracker) RecordFallback(dependency, strategy string) {}

func (t *NoOpTracker) RecordCall(dependency, quality string, latency time.Duration) {}

func (t *NoOpTracker) Snapshot() types.MetricsSnapshot { return types.MetricsSnapshot{} }

func (t *NoOpTracker) Reset() {}

// NoOpPublisher swallows metrics when publishing is turned off.
type NoOpPublisher struct{}

func NewNoOpPublisher() *NoOpPublisher { return &NoOpPublisher{} }

func (p *NoOpPublisher) Gauge(name string, value float64, tags ...string) {}

func (p *NoOpPublisher) Incr(name string, tags ...string) {}

func (p *NoOpPublisher) Count(name string, value int64, tags ...string) {}

func (p *NoOpPublisher) Histogram(name string, value float64, tags ...string) {}

func (p *NoOpPublisher) Timing(name string, duration time.Duration, tags ...string) {}

func (p *NoOpPublisher) Event(title, text, alertType string, tags ...string) {}

func (p *NoOpPublisher) PublishHealthMetrics(metrics *types.PublisherHealthMetrics) {}

func (p *NoOpPublisher) Close() error { return nil }

var (
	_ types.MetricsRecorder = (*NoOpTracker)(nil)
	_ types.Publisher       = (*NoOpPublisher)(nil)
)
