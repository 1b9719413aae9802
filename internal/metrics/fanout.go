package metrics

import (
	"time"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

// Fanout forwards every recorded metric to each of its targets. It lets a
// caller-provided recorder observe the same stream the internal tracker
// aggregates.
type Fanout struct {
	targets []types.MetricsRecorder
}

// NewFanout creates a recorder that forwards to every non-nil target.
func NewFanout(targets ...types.MetricsRecorder) *Fanout {
	f := &Fanout{targets: make([]types.MetricsRecorder, 0, len(targets))}
	for _, t := range targets {
		if t != nil {
			f.targets = append(f.targets, t)
		}
	}
	return f
}

func (f *Fanout) RecordHit(layer string, key string, latency time.Duration) {
	for _, t := range f.targets {
		t.RecordHit(layer, key, latency)
	}
}

func (f *Fanout) RecordMiss(layer string, key string, latency time.Duration) {
	for _, t := range f.targets {
		t.RecordMiss(layer, key, latency)
	}
}

func (f *Fanout) RecordSet(layer string, key string, size int, latency time.Duration) {
	for _, t := range f.targets {
		t.RecordSet(layer, key, size, latency)
	}
}

func (f *Fanout) RecordDelete(layer string, key string, latency time.Duration) {
	for _, t := range f.targets {
		t.RecordDelete(layer, key, latency)
	}
}

func (f *Fanout) RecordError(layer string, operation string, err error) {
	for _, t := range f.targets {
		t.RecordError(layer, operation, err)
	}
}

func (f *Fanout) RecordBreakerTransition(dependency, from, to string) {
	for _, t := range f.targets {
		t.RecordBreakerTransition(dependency, from, to)
	}
}

func (f *Fanout) RecordRetry(dependency string, attempt int) {
	for _, t := range f.targets {
		t.RecordRetry(dependency, attempt)
	}
}

func (f *Fanout) RecordFallback(dependency, strategy string) {
	for _, t := range f.targets {
		t.RecordFallback(dependency, strategy)
	}
}

func (f *Fanout) RecordCall(dependency, quality string, latency time.Duration) {
	for _, t := range f.targets {
		t.RecordCall(dependency, quality, latency)
	}
}

var _ types.MetricsRecorder = (*Fanout)(nil)
