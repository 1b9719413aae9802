// Package metrics provides access-layer metrics collection and publishing.
package metrics

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

const latencyWindow = 10000

// Tracker accumulates access-layer counters in memory. Everything hot is an
// atomic; the quality map and the latency ring take a mutex because calls
// touch them at most once per request.
type Tracker struct {
	memoryHits   atomic.Int64
	memoryMisses atomic.Int64
	redisHits    atomic.Int64
	redisMisses  atomic.Int64

	getCount     atomic.Int64
	setCount     atomic.Int64
	deleteCount  atomic.Int64
	errorCount   atomic.Int64
	bytesWritten atomic.Int64

	retryCount    atomic.Int64
	fallbackCount atomic.Int64
	transitions   atomic.Int64
	breakerOpens  atomic.Int64

	callsMu        sync.Mutex
	callsByQuality map[string]int64

	latencies *latencyRing
}

func NewTracker() *Tracker {
	return &Tracker{
		callsByQuality: make(map[string]int64),
		latencies:      newLatencyRing(latencyWindow),
	}
}

func (t *Tracker) RecordHit(layer string, key string, latency time.Duration) {
	switch layer {
	case "memory":
		t.memoryHits.Add(1)
	case "redis":
		t.redisHits.Add(1)
	}
	t.getCount.Add(1)
	t.latencies.observe(latency)
}

func (t *Tracker) RecordMiss(layer string, key string, latency time.Duration) {
	switch layer {
	case "memory":
		t.memoryMisses.Add(1)
	case "redis":
		t.redisMisses.Add(1)
	}
	t.getCount.Add(1)
	t.latencies.observe(latency)
}

func (t *Tracker) RecordSet(layer string, key string, size int, latency time.Duration) {
	t.setCount.Add(1)
	t.bytesWritten.Add(int64(size))
	t.latencies.observe(latency)
}

func (t *Tracker) RecordDelete(layer string, key string, latency time.Duration) {
	t.deleteCount.Add(1)
	t.latencies.observe(latency)
}

func (t *Tracker) RecordError(layer string, operation string, err error) {
	t.errorCount.Add(1)
}

// RecordBreakerTransition records a circuit breaker state change for a
// dependency. Transitions into the open state are counted separately.
func (t *Tracker) RecordBreakerTransition(dependency, from, to string) {
	t.transitions.Add(1)
	if to == "open" {
		t.breakerOpens.Add(1)
	}
}

// RecordRetry records one scheduled retry for a dependency.
func (t *Tracker) RecordRetry(dependency string, attempt int) {
	t.retryCount.Add(1)
}

// RecordFallback records one engaged fallback for a dependency.
func (t *Tracker) RecordFallback(dependency, strategy string) {
	t.fallbackCount.Add(1)
}

// RecordCall records one completed resilient call and the quality of the
// answer it produced.
func (t *Tracker) RecordCall(dependency, quality string, latency time.Duration) {
	t.callsMu.Lock()
	t.callsByQuality[quality]++
	t.callsMu.Unlock()
	t.latencies.observe(latency)
}

// Snapshot assembles the current counters plus latency percentiles over the
// ring window.
func (t *Tracker) Snapshot() types.MetricsSnapshot {
	t.callsMu.Lock()
	calls := make(map[string]int64, len(t.callsByQuality))
	for quality, n := range t.callsByQuality {
		calls[quality] = n
	}
	t.callsMu.Unlock()

	snap := types.MetricsSnapshot{
		Timestamp:      time.Now(),
		MemoryHits:     t.memoryHits.Load(),
		MemoryMisses:   t.memoryMisses.Load(),
		RedisHits:      t.redisHits.Load(),
		RedisMisses:    t.redisMisses.Load(),
		GetCount:       t.getCount.Load(),
		SetCount:       t.setCount.Load(),
		DeleteCount:    t.deleteCount.Load(),
		ErrorCount:     t.errorCount.Load(),
		BytesWritten:   t.bytesWritten.Load(),
		RetryCount:     t.retryCount.Load(),
		FallbackCount:  t.fallbackCount.Load(),
		BreakerOpens:   t.breakerOpens.Load(),
		CallsByQuality: calls,
	}

	if samples := t.latencies.drain(); len(samples) > 0 {
		avg, p50, p95, p99 := latencyStats(samples)
		snap.AvgLatencyMs = float64(avg.Milliseconds())
		snap.P50LatencyMs = float64(p50.Milliseconds())
		snap.P95LatencyMs = float64(p95.Milliseconds())
		snap.P99LatencyMs = float64(p99.Milliseconds())
	}

	return snap
}

// Reset zeroes every counter and empties the latency window.
func (t *Tracker) Reset() {
	t.memoryHits.Store(0)
	t.memoryMisses.Store(0)
	t.redisHits.Store(0)
	t.redisMisses.Store(0)
	t.getCount.Store(0)
	t.setCount.Store(0)
	t.deleteCount.Store(0)
	t.errorCount.Store(0)
	t.bytesWritten.Store(0)
	t.retryCount.Store(0)
	t.fallbackCount.Store(0)
	t.transitions.Store(0)
	t.breakerOpens.Store(0)

	t.callsMu.Lock()
	t.callsByQuality = make(map[string]int64)
	t.callsMu.Unlock()

	t.latencies.reset()
}

// latencyRing is a fixed-size overwrite-oldest sample window. Observations
// are O(1) and allocation free.
type latencyRing struct {
	mu   sync.Mutex
	buf  []time.Duration
	next int
	n    int
}

func newLatencyRing(size int) *latencyRing {
	return &latencyRing{buf: make([]time.Duration, size)}
}

func (r *latencyRing) observe(d time.Duration) {
	r.mu.Lock()
	r.buf[r.next] = d
	r.next = (r.next + 1) % len(r.buf)
	if r.n < len(r.buf) {
		r.n++
	}
	r.mu.Unlock()
}

// drain copies out the window's samples, oldest first.
func (r *latencyRing) drain() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]time.Duration, r.n)
	if r.n == len(r.buf) {
		k := copy(out, r.buf[r.next:])
		copy(out[k:], r.buf[:r.next])
	} else {
		copy(out, r.buf[:r.n])
	}
	return out
}

func (r *latencyRing) reset() {
	r.mu.Lock()
	r.next, r.n = 0, 0
	r.mu.Unlock()
}

// latencyStats sorts the samples once and reads the mean and the nearest-rank
// percentiles off the sorted slice. The caller's slice is reordered.
func latencyStats(samples []time.Duration) (avg, p50, p95, p99 time.Duration) {
	if len(samples) == 0 {
		return
	}
	var total time.Duration
	for _, d := range samples {
		total += d
	}
	slices.Sort(samples)
	rank := func(p int) time.Duration {
		return samples[(len(samples)-1)*p/100]
	}
	return total / time.Duration(len(samples)), rank(50), rank(95), rank(99)
}

var _ types.MetricsRecorder = (*Tracker)(nil)
