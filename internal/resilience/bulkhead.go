package resilience

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/config"
)

// Bulkhead caps in-flight calls to one dependency so a slow provider cannot
// absorb every goroutine in the process. The slot channel is sized
// limit+queue; once it is full, further callers wait up to the configured
// patience and queue admission is bounded by the waiting counter.
type Bulkhead struct {
	name     string
	limit    int
	queue    int
	patience time.Duration
	slots    chan struct{}

	active   atomic.Int32
	waiting  atomic.Int32
	rejected atomic.Int64
	executed atomic.Int64
}

// NewBulkhead builds a bulkhead for the named dependency, filling in
// defaults for zero config values.
func NewBulkhead(name string, cfg config.BulkheadConfig) *Bulkhead {
	limit, queue, patience := cfg.MaxConcurrent, cfg.MaxQueue, cfg.AcquireTimeout
	if limit <= 0 {
		limit = 100
	}
	if queue <= 0 {
		queue = 50
	}
	if patience <= 0 {
		patience = 100 * time.Millisecond
	}

	return &Bulkhead{
		name:     name,
		limit:    limit,
		queue:    queue,
		patience: patience,
		slots:    make(chan struct{}, limit+queue),
	}
}

func (b *Bulkhead) Name() string { return b.name }

// ExecuteCtx runs fn inside the bulkhead.
func (b *Bulkhead) ExecuteCtx(ctx context.Context, fn func(context.Context) error) error {
	_, err := b.ExecuteWithResult(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// ExecuteWithResult runs fn inside the bulkhead and hands back its value.
func (b *Bulkhead) ExecuteWithResult(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	if err := b.admit(ctx); err != nil {
		return nil, err
	}
	defer func() { <-b.slots }()

	b.active.Add(1)
	defer b.active.Add(-1)

	value, err := fn(ctx)
	b.executed.Add(1)
	return value, err
}

// admit takes a slot, waiting briefly when the bulkhead is saturated.
func (b *Bulkhead) admit(ctx context.Context) error {
	select {
	case b.slots <- struct{}{}:
		return nil
	default:
	}

	if int(b.waiting.Load()) >= b.queue {
		b.rejected.Add(1)
		return ErrBulkheadFull
	}
	b.waiting.Add(1)
	defer b.waiting.Add(-1)

	wait := time.NewTimer(b.patience)
	defer wait.Stop()

	select {
	case b.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		b.rejected.Add(1)
		return ctx.Err()
	case <-wait.C:
		b.rejected.Add(1)
		return ErrBulkheadTimeout
	}
}

func (b *Bulkhead) ActiveCount() int     { return int(b.active.Load()) }
func (b *Bulkhead) QueuedCount() int     { return int(b.waiting.Load()) }
func (b *Bulkhead) RejectedCount() int64 { return b.rejected.Load() }
func (b *Bulkhead) TotalExecuted() int64 { return b.executed.Load() }

func (b *Bulkhead) AvailableSlots() int {
	return cap(b.slots) - len(b.slots)
}

// Stats snapshots the bulkhead's counters.
func (b *Bulkhead) Stats() BulkheadStats {
	return BulkheadStats{
		Name:          b.name,
		MaxConcurrent: b.limit,
		MaxQueue:      b.queue,
		Active:        int(b.active.Load()),
		Queued:        int(b.waiting.Load()),
		Available:     b.AvailableSlots(),
		TotalExecuted: b.executed.Load(),
		TotalRejected: b.rejected.Load(),
	}
}

// BulkheadStats is a point-in-time view of one bulkhead.
type BulkheadStats struct {
	Name          string
	MaxConcurrent int
	MaxQueue      int
	Active        int
	Queued        int
	Available     int
	TotalExecuted int64
	TotalRejected int64
}

// DisabledBulkhead admits everything. Dependencies that opt out of
// concurrency capping get one of these so call sites stay uniform.
type DisabledBulkhead struct{}

func NewDisabledBulkhead() *DisabledBulkhead { return &DisabledBulkhead{} }

func (b *DisabledBulkhead) ExecuteCtx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (b *DisabledBulkhead) ExecuteWithResult(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	return fn(ctx)
}

func (b *DisabledBulkhead) ActiveCount() int     { return 0 }
func (b *DisabledBulkhead) QueuedCount() int     { return 0 }
func (b *DisabledBulkhead) RejectedCount() int64 { return 0 }
func (b *DisabledBulkhead) TotalExecuted() int64 { return 0 }
func (b *DisabledBulkhead) AvailableSlots() int  { return 1000000 }
func (b *DisabledBulkhead) Stats() BulkheadStats { return BulkheadStats{} }
