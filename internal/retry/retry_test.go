package retry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/config"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

type fakeRecorder struct {
	mu        sync.Mutex
	retries   []int
	fallbacks []string
}

func (r *fakeRecorder) RecordHit(layer, key string, latency time.Duration)     {}
func (r *fakeRecorder) RecordMiss(layer, key string, latency time.Duration)    {}
func (r *fakeRecorder) RecordSet(layer, key string, size int, d time.Duration) {}
func (r *fakeRecorder) RecordDelete(layer, key string, latency time.Duration)  {}
func (r *fakeRecorder) RecordError(layer, operation string, err error)         {}
func (r *fakeRecorder) RecordBreakerTransition(dependency, from, to string)    {}
func (r *fakeRecorder) RecordCall(dependency, quality string, d time.Duration) {}

func (r *fakeRecorder) RecordRetry(dependency string, attempt int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries = append(r.retries, attempt)
}

func (r *fakeRecorder) RecordFallback(dependency, strategy string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks = append(r.fallbacks, dependency+":"+strategy)
}

var _ types.MetricsRecorder = (*fakeRecorder)(nil)

func fastPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   1 * time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
		Exponential: true,
	}
}

func TestPolicyRetryable(t *testing.T) {
	//nolint:govet // Test table - alignment not critical
	tests := []struct {
		name   string
		policy Policy
		kind   types.ErrorKind
		want   bool
	}{
		{"default allows anything", Policy{}, types.KindTimeout, true},
		{"default allows unknown", Policy{}, types.KindUnknown, true},
		{
			"non-retryable kind aborts",
			Policy{NonRetryableKinds: []types.ErrorKind{types.KindValidation}},
			types.KindValidation,
			false,
		},
		{
			"allowlist admits listed kind",
			Policy{RetryableKinds: []types.ErrorKind{types.KindTimeout}},
			types.KindTimeout,
			true,
		},
		{
			"allowlist rejects unlisted kind",
			Policy{RetryableKinds: []types.ErrorKind{types.KindTimeout}},
			types.KindConnection,
			false,
		},
		{
			"non-retryable wins over allowlist",
			Policy{
				RetryableKinds:    []types.ErrorKind{types.KindTimeout},
				NonRetryableKinds: []types.ErrorKind{types.KindTimeout},
			},
			types.KindTimeout,
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.retryable(tt.kind); got != tt.want {
				t.Errorf("retryable(%s) = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}

func TestPolicyDelay(t *testing.T) {
	t.Run("exponential growth capped at max", func(t *testing.T) {
		p := Policy{
			BaseDelay:   100 * time.Millisecond,
			MaxDelay:    1 * time.Second,
			Exponential: true,
		}

		wants := []time.Duration{
			100 * time.Millisecond,
			200 * time.Millisecond,
			400 * time.Millisecond,
			800 * time.Millisecond,
			1 * time.Second,
			1 * time.Second,
		}
		for i, want := range wants {
			if got := p.delay(i + 1); got != want {
				t.Errorf("delay(%d) = %v, want %v", i+1, got, want)
			}
		}
	})

	t.Run("constant without exponential", func(t *testing.T) {
		p := Policy{BaseDelay: 50 * time.Millisecond, MaxDelay: 1 * time.Second}

		for attempt := 1; attempt <= 5; attempt++ {
			if got := p.delay(attempt); got != 50*time.Millisecond {
				t.Errorf("delay(%d) = %v, want 50ms", attempt, got)
			}
		}
	})

	t.Run("jitter stays within half to full delay", func(t *testing.T) {
		p := Policy{
			BaseDelay:   100 * time.Millisecond,
			MaxDelay:    1 * time.Second,
			Exponential: true,
			Jitter:      true,
		}

		for i := 0; i < 100; i++ {
			got := p.delay(2) // 200ms before jitter
			if got < 100*time.Millisecond || got > 200*time.Millisecond {
				t.Fatalf("jittered delay = %v, want within [100ms, 200ms]", got)
			}
		}
	})

	t.Run("huge attempt numbers do not overflow", func(t *testing.T) {
		p := Policy{
			BaseDelay:   100 * time.Millisecond,
			MaxDelay:    1 * time.Second,
			Exponential: true,
		}
		if got := p.delay(64); got != 1*time.Second {
			t.Errorf("delay(64) = %v, want capped at 1s", got)
		}
	})
}

func TestFromRetryConfig(t *testing.T) {
	t.Run("binds fields and kinds", func(t *testing.T) {
		p := FromRetryConfig(config.RetryConfig{
			Enabled:           true,
			MaxAttempts:       4,
			BaseDelay:         10 * time.Millisecond,
			MaxDelay:          1 * time.Second,
			Exponential:       true,
			Jitter:            true,
			NonRetryableKinds: []string{"circuit_open", "validation"},
		})

		if p.MaxAttempts != 4 {
			t.Errorf("MaxAttempts = %d, want 4", p.MaxAttempts)
		}
		if len(p.NonRetryableKinds) != 2 || p.NonRetryableKinds[0] != types.KindCircuitOpen {
			t.Errorf("NonRetryableKinds = %v", p.NonRetryableKinds)
		}
	})

	t.Run("disabled collapses to one attempt", func(t *testing.T) {
		p := FromRetryConfig(config.RetryConfig{Enabled: false, MaxAttempts: 5})
		if p.MaxAttempts != 1 {
			t.Errorf("MaxAttempts = %d, want 1 when disabled", p.MaxAttempts)
		}
	})
}

func TestOrchestratorExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("first attempt success", func(t *testing.T) {
		o := NewOrchestrator()

		out, err := o.Execute(ctx, Request{
			Operation: "fetch",
			Component: "nass_yield",
			Policy:    fastPolicy(3),
			Op: func(ctx context.Context) (any, error) {
				return 181.3, nil
			},
		})

		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if out.Value != 181.3 {
			t.Errorf("Value = %v, want 181.3", out.Value)
		}
		if out.Source != SourceLive {
			t.Errorf("Source = %v, want live", out.Source)
		}
		if out.Attempts != 1 {
			t.Errorf("Attempts = %d, want 1", out.Attempts)
		}
	})

	t.Run("recovers on a later attempt", func(t *testing.T) {
		o := NewOrchestrator()

		var calls atomic.Int32
		out, err := o.Execute(ctx, Request{
			Operation: "fetch",
			Component: "nass_yield",
			Policy:    fastPolicy(3),
			Op: func(ctx context.Context) (any, error) {
				if calls.Add(1) < 3 {
					return nil, errors.New("connection reset by peer")
				}
				return "ok", nil
			},
		})

		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if out.Attempts != 3 {
			t.Errorf("Attempts = %d, want 3", out.Attempts)
		}
		if out.Source != SourceLive {
			t.Errorf("Source = %v, want live", out.Source)
		}

		stats := o.Stats()
		if stats.TotalErrors != 2 {
			t.Errorf("TotalErrors = %d, want 2", stats.TotalErrors)
		}
		if stats.RecoveredErrors != 2 {
			t.Errorf("RecoveredErrors = %d, want 2", stats.RecoveredErrors)
		}
	})

	t.Run("exhausts the budget", func(t *testing.T) {
		o := NewOrchestrator()
		cause := errors.New("connection refused")

		var calls atomic.Int32
		out, err := o.Execute(ctx, Request{
			Operation: "fetch",
			Component: "nass_yield",
			Policy:    fastPolicy(3),
			Op: func(ctx context.Context) (any, error) {
				calls.Add(1)
				return nil, cause
			},
		})

		if got := calls.Load(); got != 3 {
			t.Errorf("invocations = %d, want exactly 3", got)
		}
		if out.Attempts != 3 {
			t.Errorf("Attempts = %d, want 3", out.Attempts)
		}
		if !errors.Is(err, types.ErrRetriesExhausted) {
			t.Errorf("error = %v, want ErrRetriesExhausted", err)
		}
		if !errors.Is(err, cause) {
			t.Errorf("error = %v, want to preserve the original cause", err)
		}
	})

	t.Run("non-retryable kind aborts immediately", func(t *testing.T) {
		o := NewOrchestrator()
		cause := types.NewAccessError("fetch", "nass_yield", types.KindValidation, errors.New("year out of range"))

		var calls atomic.Int32
		_, err := o.Execute(ctx, Request{
			Operation: "fetch",
			Component: "nass_yield",
			Policy: Policy{
				MaxAttempts:       3,
				BaseDelay:         1 * time.Millisecond,
				NonRetryableKinds: []types.ErrorKind{types.KindValidation},
			},
			Op: func(ctx context.Context) (any, error) {
				calls.Add(1)
				return nil, cause
			},
		})

		if got := calls.Load(); got != 1 {
			t.Errorf("invocations = %d, want 1", got)
		}
		if !errors.Is(err, cause) {
			t.Errorf("error = %v, want the original error untouched", err)
		}
		if errors.Is(err, types.ErrRetriesExhausted) {
			t.Error("non-retryable abort must not read as retries exhausted")
		}
	})

	t.Run("open circuit is not retried with default kinds", func(t *testing.T) {
		o := NewOrchestrator()
		policy := FromRetryConfig(config.DefaultConfig().Retry)
		policy.BaseDelay = 1 * time.Millisecond

		var calls atomic.Int32
		_, err := o.Execute(ctx, Request{
			Operation: "fetch",
			Component: "computation_service",
			Policy:    policy,
			Op: func(ctx context.Context) (any, error) {
				calls.Add(1)
				return nil, types.NewAccessError("call", "computation_service", types.KindCircuitOpen, types.ErrCircuitOpen)
			},
		})

		if got := calls.Load(); got != 1 {
			t.Errorf("invocations = %d, want 1 for an open circuit", got)
		}
		if !types.IsCircuitOpen(err) {
			t.Errorf("error = %v, want circuit open", err)
		}
	})

	t.Run("context cancellation stops the loop", func(t *testing.T) {
		o := NewOrchestrator()
		cctx, cancel := context.WithCancel(ctx)

		var calls atomic.Int32
		go func() {
			time.Sleep(5 * time.Millisecond)
			cancel()
		}()

		_, err := o.Execute(cctx, Request{
			Operation: "fetch",
			Component: "nass_yield",
			Policy: Policy{
				MaxAttempts: 10,
				BaseDelay:   50 * time.Millisecond,
			},
			Op: func(ctx context.Context) (any, error) {
				calls.Add(1)
				return nil, errors.New("boom")
			},
		})

		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
		if got := calls.Load(); got >= 10 {
			t.Errorf("invocations = %d, want cancellation to cut the loop short", got)
		}
	})

	t.Run("panic costs one attempt", func(t *testing.T) {
		o := NewOrchestrator()

		var calls atomic.Int32
		out, err := o.Execute(ctx, Request{
			Operation: "compute",
			Component: "computation_service",
			Policy:    fastPolicy(2),
			Op: func(ctx context.Context) (any, error) {
				if calls.Add(1) == 1 {
					panic("nil dereference in client")
				}
				return "ok", nil
			},
		})

		if err != nil {
			t.Fatalf("Execute() error = %v, want recovery on attempt 2", err)
		}
		if out.Attempts != 2 {
			t.Errorf("Attempts = %d, want 2", out.Attempts)
		}

		stats := o.Stats()
		if stats.CriticalErrors != 1 {
			t.Errorf("CriticalErrors = %d, want 1", stats.CriticalErrors)
		}
		if stats.ByKind[types.KindPanic] != 1 {
			t.Errorf("ByKind[panic] = %d, want 1", stats.ByKind[types.KindPanic])
		}
	})

	t.Run("records retry metrics per scheduled retry", func(t *testing.T) {
		rec := &fakeRecorder{}
		o := NewOrchestrator(WithMetrics(rec))

		_, _ = o.Execute(ctx, Request{
			Operation: "fetch",
			Component: "nass_yield",
			Policy:    fastPolicy(3),
			Op: func(ctx context.Context) (any, error) {
				return nil, errors.New("boom")
			},
		})

		rec.mu.Lock()
		defer rec.mu.Unlock()
		// 3 attempts means 2 scheduled retries.
		if len(rec.retries) != 2 {
			t.Errorf("recorded retries = %v, want 2 entries", rec.retries)
		}
	})
}

func TestOrchestratorFallback(t *testing.T) {
	ctx := context.Background()
	failing := func(ctx context.Context) (any, error) {
		return nil, errors.New("request timed out")
	}

	t.Run("default value after exhaustion", func(t *testing.T) {
		rec := &fakeRecorder{}
		o := NewOrchestrator(WithMetrics(rec))

		var calls atomic.Int32
		out, err := o.Execute(ctx, Request{
			Operation: "fetch",
			Component: "nass_yield",
			Policy:    fastPolicy(3),
			Fallback:  &Fallback{Strategy: types.FallbackDefault, Default: 0.0},
			Op: func(ctx context.Context) (any, error) {
				calls.Add(1)
				return nil, errors.New("request timed out")
			},
		})

		if err != nil {
			t.Fatalf("Execute() error = %v, want fallback value", err)
		}
		if got := calls.Load(); got != 3 {
			t.Errorf("invocations = %d, want exactly 3", got)
		}
		if out.Value != 0.0 {
			t.Errorf("Value = %v, want 0.0", out.Value)
		}
		if out.Source != SourceDefault {
			t.Errorf("Source = %v, want default", out.Source)
		}
		if out.Attempts != 3 {
			t.Errorf("Attempts = %d, want 3", out.Attempts)
		}

		rec.mu.Lock()
		defer rec.mu.Unlock()
		if len(rec.fallbacks) != 1 || rec.fallbacks[0] != "nass_yield:default" {
			t.Errorf("recorded fallbacks = %v", rec.fallbacks)
		}
	})

	t.Run("fallback recovery counts toward the recovery rate", func(t *testing.T) {
		o := NewOrchestrator()

		_, err := o.Execute(ctx, Request{
			Operation: "fetch",
			Component: "nass_yield",
			Policy:    fastPolicy(2),
			Fallback:  &Fallback{Strategy: types.FallbackDefault, Default: "substitute"},
			Op:        failing,
		})
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}

		stats := o.Stats()
		if stats.TotalErrors != 2 || stats.RecoveredErrors != 2 {
			t.Errorf("total=%d recovered=%d, want 2 and 2", stats.TotalErrors, stats.RecoveredErrors)
		}
		if stats.Verdict != types.HealthStatusStable {
			t.Errorf("Verdict = %v, want stable", stats.Verdict)
		}
	})

	t.Run("cache fallback hit", func(t *testing.T) {
		cache := mapCache{items: map[string]any{"nass_yield:corn_IA_2023:sv2": 181.3}}
		o := NewOrchestrator(WithFallbackCache(cache))

		out, err := o.Execute(ctx, Request{
			Operation: "fetch",
			Component: "nass_yield",
			Policy:    fastPolicy(2),
			Fallback: &Fallback{
				Strategy: types.FallbackCache,
				CacheKey: "nass_yield:corn_IA_2023:sv2",
			},
			Op: failing,
		})

		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if out.Value != 181.3 {
			t.Errorf("Value = %v, want 181.3", out.Value)
		}
		if out.Source != SourceCache {
			t.Errorf("Source = %v, want cache", out.Source)
		}
	})

	t.Run("cache fallback miss surfaces the error", func(t *testing.T) {
		o := NewOrchestrator(WithFallbackCache(mapCache{items: map[string]any{}}))

		_, err := o.Execute(ctx, Request{
			Operation: "fetch",
			Component: "nass_yield",
			Policy:    fastPolicy(2),
			Fallback: &Fallback{
				Strategy: types.FallbackCache,
				CacheKey: "nass_yield:missing",
			},
			Op: failing,
		})

		if !errors.Is(err, types.ErrRetriesExhausted) {
			t.Errorf("error = %v, want ErrRetriesExhausted on fallback miss", err)
		}
	})

	t.Run("alternative operation", func(t *testing.T) {
		o := NewOrchestrator()

		out, err := o.Execute(ctx, Request{
			Operation: "fetch",
			Component: "food_composition",
			Policy:    fastPolicy(2),
			Fallback: &Fallback{
				Strategy: types.FallbackAlternative,
				Alternative: func(ctx context.Context) (any, error) {
					return "from mirror", nil
				},
			},
			Op: failing,
		})

		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if out.Value != "from mirror" || out.Source != SourceAlternative {
			t.Errorf("outcome = %+v, want alternative value", out)
		}
	})

	t.Run("failed alternative surfaces the original error", func(t *testing.T) {
		o := NewOrchestrator()
		cause := errors.New("request timed out")

		_, err := o.Execute(ctx, Request{
			Operation: "fetch",
			Component: "food_composition",
			Policy:    fastPolicy(2),
			Fallback: &Fallback{
				Strategy: types.FallbackAlternative,
				Alternative: func(ctx context.Context) (any, error) {
					return nil, errors.New("mirror also down")
				},
			},
			Op: func(ctx context.Context) (any, error) {
				return nil, cause
			},
		})

		if !errors.Is(err, cause) {
			t.Errorf("error = %v, want the original cause", err)
		}
	})

	t.Run("graceful degradation wraps the payload", func(t *testing.T) {
		o := NewOrchestrator()

		out, err := o.Execute(ctx, Request{
			Operation: "compute",
			Component: "computation_service",
			Policy:    fastPolicy(2),
			Fallback: &Fallback{
				Strategy: types.FallbackGraceful,
				Default:  map[string]any{"footprint": nil},
			},
			Op: failing,
		})

		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		payload, ok := out.Value.(types.DegradedPayload)
		if !ok {
			t.Fatalf("Value type = %T, want DegradedPayload", out.Value)
		}
		if !payload.DegradedMode {
			t.Error("DegradedMode = false, want true")
		}
		if payload.Timestamp.IsZero() {
			t.Error("Timestamp is zero")
		}
		if out.Source != SourceDegraded {
			t.Errorf("Source = %v, want degraded", out.Source)
		}
	})
}

type mapCache struct {
	items map[string]any
}

func (m mapCache) Lookup(ctx context.Context, key string) (any, bool) {
	v, ok := m.items[key]
	return v, ok
}

func TestFromFallbackConfig(t *testing.T) {
	t.Run("nil section means no fallback", func(t *testing.T) {
		fb, err := FromFallbackConfig(nil)
		if err != nil || fb != nil {
			t.Errorf("FromFallbackConfig(nil) = (%v, %v), want (nil, nil)", fb, err)
		}
	})

	t.Run("none strategy means no fallback", func(t *testing.T) {
		fb, err := FromFallbackConfig(&config.FallbackConfig{Strategy: "none"})
		if err != nil || fb != nil {
			t.Errorf("got (%v, %v), want (nil, nil)", fb, err)
		}
	})

	t.Run("default strategy binds the value", func(t *testing.T) {
		fb, err := FromFallbackConfig(&config.FallbackConfig{Strategy: "default", Default: 0})
		if err != nil {
			t.Fatalf("error = %v", err)
		}
		if fb.Strategy != types.FallbackDefault || fb.Default != 0 {
			t.Errorf("fallback = %+v", fb)
		}
	})

	t.Run("alternative cannot come from config", func(t *testing.T) {
		if _, err := FromFallbackConfig(&config.FallbackConfig{Strategy: "alternative"}); err == nil {
			t.Error("error = nil, want rejection")
		}
	})

	t.Run("unknown strategy is rejected", func(t *testing.T) {
		if _, err := FromFallbackConfig(&config.FallbackConfig{Strategy: "pray"}); err == nil {
			t.Error("error = nil, want rejection")
		}
	})
}
