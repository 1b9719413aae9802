// Package resilience provides the per-dependency protection primitives:
// circuit breakers, breaker state persistence, and bulkheads.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/config"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ParseState converts a persisted state string back into a State.
func ParseState(s string) (State, error) {
	switch s {
	case "closed":
		return StateClosed, nil
	case "open":
		return StateOpen, nil
	case "half-open":
		return StateHalfOpen, nil
	default:
		return 0, fmt.Errorf("%w: unknown breaker state %q", types.ErrInvalidConfig, s)
	}
}

// Config holds the tunables for one breaker. Zero values take defaults.
type Config struct {
	FailureThreshold  int
	SuccessThreshold  int
	RecoveryTimeout   time.Duration
	RequestTimeout    time.Duration
	SlidingWindowSize int

	// Fallback, when set, substitutes a value for rejected or failed calls.
	// A fallback that itself fails never masks the original error.
	Fallback types.FallbackFunc

	// Now overrides the clock. Tests use this to age the recovery window.
	Now func() time.Time
}

// FromBreakerConfig converts the file-facing config section into a Config.
func FromBreakerConfig(c config.BreakerConfig) Config {
	return Config{
		FailureThreshold:  c.FailureThreshold,
		SuccessThreshold:  c.SuccessThreshold,
		RecoveryTimeout:   c.RecoveryTimeout,
		RequestTimeout:    c.RequestTimeout,
		SlidingWindowSize: c.SlidingWindowSize,
	}
}

// recentWindow bounds the "recent failure" view reported by Health.
const recentWindow = 5 * time.Minute

// Breaker guards one upstream dependency. Consecutive failures open the
// circuit; after the recovery timeout a single probe is admitted at a time,
// and enough probe successes close it again. The breaker never retries:
// retry scheduling layers outside it.
type Breaker struct {
	name string

	failureThreshold  int
	successThreshold  int
	recoveryTimeout   time.Duration
	requestTimeout    time.Duration
	slidingWindowSize int
	fallback          types.FallbackFunc
	now               func() time.Time

	state atomic.Int32

	mu               sync.Mutex
	consecutiveFails int
	consecutiveSuccs int
	probeInFlight    bool
	openedAt         time.Time
	lastFailure      time.Time
	failureHistory   []time.Time

	totalRequests   atomic.Int64
	successRequests atomic.Int64
	failedRequests  atomic.Int64
	circuitOpens    atomic.Int64
	timeoutCount    atomic.Int64

	onStateChange func(name string, from, to State)
}

// stateTransition allows callbacks to be invoked outside the mutex to prevent deadlocks.
type stateTransition struct {
	name     string
	from     State
	to       State
	callback func(name string, from, to State)
}

// NewBreaker creates a circuit breaker for the named dependency.
func NewBreaker(name string, cfg Config) *Breaker {
	b := &Breaker{
		name:              name,
		failureThreshold:  cfg.FailureThreshold,
		successThreshold:  cfg.SuccessThreshold,
		recoveryTimeout:   cfg.RecoveryTimeout,
		requestTimeout:    cfg.RequestTimeout,
		slidingWindowSize: cfg.SlidingWindowSize,
		fallback:          cfg.Fallback,
		now:               cfg.Now,
	}

	if b.failureThreshold <= 0 {
		b.failureThreshold = 5
	}
	if b.successThreshold <= 0 {
		b.successThreshold = 2
	}
	if b.recoveryTimeout <= 0 {
		b.recoveryTimeout = 30 * time.Second
	}
	if b.requestTimeout < 0 {
		b.requestTimeout = 0
	}
	if b.slidingWindowSize <= 0 {
		b.slidingWindowSize = 10
	}
	if b.now == nil {
		b.now = time.Now
	}

	b.state.Store(int32(StateClosed))

	return b
}

// Name returns the dependency name this breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// CallResult carries the value of a guarded call and whether it came from
// the dependency's fallback rather than the operation itself.
type CallResult struct {
	Value        any
	FromFallback bool
}

// Call runs op under the breaker. Open-circuit rejections and failed
// operations consult the configured fallback; when the fallback also fails,
// the error returned is the one that triggered it, not the fallback's.
func (b *Breaker) Call(ctx context.Context, op types.Operation) (CallResult, error) {
	b.totalRequests.Add(1)

	if !b.admit() {
		return b.substitute(ctx, b.openError())
	}

	value, err := b.execute(ctx, op)
	if err != nil {
		b.RecordFailure(err)
		return b.substitute(ctx, err)
	}

	b.RecordSuccess()
	return CallResult{Value: value}, nil
}

// execute runs op with the per-request timeout applied. Panics become
// errors so a misbehaving provider client cannot leave the breaker with an
// unaccounted request.
func (b *Breaker) execute(ctx context.Context, op types.Operation) (value any, err error) {
	if b.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.requestTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", types.ErrPanicked, r)
		}
	}()

	value, err = op(ctx)
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		b.timeoutCount.Add(1)
	}
	return value, err
}

// substitute consults the fallback for a rejected or failed call.
func (b *Breaker) substitute(ctx context.Context, cause error) (CallResult, error) {
	if b.fallback == nil {
		return CallResult{}, cause
	}

	value, err := b.fallback(ctx, cause)
	if err != nil {
		return CallResult{}, cause
	}
	return CallResult{Value: value, FromFallback: true}, nil
}

func (b *Breaker) openError() error {
	return types.NewAccessError("call", b.name, types.KindCircuitOpen, types.ErrCircuitOpen)
}

// admit decides whether a call may execute. In the open state it also
// performs the recovery transition once the timeout has elapsed; in the
// half-open state it admits exactly one probe at a time.
func (b *Breaker) admit() bool {
	state := State(b.state.Load())

	switch state {
	case StateClosed:
		return true

	case StateOpen:
		var transition *stateTransition
		var allowed bool

		b.mu.Lock()
		if b.now().Sub(b.openedAt) >= b.recoveryTimeout {
			transition = b.transitionTo(StateHalfOpen)
			b.probeInFlight = true
			allowed = true
		}
		b.mu.Unlock()

		transition.invoke()
		return allowed

	case StateHalfOpen:
		b.mu.Lock()
		allowed := !b.probeInFlight
		if allowed {
			b.probeInFlight = true
		}
		b.mu.Unlock()
		return allowed

	default:
		return true
	}
}

// RecordSuccess records a successful operation.
func (b *Breaker) RecordSuccess() {
	b.successRequests.Add(1)

	var transition *stateTransition

	b.mu.Lock()
	state := State(b.state.Load())

	switch state {
	case StateClosed:
		b.consecutiveFails = 0

	case StateHalfOpen:
		b.probeInFlight = false
		b.consecutiveSuccs++
		if b.consecutiveSuccs >= b.successThreshold {
			transition = b.transitionTo(StateClosed)
		}
	}
	b.mu.Unlock()

	// Invoke callback outside mutex to prevent deadlock
	transition.invoke()
}

// RecordFailure records a failed operation.
func (b *Breaker) RecordFailure(err error) {
	b.failedRequests.Add(1)

	var transition *stateTransition

	b.mu.Lock()
	now := b.now()
	b.lastFailure = now
	b.failureHistory = append(b.failureHistory, now)
	if len(b.failureHistory) > b.slidingWindowSize {
		b.failureHistory = b.failureHistory[len(b.failureHistory)-b.slidingWindowSize:]
	}

	state := State(b.state.Load())

	switch state {
	case StateClosed:
		b.consecutiveFails++
		if b.consecutiveFails >= b.failureThreshold {
			transition = b.transitionTo(StateOpen)
		}

	case StateHalfOpen:
		b.probeInFlight = false
		transition = b.transitionTo(StateOpen)
	}
	b.mu.Unlock()

	// Invoke callback outside mutex to prevent deadlock
	transition.invoke()
}

// transitionTo changes the breaker state.
// Must be called while holding the mutex.
// Returns a stateTransition if a callback should be invoked, nil otherwise.
// The caller MUST invoke the callback (if non-nil) AFTER releasing the mutex
// to prevent deadlocks.
func (b *Breaker) transitionTo(newState State) *stateTransition {
	oldState := State(b.state.Load())
	if oldState == newState {
		return nil
	}

	switch newState {
	case StateClosed:
		b.consecutiveFails = 0
		b.consecutiveSuccs = 0
		b.probeInFlight = false

	case StateOpen:
		b.openedAt = b.now()
		if b.lastFailure.IsZero() {
			b.lastFailure = b.openedAt
		}
		b.consecutiveSuccs = 0
		b.probeInFlight = false
		b.circuitOpens.Add(1)

	case StateHalfOpen:
		b.consecutiveSuccs = 0
	}

	b.state.Store(int32(newState))

	// Return transition info for callback invocation outside the mutex.
	// This prevents deadlocks if the callback reads breaker state.
	if b.onStateChange != nil {
		return &stateTransition{
			name:     b.name,
			from:     oldState,
			to:       newState,
			callback: b.onStateChange,
		}
	}
	return nil
}

// invoke safely invokes a state transition callback.
// Must be called AFTER releasing the mutex.
func (t *stateTransition) invoke() {
	if t != nil && t.callback != nil {
		t.callback(t.name, t.from, t.to)
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	return State(b.state.Load())
}

// IsOpen returns true if the circuit is open.
func (b *Breaker) IsOpen() bool {
	return b.State() == StateOpen
}

// IsClosed returns true if the circuit is closed.
func (b *Breaker) IsClosed() bool {
	return b.State() == StateClosed
}

// IsHalfOpen returns true if the circuit is half-open.
func (b *Breaker) IsHalfOpen() bool {
	return b.State() == StateHalfOpen
}

// SetOnStateChange sets a callback for state changes.
// The callback is invoked synchronously after state transitions complete.
// The callback may safely read breaker state (State(), Stats(), etc.)
// without risk of deadlock. The callback should be reasonably fast
// (e.g., logging, metrics recording) to avoid blocking operations.
func (b *Breaker) SetOnStateChange(fn func(name string, from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// Reset forces the breaker closed and clears its counters. This is the
// administrative override; it fires the state-change callback like any
// other transition so persisted state stays in sync.
func (b *Breaker) Reset() {
	var transition *stateTransition

	b.mu.Lock()
	b.consecutiveFails = 0
	b.consecutiveSuccs = 0
	b.probeInFlight = false
	b.failureHistory = nil
	transition = b.transitionTo(StateClosed)
	b.mu.Unlock()

	transition.invoke()
}

// Stats contains breaker statistics.
type Stats struct {
	State                State
	TotalRequests        int64
	SuccessfulRequests   int64
	FailedRequests       int64
	CircuitOpens         int64
	Timeouts             int64
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	WindowFailures       int
	LastFailure          time.Time
}

// Stats returns a point-in-time view of the breaker's counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		State:                b.State(),
		TotalRequests:        b.totalRequests.Load(),
		SuccessfulRequests:   b.successRequests.Load(),
		FailedRequests:       b.failedRequests.Load(),
		CircuitOpens:         b.circuitOpens.Load(),
		Timeouts:             b.timeoutCount.Load(),
		ConsecutiveFailures:  b.consecutiveFails,
		ConsecutiveSuccesses: b.consecutiveSuccs,
		WindowFailures:       len(b.failureHistory),
		LastFailure:          b.lastFailure,
	}
}

// Health summarizes the breaker for health surfaces. The recent failure
// rate is the share of the sliding window holding failures from the last
// five minutes.
func (b *Breaker) Health() types.DependencyHealth {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := b.totalRequests.Load()
	successRate := 1.0
	if total > 0 {
		successRate = float64(b.successRequests.Load()) / float64(total)
	}

	cutoff := b.now().Add(-recentWindow)
	recent := 0
	for _, t := range b.failureHistory {
		if t.After(cutoff) {
			recent++
		}
	}

	return types.DependencyHealth{
		Dependency:          b.name,
		State:               b.State().String(),
		SuccessRate:         successRate,
		RecentFailureRate:   float64(recent) / float64(b.slidingWindowSize),
		ConsecutiveFailures: b.consecutiveFails,
		TotalRequests:       total,
		CircuitOpens:        b.circuitOpens.Load(),
		Timeouts:            b.timeoutCount.Load(),
		LastFailure:         b.lastFailure,
	}
}

// Snapshot is the persisted view of breaker state shared across instances.
type Snapshot struct {
	Name                 string    `json:"name"`
	State                string    `json:"state"`
	ConsecutiveFailures  int       `json:"consecutiveFailures"`
	ConsecutiveSuccesses int       `json:"consecutiveSuccesses"`
	OpenedAt             time.Time `json:"openedAt,omitempty"`
	LastFailure          time.Time `json:"lastFailure,omitempty"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Snapshot captures the state that is worth sharing across instances.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		Name:                 b.name,
		State:                b.State().String(),
		ConsecutiveFailures:  b.consecutiveFails,
		ConsecutiveSuccesses: b.consecutiveSuccs,
		OpenedAt:             b.openedAt,
		LastFailure:          b.lastFailure,
		UpdatedAt:            b.now(),
	}
}

// Restore adopts a persisted snapshot. It is meant for registration time,
// before the breaker takes traffic, and does not fire the state-change
// callback. An open snapshot without a failure timestamp restarts the
// recovery window from now so the open invariant holds.
func (b *Breaker) Restore(snap Snapshot) error {
	state, err := ParseState(snap.State)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFails = snap.ConsecutiveFailures
	b.consecutiveSuccs = snap.ConsecutiveSuccesses
	b.probeInFlight = false
	b.openedAt = snap.OpenedAt
	b.lastFailure = snap.LastFailure

	if state == StateOpen {
		if b.openedAt.IsZero() {
			b.openedAt = b.now()
		}
		if b.lastFailure.IsZero() {
			b.lastFailure = b.openedAt
		}
	}

	b.state.Store(int32(state))
	return nil
}

// DisabledBreaker is a no-op breaker that executes every call directly.
type DisabledBreaker struct{}

// NewDisabledBreaker creates a disabled breaker.
func NewDisabledBreaker() *DisabledBreaker {
	return &DisabledBreaker{}
}

// Call runs the operation without breaker protection.
func (d *DisabledBreaker) Call(ctx context.Context, op types.Operation) (CallResult, error) {
	value, err := op(ctx)
	return CallResult{Value: value}, err
}

// State returns StateClosed as this is a disabled breaker.
func (d *DisabledBreaker) State() State { return StateClosed }

// IsOpen returns false as this is a disabled breaker.
func (d *DisabledBreaker) IsOpen() bool { return false }

// Reset does nothing as this is a disabled breaker.
func (d *DisabledBreaker) Reset() {}

// Stats returns zeroed statistics.
func (d *DisabledBreaker) Stats() Stats { return Stats{} }
