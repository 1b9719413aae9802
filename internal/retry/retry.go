package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/config"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

// escalationStreak is how many back-to-back retry exhaustions a component
// needs before LOW-severity errors get promoted to MEDIUM.
const escalationStreak = 3

// Policy holds the retry tunables for one dependency.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Exponential bool
	Jitter      bool

	// RetryableKinds, when non-empty, allows retries for these kinds only.
	RetryableKinds []types.ErrorKind

	// NonRetryableKinds always aborts immediately and wins over
	// RetryableKinds.
	NonRetryableKinds []types.ErrorKind
}

// FromRetryConfig binds the file-facing retry section. A disabled section
// collapses to a single attempt; classification and fallbacks still apply.
func FromRetryConfig(c config.RetryConfig) Policy {
	p := Policy{
		MaxAttempts: c.MaxAttempts,
		BaseDelay:   c.BaseDelay,
		MaxDelay:    c.MaxDelay,
		Exponential: c.Exponential,
		Jitter:      c.Jitter,
	}
	if !c.Enabled {
		p.MaxAttempts = 1
	}
	for _, k := range c.RetryableKinds {
		p.RetryableKinds = append(p.RetryableKinds, types.ErrorKind(k))
	}
	for _, k := range c.NonRetryableKinds {
		p.NonRetryableKinds = append(p.NonRetryableKinds, types.ErrorKind(k))
	}
	return p
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 200 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 5 * time.Second
	}
	return p
}

// retryable reports whether an error of this kind earns another attempt.
func (p Policy) retryable(kind types.ErrorKind) bool {
	for _, k := range p.NonRetryableKinds {
		if k == kind {
			return false
		}
	}
	if len(p.RetryableKinds) == 0 {
		return true
	}
	for _, k := range p.RetryableKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// delay computes the sleep before the attempt following the given 1-based
// attempt number.
func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	if p.Exponential {
		shift := attempt - 1
		if shift > 30 {
			shift = 30
		}
		d = p.BaseDelay << shift
		if d <= 0 || d > p.MaxDelay {
			d = p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter {
		d = time.Duration(float64(d) * (0.5 + rand.Float64()*0.5))
	}
	return d
}

// Orchestrator runs operations under a retry policy, classifies every
// failure, and walks the fallback chain when attempts run out. One
// orchestrator serves all dependencies; the per-dependency knobs arrive
// with each request.
type Orchestrator struct {
	logger  *slog.Logger
	metrics types.MetricsRecorder
	cache   FallbackCache
	journal *errorLog
	now     func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder for retry and fallback counters.
func WithMetrics(metrics types.MetricsRecorder) Option {
	return func(o *Orchestrator) {
		o.metrics = metrics
	}
}

// WithFallbackCache provides the read-side consulted by cache fallbacks.
func WithFallbackCache(cache FallbackCache) Option {
	return func(o *Orchestrator) {
		o.cache = cache
	}
}

// WithClock overrides the clock used for error timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger:  slog.Default(),
		journal: newErrorLog(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Request describes one orchestrated call.
type Request struct {
	// Operation is the logical operation name recorded in error contexts.
	Operation string

	// Component is the dependency the operation talks to.
	Component string

	Policy   Policy
	Fallback *Fallback
	Op       types.Operation
}

// Execute runs the request. Retries stop early for non-retryable kinds and
// for context cancellation; once attempts are spent the fallback chain gets
// one shot at substituting a value. The returned error is the last
// operation error, wrapped with ErrRetriesExhausted when the budget was
// actually consumed.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (Outcome, error) {
	policy := req.Policy.withDefaults()

	var lastErr error
	var lastKind types.ErrorKind
	failures := 0
	attempts := 0

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return Outcome{Attempts: attempts}, ctx.Err()
		default:
		}

		attempts = attempt
		value, err := o.attempt(ctx, req.Op)
		if err == nil {
			o.journal.markRecovered(req.Component, failures)
			return Outcome{Value: value, Source: SourceLive, Attempts: attempt}, nil
		}

		failures++
		lastErr = err
		lastKind = Classify(err)
		severity := o.escalate(req.Component, SeverityOf(lastKind))

		ec := newErrorContext(req.Operation, req.Component, lastKind, severity, attempt, err, o.now())
		o.journal.record(ec)
		o.logger.Warn("attempt failed",
			"error_id", ec.ID,
			"component", req.Component,
			"operation", req.Operation,
			"kind", string(lastKind),
			"severity", severity.String(),
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"error", err)

		if !policy.retryable(lastKind) {
			break
		}
		if attempt == policy.MaxAttempts {
			break
		}

		if o.metrics != nil {
			o.metrics.RecordRetry(req.Component, attempt)
		}

		select {
		case <-ctx.Done():
			return Outcome{Attempts: attempts}, ctx.Err()
		case <-time.After(policy.delay(attempt)):
		}
	}

	if value, source, ok := o.resolve(ctx, req.Fallback, lastErr); ok {
		o.journal.markRecovered(req.Component, failures)
		if o.metrics != nil {
			o.metrics.RecordFallback(req.Component, req.Fallback.Strategy.String())
		}
		o.logger.Info("fallback engaged",
			"component", req.Component,
			"operation", req.Operation,
			"strategy", req.Fallback.Strategy.String(),
			"source", source.String(),
			"attempts", attempts)
		return Outcome{Value: value, Source: source, Attempts: attempts}, nil
	}

	o.journal.markExhausted(req.Component)

	if !policy.retryable(lastKind) {
		return Outcome{Attempts: attempts}, lastErr
	}
	return Outcome{Attempts: attempts}, fmt.Errorf("%w after %d attempts: %w", types.ErrRetriesExhausted, attempts, lastErr)
}

// attempt isolates one operation call, converting panics into errors so a
// misbehaving provider client costs one attempt instead of the process.
func (o *Orchestrator) attempt(ctx context.Context, op types.Operation) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", types.ErrPanicked, r)
		}
	}()
	return op(ctx)
}

// escalate promotes LOW severities once a component has exhausted its
// budget several operations in a row.
func (o *Orchestrator) escalate(component string, sev types.Severity) types.Severity {
	if sev == types.SeverityLow && o.journal.streak(component) >= escalationStreak {
		return types.SeverityMedium
	}
	return sev
}

// Stats returns the orchestrator's error accounting.
func (o *Orchestrator) Stats() Stats {
	return o.journal.Snapshot()
}

// Verdict grades the orchestrator's error picture.
func (o *Orchestrator) Verdict() types.HealthStatus {
	return o.journal.Snapshot().Verdict
}
