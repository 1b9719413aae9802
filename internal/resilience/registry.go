package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

// storeTimeout caps persistence round-trips triggered by state changes.
const storeTimeout = 2 * time.Second

// SnapshotStore persists breaker snapshots so replicas converge on the
// health view of a shared dependency. A nil *Snapshot with a nil error
// means no snapshot exists yet.
type SnapshotStore interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context, name string) (*Snapshot, error)
}

// Registry owns the circuit breakers for every registered dependency and
// wires their state changes into logging, metrics, and the snapshot store.
type Registry struct {
	defaults Config
	store    SnapshotStore
	logger   *slog.Logger
	metrics  types.MetricsRecorder
	now      func() time.Time

	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder notified on state transitions.
func WithMetrics(metrics types.MetricsRecorder) RegistryOption {
	return func(r *Registry) {
		r.metrics = metrics
	}
}

// WithStore sets the snapshot store used to share breaker state across
// instances.
func WithStore(store SnapshotStore) RegistryOption {
	return func(r *Registry) {
		r.store = store
	}
}

// WithClock overrides the clock handed to new breakers.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry creates a breaker registry. Breakers registered without their
// own config inherit defaults.
func NewRegistry(defaults Config, opts ...RegistryOption) *Registry {
	r := &Registry{
		defaults: defaults,
		logger:   slog.Default(),
		now:      time.Now,
		breakers: make(map[string]*Breaker),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register creates the breaker for a dependency. A nil cfg inherits the
// registry defaults. When a snapshot store is configured, previously
// persisted state is restored before the breaker takes traffic, so a
// dependency that tripped the circuit in another instance starts open here
// too. Registering the same name twice fails.
func (r *Registry) Register(ctx context.Context, name string, cfg *Config) (*Breaker, error) {
	if err := types.ValidateComponent(name); err != nil {
		return nil, fmt.Errorf("dependency name: %w", err)
	}

	r.mu.RLock()
	_, exists := r.breakers[name]
	r.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("%w: %s", types.ErrDependencyExists, name)
	}

	merged := r.defaults
	if cfg != nil {
		merged = *cfg
	}
	if merged.Now == nil {
		merged.Now = r.now
	}

	b := NewBreaker(name, merged)
	b.SetOnStateChange(r.transitionHook(b))
	r.restore(ctx, b)

	r.mu.Lock()
	if _, dup := r.breakers[name]; dup {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", types.ErrDependencyExists, name)
	}
	r.breakers[name] = b
	r.mu.Unlock()

	r.logger.Debug("dependency breaker registered",
		"dependency", name,
		"state", b.State().String())

	return b, nil
}

// Get returns the breaker for a registered dependency.
func (r *Registry) Get(name string) (*Breaker, error) {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownDependency, name)
	}
	return b, nil
}

// Reset forces a dependency's breaker closed. The state change is persisted
// through the normal transition hook.
func (r *Registry) Reset(name string) error {
	b, err := r.Get(name)
	if err != nil {
		return err
	}

	b.Reset()
	r.logger.Info("dependency breaker reset", "dependency", name)
	return nil
}

// Names returns the registered dependency names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Health returns the health view of a single dependency.
func (r *Registry) Health(name string) (types.DependencyHealth, error) {
	b, err := r.Get(name)
	if err != nil {
		return types.DependencyHealth{}, err
	}
	return b.Health(), nil
}

// HealthAll returns the health view of every registered dependency.
func (r *Registry) HealthAll() map[string]types.DependencyHealth {
	r.mu.RLock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.RUnlock()

	out := make(map[string]types.DependencyHealth, len(breakers))
	for _, b := range breakers {
		out[b.Name()] = b.Health()
	}
	return out
}

// transitionHook builds the state-change callback for one breaker. Breaker
// callbacks run outside the breaker mutex, so reading the snapshot here is
// safe.
func (r *Registry) transitionHook(b *Breaker) func(name string, from, to State) {
	return func(name string, from, to State) {
		r.logger.Warn("circuit breaker state change",
			"dependency", name,
			"from", from.String(),
			"to", to.String())

		if r.metrics != nil {
			r.metrics.RecordBreakerTransition(name, from.String(), to.String())
		}

		if r.store == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		if err := r.store.Save(ctx, b.Snapshot()); err != nil {
			r.logger.Warn("breaker state persist failed",
				"dependency", name,
				"error", err)
		}
	}
}

// restore loads persisted state for a freshly registered breaker. Store
// failures are logged and ignored; the breaker simply starts closed.
func (r *Registry) restore(ctx context.Context, b *Breaker) {
	if r.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	snap, err := r.store.Load(ctx, b.Name())
	if err != nil {
		r.logger.Warn("breaker state load failed",
			"dependency", b.Name(),
			"error", err)
		return
	}
	if snap == nil {
		return
	}

	if err := b.Restore(*snap); err != nil {
		r.logger.Warn("breaker snapshot rejected",
			"dependency", b.Name(),
			"error", err)
		return
	}

	r.logger.Info("breaker state restored",
		"dependency", b.Name(),
		"state", b.State().String())
}
