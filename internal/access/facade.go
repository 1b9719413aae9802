// Package access composes the cache manager, breaker registry, and retry
// orchestrator into one resilient call path for upstream providers. A call
// consults the cache first, then runs the live operation behind the
// dependency's bulkhead, retry policy, and circuit breaker, and always
// comes back with a quality grade saying where the value came from.
package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/cache"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/config"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/metrics"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/metrics/datadog"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/resilience"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/retry"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

// Facade is the composition point of the access layer. It owns the cache
// tiers, one breaker and bulkhead per registered dependency, and the retry
// orchestrator they all execute under.
type Facade struct {
	cfg      *config.Config
	logger   *slog.Logger
	recorder types.MetricsRecorder
	tracker  *metrics.Tracker
	cache    *cache.Manager
	registry *resilience.Registry
	orch     *retry.Orchestrator

	publisher   types.Publisher
	bgPublisher *metrics.BackgroundPublisher

	depMu sync.RWMutex
	deps  map[string]*dependency

	hookMu  sync.RWMutex
	refresh RefreshHook

	refreshGroup singleflight.Group

	now   func() time.Time
	calls atomic.Int64

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
	bgWg           sync.WaitGroup
	bgMu           sync.Mutex
	closed         atomic.Bool
}

// New creates a facade from configuration, wiring the cache manager, the
// breaker registry with its snapshot store, the orchestrator, and the
// metrics pipeline, then registers every dependency named in the config.
func New(cfg *config.Config, opts *types.ManagerOptions) (*Facade, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base := slog.Default()
	if opts != nil && opts.Logger != nil {
		base = cache.AdaptLogger(opts.Logger)
	}
	logger := base.With("component", "access")

	now := time.Now
	if opts != nil && opts.Now != nil {
		now = opts.Now
	}

	tracker := metrics.NewTracker()
	var recorder types.MetricsRecorder = tracker
	if opts != nil && opts.Metrics != nil {
		recorder = metrics.NewFanout(tracker, opts.Metrics)
	}

	mgrOpts := types.ManagerOptions{}
	if opts != nil {
		mgrOpts = *opts
	}
	mgrOpts.Metrics = recorder

	mgr, err := cache.NewManager(cfg, &mgrOpts)
	if err != nil {
		return nil, err
	}

	regOpts := []resilience.RegistryOption{
		resilience.WithLogger(base.With("component", "breakers")),
		resilience.WithMetrics(recorder),
		resilience.WithClock(now),
	}
	if cfg.Breaker.Store.Enabled {
		if client := mgr.RedisClient(); client != nil {
			store := resilience.NewRedisStore(client, cfg.Breaker.Store.KeyPrefix, cfg.Breaker.Store.TTL)
			regOpts = append(regOpts, resilience.WithStore(store))
		} else if cfg.Redis.Enabled {
			logger.Warn("Breaker store enabled but the redis tier is unavailable, keeping breaker state local")
		}
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	f := &Facade{
		cfg:            cfg,
		logger:         logger,
		recorder:       recorder,
		tracker:        tracker,
		cache:          mgr,
		registry:       resilience.NewRegistry(resilience.FromBreakerConfig(cfg.Breaker), regOpts...),
		deps:           make(map[string]*dependency),
		now:            now,
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}
	f.orch = retry.NewOrchestrator(
		retry.WithLogger(base.With("component", "retry")),
		retry.WithMetrics(recorder),
		retry.WithFallbackCache(managerFallback{mgr}),
		retry.WithClock(now),
	)
	f.refresh = f.backgroundRefresh

	if cfg.Metrics.Enabled {
		pub := mgrOpts.Publisher
		if pub == nil {
			var err error
			pub, err = datadog.NewPublisher(&cfg.Metrics.DataDog, base)
			if err != nil {
				shutdownCancel()
				_ = mgr.Close()
				return nil, err
			}
		}
		f.publisher = pub
		f.bgPublisher = metrics.NewBackgroundPublisher(pub, cfg.Metrics.PublishInterval, f.healthBatch, base)
		f.bgPublisher.Start(shutdownCtx)
	}

	names := make([]string, 0, len(cfg.Dependencies))
	for name := range cfg.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := f.Register(context.Background(), name, cfg.Dependencies[name]); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	return f, nil
}

// managerFallback adapts the cache manager to the read-side the cache
// fallback strategy consults.
type managerFallback struct {
	m *cache.Manager
}

func (c managerFallback) Lookup(ctx context.Context, key string) (any, bool) {
	look, ok := c.m.Peek(ctx, key)
	if !ok {
		return nil, false
	}
	return look, true
}

// Cache exposes the underlying cache manager for direct entry operations.
func (f *Facade) Cache() *cache.Manager {
	return f.cache
}

// Names returns the registered dependency names in sorted order.
func (f *Facade) Names() []string {
	f.depMu.RLock()
	names := make([]string, 0, len(f.deps))
	for name := range f.deps {
		names = append(names, name)
	}
	f.depMu.RUnlock()

	sort.Strings(names)
	return names
}

// dependency returns the registered dependency or fails fast.
func (f *Facade) dependency(name string) (*dependency, error) {
	f.depMu.RLock()
	dep, ok := f.deps[name]
	f.depMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownDependency, name)
	}
	return dep, nil
}

// Close releases all resources using the default shutdown timeout.
func (f *Facade) Close() error {
	return f.CloseWithTimeout(cache.DefaultShutdownTimeout)
}

// CloseWithTimeout stops the metrics publisher, waits up to the timeout for
// in-flight background refreshes, and closes the cache tiers. A timeout is
// reported but does not stop the teardown.
func (f *Facade) CloseWithTimeout(timeout time.Duration) error {
	f.bgMu.Lock()
	if f.closed.Swap(true) {
		f.bgMu.Unlock()
		return nil
	}
	f.shutdownCancel()
	f.bgMu.Unlock()

	if f.bgPublisher != nil {
		f.bgPublisher.Stop()
	}

	f.logger.Info("Closing access facade, waiting for background refreshes", "timeout", timeout)

	done := make(chan struct{})
	go func() {
		f.bgWg.Wait()
		close(done)
	}()

	var errs []error
	select {
	case <-done:
	case <-time.After(timeout):
		f.logger.Warn("Shutdown timeout exceeded, proceeding with close", "timeout", timeout)
		errs = append(errs, types.ErrShutdownTimeout)
	}

	if f.publisher != nil {
		if err := f.publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := f.cache.CloseWithTimeout(timeout); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// runBackground executes fn in a goroutine tracked for graceful shutdown.
// The goroutine is not started once the facade is closed.
func (f *Facade) runBackground(fn func(ctx context.Context)) {
	f.bgMu.Lock()
	if f.closed.Load() {
		f.bgMu.Unlock()
		return
	}
	f.bgWg.Add(1)
	f.bgMu.Unlock()

	go func() {
		defer f.bgWg.Done()
		ctx, cancel := context.WithTimeout(f.shutdownCtx, refreshBudget)
		defer cancel()
		fn(ctx)
	}()
}
