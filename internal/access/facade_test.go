package access

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

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type yieldStat struct {
	Value int    `json:"value"`
	Unit  string `json:"unit"`
}

func newTestFacade(t *testing.T, cfg *config.Config, opts *types.ManagerOptions) *Facade {
	t.Helper()

	if cfg == nil {
		cfg = config.ForTesting()
	}
	f, err := New(cfg, opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestNew(t *testing.T) {
	t.Run("nil config uses defaults", func(t *testing.T) {
		f, err := New(nil, nil)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer f.Close()

		if len(f.Names()) != 0 {
			t.Errorf("Expected no dependencies, got %v", f.Names())
		}
	})

	t.Run("invalid config is rejected", func(t *testing.T) {
		cfg := config.ForTesting()
		cfg.Cache.FreshnessFraction = 2

		if _, err := New(cfg, nil); !errors.Is(err, types.ErrInvalidConfig) {
			t.Fatalf("Expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("config dependencies are registered", func(t *testing.T) {
		cfg := config.ForTesting()
		cfg.Dependencies = map[string]config.DependencyConfig{
			"agri_stats": {Strategy: "static"},
			"food_db":    {},
		}

		f := newTestFacade(t, cfg, nil)

		names := f.Names()
		want := []string{"agri_stats", "food_db"}
		if len(names) != len(want) {
			t.Fatalf("Names() = %v, want %v", names, want)
		}
		for i := range want {
			if names[i] != want[i] {
				t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
			}
		}
	})

	t.Run("bad dependency name fails construction", func(t *testing.T) {
		cfg := config.ForTesting()
		cfg.Dependencies = map[string]config.DependencyConfig{
			"agri stats": {},
		}

		if _, err := New(cfg, nil); !types.IsInvalidKey(err) {
			t.Fatalf("Expected an invalid key error, got %v", err)
		}
	})
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate name is rejected", func(t *testing.T) {
		f := newTestFacade(t, nil, nil)

		if err := f.Register(ctx, "agri_stats", config.DependencyConfig{}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		err := f.Register(ctx, "agri_stats", config.DependencyConfig{})
		if !errors.Is(err, types.ErrDependencyExists) {
			t.Errorf("Expected ErrDependencyExists, got %v", err)
		}
	})

	t.Run("empty name is rejected", func(t *testing.T) {
		f := newTestFacade(t, nil, nil)

		if err := f.Register(ctx, "", config.DependencyConfig{}); !types.IsInvalidKey(err) {
			t.Errorf("Expected an invalid key error, got %v", err)
		}
	})

	t.Run("unknown strategy is rejected", func(t *testing.T) {
		f := newTestFacade(t, nil, nil)

		err := f.Register(ctx, "agri_stats", config.DependencyConfig{Strategy: "weekly"})
		if !errors.Is(err, types.ErrInvalidConfig) {
			t.Errorf("Expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("alternative strategy requires an operation", func(t *testing.T) {
		f := newTestFacade(t, nil, nil)

		err := f.Register(ctx, "computation_service", config.DependencyConfig{
			Fallback: &config.FallbackConfig{Strategy: "alternative"},
		})
		if !errors.Is(err, types.ErrInvalidConfig) {
			t.Errorf("Expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("alternative operation registers", func(t *testing.T) {
		f := newTestFacade(t, nil, nil)

		alt := func(ctx context.Context) (any, error) { return yieldStat{Value: 1}, nil }
		err := f.Register(ctx, "computation_service", config.DependencyConfig{
			Fallback: &config.FallbackConfig{Strategy: "alternative"},
		}, WithAlternative(alt))
		if err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	})

	t.Run("breaker can be disabled per dependency", func(t *testing.T) {
		f := newTestFacade(t, nil, nil)

		err := f.Register(ctx, "food_db", config.DependencyConfig{
			Breaker: &config.BreakerConfig{Enabled: false},
		})
		if err != nil {
			t.Fatalf("Register failed: %v", err)
		}

		health, err := f.DependencyHealth("food_db")
		if err != nil {
			t.Fatalf("DependencyHealth failed: %v", err)
		}
		if health.State != "disabled" {
			t.Errorf("Expected disabled state, got %q", health.State)
		}
	})

	t.Run("closed facade rejects registration", func(t *testing.T) {
		f := newTestFacade(t, nil, nil)
		if err := f.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		err := f.Register(ctx, "agri_stats", config.DependencyConfig{})
		if !errors.Is(err, types.ErrClosed) {
			t.Errorf("Expected ErrClosed, got %v", err)
		}
	})
}

func TestNames(t *testing.T) {
	t.Run("names come back sorted", func(t *testing.T) {
		ctx := context.Background()
		f := newTestFacade(t, nil, nil)

		for _, name := range []string{"food_db", "agri_stats", "computation_service"} {
			if err := f.Register(ctx, name, config.DependencyConfig{}); err != nil {
				t.Fatalf("Register(%s) failed: %v", name, err)
			}
		}

		names := f.Names()
		want := []string{"agri_stats", "computation_service", "food_db"}
		if len(names) != len(want) {
			t.Fatalf("Names() = %v, want %v", names, want)
		}
		for i := range want {
			if names[i] != want[i] {
				t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
			}
		}
	})
}

func TestClose(t *testing.T) {
	ctx := context.Background()

	t.Run("close is idempotent", func(t *testing.T) {
		f := newTestFacade(t, nil, nil)

		if err := f.Close(); err != nil {
			t.Errorf("First close failed: %v", err)
		}
		if err := f.Close(); err != nil {
			t.Errorf("Second close failed: %v", err)
		}
	})

	t.Run("calls after close are rejected", func(t *testing.T) {
		f := newTestFacade(t, nil, nil)
		if err := f.Register(ctx, "agri_stats", config.DependencyConfig{}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if err := f.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		op := func(ctx context.Context) (any, error) { return yieldStat{}, nil }
		_, err := f.Call(ctx, "agri_stats", &Request{Dataset: "nass_yield", Identifier: "corn", Op: op}, nil)
		if !errors.Is(err, types.ErrClosed) {
			t.Errorf("Expected ErrClosed, got %v", err)
		}
	})

	t.Run("close waits for an in-flight refresh", func(t *testing.T) {
		clk := newFakeClock()
		f := newTestFacade(t, nil, &types.ManagerOptions{Now: clk.Now})
		if err := f.Register(ctx, "agri_stats", config.DependencyConfig{}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}

		var calls atomic.Int32
		var finished atomic.Bool
		started := make(chan struct{}, 1)
		op := func(ctx context.Context) (any, error) {
			if calls.Add(1) > 1 {
				started <- struct{}{}
				time.Sleep(150 * time.Millisecond)
				finished.Store(true)
			}
			return yieldStat{Value: 7, Unit: "t"}, nil
		}
		req := &Request{Dataset: "nass_yield", Identifier: "corn_IA_2023", Op: op}

		if _, err := f.Call(ctx, "agri_stats", req, nil); err != nil {
			t.Fatalf("Seed call failed: %v", err)
		}
		clk.Advance(25 * time.Second)

		res, err := f.Call(ctx, "agri_stats", req, nil)
		if err != nil {
			t.Fatalf("Stale call failed: %v", err)
		}
		if res.Quality != types.QualityCachedStale {
			t.Fatalf("Expected cached_stale, got %s", res.Quality)
		}

		<-started
		if err := f.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
		if !finished.Load() {
			t.Error("Expected close to wait for the background refresh")
		}
	})

	t.Run("close timeout is reported", func(t *testing.T) {
		clk := newFakeClock()
		f := newTestFacade(t, nil, &types.ManagerOptions{Now: clk.Now})
		if err := f.Register(ctx, "agri_stats", config.DependencyConfig{}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}

		var calls atomic.Int32
		started := make(chan struct{}, 1)
		op := func(ctx context.Context) (any, error) {
			if calls.Add(1) > 1 {
				started <- struct{}{}
				time.Sleep(400 * time.Millisecond)
			}
			return yieldStat{Value: 7}, nil
		}
		req := &Request{Dataset: "nass_yield", Identifier: "corn_IA_2023", Op: op}

		if _, err := f.Call(ctx, "agri_stats", req, nil); err != nil {
			t.Fatalf("Seed call failed: %v", err)
		}
		clk.Advance(25 * time.Second)
		if _, err := f.Call(ctx, "agri_stats", req, nil); err != nil {
			t.Fatalf("Stale call failed: %v", err)
		}

		<-started
		if err := f.CloseWithTimeout(30 * time.Millisecond); !errors.Is(err, types.ErrShutdownTimeout) {
			t.Errorf("Expected ErrShutdownTimeout, got %v", err)
		}
	})
}
