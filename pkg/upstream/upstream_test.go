package upstream_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/oscarmunoz1/trazo-back-sub000/pkg/upstream"
)

type yieldEstimate struct {
	Commodity string  `json:"commodity"`
	Value     float64 `json:"value"`
}

func TestNew(t *testing.T) {
	access, err := upstream.New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer access.Close()

	if names := access.Names(); len(names) != 0 {
		t.Errorf("Expected no dependencies, got %v", names)
	}
}

func TestNewMemoryOnly(t *testing.T) {
	ctx := context.Background()

	access, err := upstream.NewMemoryOnly()
	if err != nil {
		t.Fatalf("NewMemoryOnly failed: %v", err)
	}
	defer access.Close()

	err = access.Register(ctx, "agri_stats", upstream.DependencyConfig{Strategy: "static"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	var calls atomic.Int32
	req := &upstream.Request{
		Dataset:    "nass_yield",
		Identifier: "corn_IA_2023",
		Op: func(ctx context.Context) (any, error) {
			calls.Add(1)
			return yieldEstimate{Commodity: "CORN", Value: 181.5}, nil
		},
	}

	var got yieldEstimate
	res, err := access.Call(ctx, "agri_stats", req, &got)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if res.Quality != upstream.QualityLive {
		t.Errorf("Expected live quality, got %s", res.Quality)
	}
	if got.Value != 181.5 {
		t.Errorf("Expected 181.5, got %v", got.Value)
	}

	res, err = access.Call(ctx, "agri_stats", req, &got)
	if err != nil {
		t.Fatalf("Second call failed: %v", err)
	}
	if res.Quality != upstream.QualityCachedFresh {
		t.Errorf("Expected cached_fresh, got %s", res.Quality)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 upstream call, got %d", calls.Load())
	}
	if access.Stats().RedisConnected {
		t.Error("Redis should not be connected")
	}
}

func TestNewFromConfig(t *testing.T) {
	ctx := context.Background()

	cfg := upstream.TestConfig()
	cfg.Dependencies = map[string]upstream.DependencyConfig{
		"food_db": {Strategy: "dynamic"},
	}

	access, err := upstream.NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	defer access.Close()

	names := access.Names()
	if len(names) != 1 || names[0] != "food_db" {
		t.Fatalf("Expected [food_db], got %v", names)
	}

	t.Run("configured default answers an outage", func(t *testing.T) {
		err := access.Register(ctx, "computation_service", upstream.DependencyConfig{
			Fallback: &upstream.FallbackConfig{
				Strategy: "default",
				Default:  map[string]any{"value": 0.0},
			},
		})
		if err != nil {
			t.Fatalf("Register failed: %v", err)
		}

		res, err := access.Call(ctx, "computation_service", &upstream.Request{
			Dataset:    "footprint",
			Identifier: "batch_9",
			SkipCache:  true,
			Op: func(ctx context.Context) (any, error) {
				return nil, errors.New("synthetic outage")
			},
		}, nil)
		if err != nil {
			t.Fatalf("Call failed: %v", err)
		}
		if res.Quality != upstream.QualityFallbackDefault {
			t.Errorf("Expected fallback_default, got %s", res.Quality)
		}
		if !res.Degraded {
			t.Error("Expected a degraded result")
		}
	})

	t.Run("exhausted retries surface without a fallback", func(t *testing.T) {
		_, err := access.Call(ctx, "food_db", &upstream.Request{
			Dataset:    "food_items",
			Identifier: "banana",
			SkipCache:  true,
			Op: func(ctx context.Context) (any, error) {
				return nil, errors.New("synthetic outage")
			},
		}, nil)
		if !upstream.IsRetriesExhausted(err) {
			t.Errorf("Expected retries exhausted, got %v", err)
		}
	})

	t.Run("unknown dependency fails fast", func(t *testing.T) {
		_, err := access.Call(ctx, "nope", &upstream.Request{
			Dataset:    "x",
			Identifier: "y",
			Op:         func(ctx context.Context) (any, error) { return nil, nil },
		}, nil)
		if !upstream.IsUnknownDependency(err) {
			t.Errorf("Expected unknown dependency, got %v", err)
		}
	})
}

func TestNewFromFile(t *testing.T) {
	t.Run("file dependencies are registered", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "upstream.yaml")
		content := `
metrics:
  enabled: false
breaker:
  store:
    enabled: false
dependencies:
  agri_stats:
    strategy: static
`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		access, err := upstream.NewFromFile(path)
		if err != nil {
			t.Fatalf("NewFromFile failed: %v", err)
		}
		defer access.Close()

		names := access.Names()
		if len(names) != 1 || names[0] != "agri_stats" {
			t.Errorf("Expected [agri_stats], got %v", names)
		}
	})

	t.Run("missing file falls back to defaults", func(t *testing.T) {
		access, err := upstream.NewFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
		if err != nil {
			t.Fatalf("NewFromFile failed: %v", err)
		}
		defer access.Close()

		if names := access.Names(); len(names) != 0 {
			t.Errorf("Expected no dependencies, got %v", names)
		}
	})

	t.Run("invalid config values are rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		content := "cache:\n  freshnessFraction: 2.0\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		if _, err := upstream.NewFromFile(path); !errors.Is(err, upstream.ErrInvalidConfig) {
			t.Errorf("Expected ErrInvalidConfig, got %v", err)
		}
	})
}
