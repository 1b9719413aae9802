package cache

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/config"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

func memTierConfig() config.MemoryConfig {
	return config.MemoryConfig{
		Enabled:         true,
		MaxSizeMB:       16,
		DefaultTTL:      time.Minute,
		CleanupInterval: time.Second,
		Shards:          64,
		MaxEntrySize:    1024 * 1024,
	}
}

func newMemTier(t *testing.T) *MemoryCache {
	t.Helper()
	tier, err := NewMemoryCache(memTierConfig(), nil)
	if err != nil {
		t.Fatalf("NewMemoryCache: %v", err)
	}
	t.Cleanup(func() { tier.Close() })
	return tier
}

func TestNewMemoryCache(t *testing.T) {
	t.Run("nil logger falls back to the default", func(t *testing.T) {
		tier, err := NewMemoryCache(memTierConfig(), nil)
		if err != nil {
			t.Fatalf("NewMemoryCache: %v", err)
		}
		tier.Close()
	})

	t.Run("accepts an injected logger", func(t *testing.T) {
		tier, err := NewMemoryCache(memTierConfig(), slog.Default())
		if err != nil {
			t.Fatalf("NewMemoryCache: %v", err)
		}
		tier.Close()
	})

	t.Run("reports its tier name", func(t *testing.T) {
		tier := newMemTier(t)
		if got := tier.Name(); got != "memory" {
			t.Errorf("Name() = %q, want memory", got)
		}
	})
}

func TestMemoryCacheAvailability(t *testing.T) {
	tier := newMemTier(t)

	if !tier.IsAvailable() {
		t.Fatal("fresh tier should be available")
	}
	tier.Close()
	if tier.IsAvailable() {
		t.Error("closed tier should report unavailable")
	}
}

func TestMemoryCacheGetSet(t *testing.T) {
	ctx := t.Context()

	t.Run("round trip", func(t *testing.T) {
		tier := newMemTier(t)
		payload := []byte(`{"yield":178.4,"unit":"bu/acre"}`)

		if err := tier.Set(ctx, "nass_yield:corn_IA_2023", payload, nil); err != nil {
			t.Fatalf("Set: %v", err)
		}
		got, err := tier.Get(ctx, "nass_yield:corn_IA_2023")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("Get = %s, want %s", got, payload)
		}
	})

	t.Run("absent key is a miss", func(t *testing.T) {
		tier := newMemTier(t)

		if _, err := tier.Get(ctx, "food_composition:169999"); !errors.Is(err, types.ErrCacheMiss) {
			t.Errorf("Get on absent key = %v, want ErrCacheMiss", err)
		}
	})

	t.Run("set overwrites", func(t *testing.T) {
		tier := newMemTier(t)

		_ = tier.Set(ctx, "computations:batch_77", []byte("v1"), nil)
		_ = tier.Set(ctx, "computations:batch_77", []byte("v2"), nil)

		got, _ := tier.Get(ctx, "computations:batch_77")
		if string(got) != "v2" {
			t.Errorf("Get after overwrite = %q, want v2", got)
		}
	})

	t.Run("counts hits and misses", func(t *testing.T) {
		tier := newMemTier(t)
		_ = tier.Set(ctx, "nass_yield:soy_IL_2023", []byte("x"), nil)

		_, _ = tier.Get(ctx, "nass_yield:soy_IL_2023")
		_, _ = tier.Get(ctx, "nass_yield:soy_IL_2023")
		_, _ = tier.Get(ctx, "nass_yield:wheat_KS_2023")

		stats := tier.Stats()
		if stats.Hits != 2 || stats.Misses != 1 {
			t.Errorf("Stats = %d hits / %d misses, want 2/1", stats.Hits, stats.Misses)
		}
	})

	t.Run("counts sets", func(t *testing.T) {
		tier := newMemTier(t)

		for _, key := range []string{"a", "b", "c"} {
			_ = tier.Set(ctx, "emission_factors:"+key, []byte("f"), nil)
		}
		if got := tier.Stats().Sets; got != 3 {
			t.Errorf("Sets = %d, want 3", got)
		}
	})
}

func TestMemoryCacheOversizeEntrySkipped(t *testing.T) {
	ctx := t.Context()
	cfg := memTierConfig()
	cfg.MaxEntrySize = 512
	tier, err := NewMemoryCache(cfg, nil)
	if err != nil {
		t.Fatalf("NewMemoryCache: %v", err)
	}
	defer tier.Close()

	big := bytes.Repeat([]byte("n"), 2048)
	if err := tier.Set(ctx, "food_composition:bulk_export", big, nil); err != nil {
		t.Fatalf("oversize Set should be a silent skip, got %v", err)
	}

	if _, err := tier.Get(ctx, "food_composition:bulk_export"); !errors.Is(err, types.ErrCacheMiss) {
		t.Errorf("oversize entry should not be stored, Get = %v", err)
	}
	if got := tier.Stats().Sets; got != 0 {
		t.Errorf("skipped write must not count as a set, Sets = %d", got)
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	ctx := t.Context()

	t.Run("removes the entry", func(t *testing.T) {
		tier := newMemTier(t)
		_ = tier.Set(ctx, "nass_yield:corn_IA_2023", []byte("x"), nil)

		if err := tier.Delete(ctx, "nass_yield:corn_IA_2023"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := tier.Get(ctx, "nass_yield:corn_IA_2023"); !errors.Is(err, types.ErrCacheMiss) {
			t.Errorf("Get after Delete = %v, want ErrCacheMiss", err)
		}
	})

	t.Run("absent key is not an error", func(t *testing.T) {
		tier := newMemTier(t)

		if err := tier.Delete(ctx, "computations:batch_0"); err != nil {
			t.Errorf("Delete on absent key = %v, want nil", err)
		}
	})

	t.Run("counts delete attempts", func(t *testing.T) {
		tier := newMemTier(t)
		_ = tier.Set(ctx, "a", []byte("x"), nil)
		_ = tier.Delete(ctx, "a")
		_ = tier.Delete(ctx, "b")

		if got := tier.Stats().Deletes; got != 2 {
			t.Errorf("Deletes = %d, want 2", got)
		}
	})
}

func TestMemoryCacheContains(t *testing.T) {
	ctx := t.Context()
	tier := newMemTier(t)

	_ = tier.Set(ctx, "food_composition:169999", []byte("nutrients"), nil)

	found, err := tier.Contains(ctx, "food_composition:169999")
	if err != nil || !found {
		t.Errorf("Contains(present) = %v, %v, want true, nil", found, err)
	}

	found, err = tier.Contains(ctx, "food_composition:170000")
	if err != nil || found {
		t.Errorf("Contains(absent) = %v, %v, want false, nil", found, err)
	}

	before := tier.Stats()
	_, _ = tier.Contains(ctx, "food_composition:169999")
	after := tier.Stats()
	if after.Hits != before.Hits || after.Misses != before.Misses {
		t.Error("Contains must not move the hit or miss counters")
	}
}

func TestMemoryCacheClear(t *testing.T) {
	ctx := t.Context()
	tier := newMemTier(t)

	_ = tier.Set(ctx, "nass_yield:corn_IA_2023", []byte("1"), nil)
	_ = tier.Set(ctx, "nass_yield:soy_IL_2023", []byte("2"), nil)

	if err := tier.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n := tier.EntryCount(); n != 0 {
		t.Errorf("EntryCount after Clear = %d, want 0", n)
	}
}

func TestMemoryCacheClearByPattern(t *testing.T) {
	ctx := t.Context()

	t.Run("removes matches only and reports the count", func(t *testing.T) {
		tier := newMemTier(t)
		_ = tier.Set(ctx, "nass_yield:corn_IA_2023", []byte("1"), nil)
		_ = tier.Set(ctx, "nass_yield:soy_IL_2023", []byte("2"), nil)
		_ = tier.Set(ctx, "food_composition:169999", []byte("3"), nil)

		removed, err := tier.ClearByPattern(ctx, "nass_yield:*")
		if err != nil {
			t.Fatalf("ClearByPattern: %v", err)
		}
		if removed != 2 {
			t.Errorf("removed = %d, want 2", removed)
		}

		if _, err := tier.Get(ctx, "nass_yield:corn_IA_2023"); !errors.Is(err, types.ErrCacheMiss) {
			t.Error("matched key survived the purge")
		}
		if _, err := tier.Get(ctx, "food_composition:169999"); err != nil {
			t.Error("unmatched key should survive the purge")
		}
	})

	t.Run("no matches removes nothing", func(t *testing.T) {
		tier := newMemTier(t)
		_ = tier.Set(ctx, "nass_yield:corn_IA_2023", []byte("1"), nil)

		removed, err := tier.ClearByPattern(ctx, "computations:*")
		if err != nil || removed != 0 {
			t.Errorf("ClearByPattern = %d, %v, want 0, nil", removed, err)
		}
	})
}

func TestMemoryCacheClosedOperations(t *testing.T) {
	ctx := t.Context()
	tier, err := NewMemoryCache(memTierConfig(), nil)
	if err != nil {
		t.Fatalf("NewMemoryCache: %v", err)
	}
	if err := tier.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := tier.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got %v", err)
	}

	if _, err := tier.Get(ctx, "k"); !errors.Is(err, types.ErrClosed) {
		t.Errorf("Get after Close = %v, want ErrClosed", err)
	}
	if err := tier.Set(ctx, "k", []byte("v"), nil); !errors.Is(err, types.ErrClosed) {
		t.Errorf("Set after Close = %v, want ErrClosed", err)
	}
	if err := tier.Delete(ctx, "k"); !errors.Is(err, types.ErrClosed) {
		t.Errorf("Delete after Close = %v, want ErrClosed", err)
	}
	if _, err := tier.Contains(ctx, "k"); !errors.Is(err, types.ErrClosed) {
		t.Errorf("Contains after Close = %v, want ErrClosed", err)
	}
	if err := tier.Clear(ctx); !errors.Is(err, types.ErrClosed) {
		t.Errorf("Clear after Close = %v, want ErrClosed", err)
	}
	if _, err := tier.ClearByPattern(ctx, "*"); !errors.Is(err, types.ErrClosed) {
		t.Errorf("ClearByPattern after Close = %v, want ErrClosed", err)
	}
}

func TestMemoryCacheGauges(t *testing.T) {
	ctx := t.Context()

	t.Run("entry count follows writes", func(t *testing.T) {
		tier := newMemTier(t)

		if n := tier.EntryCount(); n != 0 {
			t.Fatalf("initial EntryCount = %d, want 0", n)
		}
		_ = tier.Set(ctx, "nass_yield:corn_IA_2023", []byte("1"), nil)
		_ = tier.Set(ctx, "nass_yield:soy_IL_2023", []byte("2"), nil)
		if n := tier.EntryCount(); n != 2 {
			t.Errorf("EntryCount = %d, want 2", n)
		}
	})

	t.Run("max size derives from config", func(t *testing.T) {
		cfg := memTierConfig()
		cfg.MaxSizeMB = 32
		tier, err := NewMemoryCache(cfg, nil)
		if err != nil {
			t.Fatalf("NewMemoryCache: %v", err)
		}
		defer tier.Close()

		if got, want := tier.MaxSize(), int64(32)<<20; got != want {
			t.Errorf("MaxSize = %d, want %d", got, want)
		}
	})

	t.Run("hit ratio", func(t *testing.T) {
		tier := newMemTier(t)

		if r := tier.HitRatio(); r != 0 {
			t.Fatalf("HitRatio with no traffic = %f, want 0", r)
		}

		_ = tier.Set(ctx, "k", []byte("v"), nil)
		for range 3 {
			_, _ = tier.Get(ctx, "k")
		}
		_, _ = tier.Get(ctx, "absent")

		if r := tier.HitRatio(); r < 0.74 || r > 0.76 {
			t.Errorf("HitRatio = %f, want ~0.75", r)
		}
	})
}

func TestGlobMatch(t *testing.T) {
	cases := []struct {
		key     string
		pattern string
		want    bool
	}{
		{"anything", "*", true},
		{"", "*", true},

		{"nass_yield:corn_IA_2023", "nass_yield:*", true},
		{"nass_yield:", "nass_yield:*", true},
		{"food_composition:169999", "nass_yield:*", false},

		{"emission_factors:us_midwest:sv2", "*:sv2", true},
		{":sv2", "*:sv2", true},
		{"emission_factors:us_midwest", "*:sv2", false},

		{"nass_yield:corn:sv2", "nass_yield:*:sv2", true},
		{"nass_yield::sv2", "nass_yield:*:sv2", true},
		{"computations:corn:cv3", "nass_yield:*:sv2", false},

		{"nass_yield:corn_IA_2023", "nass_yield:corn_IA_2023", true},
		{"nass_yield:corn_IA_2023", "nass_yield:corn_IA_2024", false},
	}

	for _, tc := range cases {
		t.Run(tc.key+"_"+tc.pattern, func(t *testing.T) {
			if got := globMatch(tc.key, tc.pattern); got != tc.want {
				t.Errorf("globMatch(%q, %q) = %v, want %v", tc.key, tc.pattern, got, tc.want)
			}
		})
	}
}
