package cache

import (
	"strings"
	"testing"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

func TestBuildKey(t *testing.T) {
	t.Run("dynamic strategy has no version tag", func(t *testing.T) {
		key, err := BuildKey("nass_yield", "corn_IA_2023", types.StrategyDynamic, nil)
		if err != nil {
			t.Fatalf("BuildKey() error = %v", err)
		}
		if key != "nass_yield:corn_IA_2023" {
			t.Errorf("BuildKey() = %s, want nass_yield:corn_IA_2023", key)
		}
	})

	t.Run("static strategy appends its tag", func(t *testing.T) {
		key, err := BuildKey("emission_factors", "us_midwest", types.StrategyStatic, nil)
		if err != nil {
			t.Fatalf("BuildKey() error = %v", err)
		}
		if key != "emission_factors:us_midwest:sv2" {
			t.Errorf("BuildKey() = %s, want emission_factors:us_midwest:sv2", key)
		}
	})

	t.Run("computation strategy appends its tag", func(t *testing.T) {
		key, err := BuildKey("computations", "carbon_run_77", types.StrategyComputation, nil)
		if err != nil {
			t.Fatalf("BuildKey() error = %v", err)
		}
		if key != "computations:carbon_run_77:cv3" {
			t.Errorf("BuildKey() = %s, want computations:carbon_run_77:cv3", key)
		}
	})

	t.Run("params append a fixed-width digest", func(t *testing.T) {
		key, err := BuildKey("nass_yield", "corn_IA_2023", types.StrategyDynamic, map[string]any{
			"statisticcat_desc": "YIELD",
			"year":              2023,
		})
		if err != nil {
			t.Fatalf("BuildKey() error = %v", err)
		}

		prefix := "nass_yield:corn_IA_2023:"
		if !strings.HasPrefix(key, prefix) {
			t.Fatalf("BuildKey() = %s, want prefix %s", key, prefix)
		}

		digest := strings.TrimPrefix(key, prefix)
		if len(digest) != 16 {
			t.Errorf("digest length = %d, want 16", len(digest))
		}
		for _, r := range digest {
			if !strings.ContainsRune("0123456789abcdef", r) {
				t.Errorf("digest %s contains non-hex rune %q", digest, r)
			}
		}
	})

	t.Run("identical params produce identical keys", func(t *testing.T) {
		paramsA := map[string]any{"year": 2023, "commodity": "CORN", "state": "IA"}
		paramsB := map[string]any{"state": "IA", "commodity": "CORN", "year": 2023}

		keyA, err := BuildKey("nass_yield", "q", types.StrategyDynamic, paramsA)
		if err != nil {
			t.Fatalf("BuildKey(A) error = %v", err)
		}
		keyB, err := BuildKey("nass_yield", "q", types.StrategyDynamic, paramsB)
		if err != nil {
			t.Fatalf("BuildKey(B) error = %v", err)
		}

		if keyA != keyB {
			t.Errorf("keys differ for equal params: %s vs %s", keyA, keyB)
		}
	})

	t.Run("different params produce different keys", func(t *testing.T) {
		keyA, err := BuildKey("nass_yield", "q", types.StrategyDynamic, map[string]any{"year": 2023})
		if err != nil {
			t.Fatalf("BuildKey(A) error = %v", err)
		}
		keyB, err := BuildKey("nass_yield", "q", types.StrategyDynamic, map[string]any{"year": 2024})
		if err != nil {
			t.Fatalf("BuildKey(B) error = %v", err)
		}

		if keyA == keyB {
			t.Errorf("keys collide for distinct params: %s", keyA)
		}
	})

	t.Run("nested params are hashed stably", func(t *testing.T) {
		params := map[string]any{
			"filter": map[string]any{"state": "IA", "county": "Polk"},
			"years":  []int{2022, 2023},
		}

		keyA, err := BuildKey("nass_yield", "q", types.StrategyDynamic, params)
		if err != nil {
			t.Fatalf("BuildKey() error = %v", err)
		}
		keyB, err := BuildKey("nass_yield", "q", types.StrategyDynamic, params)
		if err != nil {
			t.Fatalf("BuildKey() error = %v", err)
		}

		if keyA != keyB {
			t.Errorf("keys differ across calls: %s vs %s", keyA, keyB)
		}
	})

	t.Run("unserializable params return invalid key error", func(t *testing.T) {
		_, err := BuildKey("nass_yield", "q", types.StrategyDynamic, map[string]any{
			"ch": make(chan int),
		})
		if !types.IsInvalidKey(err) {
			t.Errorf("BuildKey() error = %v, want ErrInvalidKey", err)
		}
	})

	t.Run("version tag and digest compose", func(t *testing.T) {
		key, err := BuildKey("computations", "run_9", types.StrategyComputation, map[string]any{"scope": "full"})
		if err != nil {
			t.Fatalf("BuildKey() error = %v", err)
		}

		parts := strings.Split(key, ":")
		if len(parts) != 4 {
			t.Fatalf("key %s has %d segments, want 4", key, len(parts))
		}
		if parts[2] != "cv3" {
			t.Errorf("tag segment = %s, want cv3", parts[2])
		}
		if len(parts[3]) != 16 {
			t.Errorf("digest segment length = %d, want 16", len(parts[3]))
		}
	})
}

func TestInvalidationPattern(t *testing.T) {
	tests := []struct {
		name       string
		dataset    string
		identifier string
		strategy   types.Strategy
		want       string
	}{
		{
			name:     "empty identifier widens to whole dataset",
			dataset:  "nass_yield",
			strategy: types.StrategyDynamic,
			want:     "nass_yield:*",
		},
		{
			name:       "untagged strategy matches identifier prefix",
			dataset:    "nass_yield",
			identifier: "corn_IA_2023",
			strategy:   types.StrategyDynamic,
			want:       "nass_yield:corn_IA_2023*",
		},
		{
			name:       "tagged strategy narrows to its keyspace",
			dataset:    "emission_factors",
			identifier: "us_midwest",
			strategy:   types.StrategyStatic,
			want:       "emission_factors:us_midwest:sv2*",
		},
		{
			name:       "computation tag",
			dataset:    "computations",
			identifier: "carbon_run_77",
			strategy:   types.StrategyComputation,
			want:       "computations:carbon_run_77:cv3*",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := invalidationPattern(tt.dataset, tt.identifier, tt.strategy)
			if got != tt.want {
				t.Errorf("invalidationPattern() = %s, want %s", got, tt.want)
			}
		})
	}
}
