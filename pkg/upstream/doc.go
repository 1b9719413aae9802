// Package upstream provides resilient access to external data providers with
// multi-strategy caching and graceful degradation.
//
// upstream wraps every outbound call in a protection stack (bulkhead, retry
// with exponential backoff, circuit breaker) and a two-tier cache (in-memory
// and Redis), and grades every answer with a quality flag so consumers always
// know whether they received live, cached, or substitute data.
//
// # Features
//
//   - Per-dependency Protection: One circuit breaker and bulkhead per
//     registered provider, configured independently
//   - Multi-strategy Caching: static, dynamic, realtime, and computation
//     profiles with per-strategy TTLs and a freshness window
//   - Fallback Chain: cached payloads, configured defaults, alternative
//     operations, or a degraded-mode envelope when a provider stays down
//   - Quality Grading: every call reports live, cached_fresh, cached_stale,
//     fallback_default, or fallback_degraded
//   - Background Refresh: stale hits answer immediately and refresh through
//     the full protection stack off the request path
//   - Observability: metrics tracking with pluggable publishers and an
//     optional DataDog pipeline
//
// # Quick Start
//
// Create an access layer with default configuration (memory-only cache),
// register a provider, and call through it:
//
//	access, err := upstream.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer access.Close()
//
//	err = access.Register(ctx, "agri_stats", upstream.DependencyConfig{
//	    Strategy: "static",
//	})
//
//	var yield YieldEstimate
//	result, err := access.Call(ctx, "agri_stats", &upstream.Request{
//	    Dataset:    "nass_yield",
//	    Identifier: "corn_IA_2023",
//	    Op: func(ctx context.Context) (any, error) {
//	        return fetchYieldFromNASS(ctx, "CORN", "IA", 2023)
//	    },
//	}, &yield)
//
// The result carries the quality grade:
//
//	if result.Degraded {
//	    // yield holds cached or substitute data
//	}
//
// # Caching Strategies
//
// Each dependency is assigned a strategy that controls how long its payloads
// live and when they count as stale:
//
//   - static: reference data such as emission factors (long TTL)
//   - dynamic: provider catalogs and prices that move within a day
//   - realtime: short-lived feeds, never compressed
//   - computation: derived results from the computation service
//
// An entry inside the first 80% of its TTL is fresh and served directly. Past
// that it is stale: still served, flagged Degraded, and refreshed in the
// background.
//
// # Fallbacks
//
// Configure what a dependency serves once retries are exhausted:
//
//	access.Register(ctx, "food_db", upstream.DependencyConfig{
//	    Fallback: &upstream.FallbackConfig{
//	        Strategy: "default",
//	        Default:  map[string]any{"items": []any{}},
//	    },
//	})
//
// Alternative operations are registered in code:
//
//	access.Register(ctx, "computation_service", upstream.DependencyConfig{},
//	    upstream.WithAlternative(estimateLocally))
//
// # Health Checks
//
// Inspect a single dependency or the whole layer:
//
//	health, err := access.DependencyHealth("agri_stats")
//	if health.State == "open" {
//	    // breaker is rejecting calls
//	}
//
//	overall := access.OverallHealth()
//	fmt.Println(overall.Status, overall.RecoveryRatePercent)
//
// An operator can force a breaker closed after fixing the provider:
//
//	err = access.ResetBreaker("agri_stats")
//
// # Configuration
//
// Load configuration from a file with TRAZO_ environment overrides:
//
//	access, err := upstream.NewFromFile("upstream.yaml")
//
// Or start from the defaults and customize:
//
//	cfg := upstream.Config()
//	cfg.Redis.Enabled = true
//	cfg.Redis.Address = "localhost:6379"
//	access, err := upstream.NewFromConfig(cfg)
//
// For testing, use the test configuration:
//
//	cfg := upstream.TestConfig()
//
// # Thread Safety
//
// All operations are safe for concurrent use from multiple goroutines.
package upstream
