package upstream

import (
	"context"
	"time"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/access"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/config"
)

type (
	// Request describes one resilient call: what to fetch, how to cache it,
	// and the operation that produces it.
	Request = access.Request
	// Result reports how a call was answered: the quality grade, whether the
	// payload is degraded, and how many attempts the live path took.
	Result = access.Result
	// RegisterOption customizes a dependency registration.
	RegisterOption = access.RegisterOption
	// RefreshHook observes stale cache hits. The default hook refreshes the
	// entry through the full protection stack in the background.
	RefreshHook = access.RefreshHook

	// DependencyConfig carries per-dependency overrides for strategy,
	// breaker, retry, fallback, and bulkhead settings.
	DependencyConfig = config.DependencyConfig
	// FallbackConfig selects the substitute path used after retries are
	// exhausted.
	FallbackConfig = config.FallbackConfig
	// BreakerConfig tunes a dependency's circuit breaker.
	BreakerConfig = config.BreakerConfig
	// RetryConfig tunes a dependency's retry policy.
	RetryConfig = config.RetryConfig
	// BulkheadConfig caps a dependency's concurrent calls.
	BulkheadConfig = config.BulkheadConfig
)

// WithAlternative registers an alternate operation consulted when the primary
// operation stays down.
func WithAlternative(op Operation) RegisterOption {
	return access.WithAlternative(op)
}

// Access is the resilient entry point to external providers. Every call runs
// behind the registered dependency's bulkhead, retry policy, and circuit
// breaker, consults the cache first, and reports the quality of its answer.
type Access interface {
	// Register adds a named dependency. Omitted config sections inherit the
	// global defaults.
	Register(ctx context.Context, name string, cfg DependencyConfig, opts ...RegisterOption) error

	// Call executes a resilient call against a registered dependency and
	// decodes the payload into dest when dest is non-nil.
	Call(ctx context.Context, dependency string, req *Request, dest any) (*Result, error)

	// SetRefreshHook replaces the stale-hit refresh behavior. Passing nil
	// restores the default background refresh.
	SetRefreshHook(hook RefreshHook)

	// DependencyHealth reports the breaker view of one dependency.
	DependencyHealth(name string) (DependencyHealth, error)

	// OverallHealth reports the aggregate verdict across all dependencies.
	OverallHealth() OverallHealth

	// ResetBreaker forces a dependency's breaker closed.
	ResetBreaker(name string) error

	// InvalidateCache removes cached entries for a dataset. An empty
	// identifier removes every entry of the dataset. Returns the number of
	// removed entries.
	InvalidateCache(ctx context.Context, dataset, identifier string) (int, error)

	// Health reports the state of the cache tiers.
	Health(ctx context.Context) (*HealthMetrics, error)

	// Stats returns a point-in-time metrics snapshot.
	Stats() MetricsSnapshot

	// Names returns the registered dependency names in sorted order.
	Names() []string

	// Cache exposes the underlying cache manager for direct entry
	// operations, such as seeding values from a custom refresh hook.
	Cache() *Cache

	// Close releases all resources using the default shutdown timeout.
	Close() error

	// CloseWithTimeout waits up to the timeout for background refreshes
	// before closing.
	CloseWithTimeout(timeout time.Duration) error
}

var _ Access = (*access.Facade)(nil)
