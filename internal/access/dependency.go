package access

import (
	"context"
	"fmt"
	"time"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/config"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/resilience"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/retry"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

// dependency is the protection chain assembled for one upstream at
// registration time. Calls flow bulkhead, then retry policy, then breaker.
type dependency struct {
	name        string
	strategy    types.Strategy
	guard       breakerGuard
	breaker     *resilience.Breaker
	bulkhead    bulkheadRunner
	policy      retry.Policy
	fallback    *retry.Fallback
	degradedTTL time.Duration
}

// breakerGuard is the slice of the breaker surface a call passes through. A
// disabled breaker satisfies it for dependencies that opt out.
type breakerGuard interface {
	Call(ctx context.Context, op types.Operation) (resilience.CallResult, error)
}

// bulkheadRunner bounds how many live calls one dependency runs at once.
type bulkheadRunner interface {
	ExecuteWithResult(ctx context.Context, fn func(context.Context) (any, error)) (any, error)
	RejectedCount() int64
}

// registration collects the code-only side of a dependency registration.
type registration struct {
	alternative types.Operation
}

// RegisterOption customizes a dependency registration.
type RegisterOption func(*registration)

// WithAlternative wires a substitute operation consulted after retries are
// exhausted. Alternative operations cannot be expressed in a config file, so
// this is the only way to attach one.
func WithAlternative(op types.Operation) RegisterOption {
	return func(r *registration) {
		r.alternative = op
	}
}

// Register adds a named dependency to the facade. A section present in the
// dependency config replaces the matching top-level section wholesale; nil
// sections inherit the defaults. Registering a name twice fails with
// ErrDependencyExists.
func (f *Facade) Register(ctx context.Context, name string, depCfg config.DependencyConfig, opts ...RegisterOption) error {
	if f.closed.Load() {
		return types.ErrClosed
	}
	if err := types.ValidateComponent(name); err != nil {
		return fmt.Errorf("dependency name: %w", err)
	}

	var reg registration
	for _, opt := range opts {
		opt(&reg)
	}

	f.depMu.RLock()
	_, exists := f.deps[name]
	f.depMu.RUnlock()
	if exists {
		return fmt.Errorf("%w: %s", types.ErrDependencyExists, name)
	}

	dep, err := f.buildDependency(name, depCfg, reg.alternative)
	if err != nil {
		return err
	}

	breakerCfg := f.cfg.Breaker
	if depCfg.Breaker != nil {
		breakerCfg = *depCfg.Breaker
	}
	if breakerCfg.Enabled {
		rc := resilience.FromBreakerConfig(breakerCfg)
		breaker, err := f.registry.Register(ctx, name, &rc)
		if err != nil {
			return err
		}
		dep.breaker = breaker
		dep.guard = breaker
	} else {
		dep.guard = resilience.NewDisabledBreaker()
	}

	f.depMu.Lock()
	if _, exists := f.deps[name]; exists {
		f.depMu.Unlock()
		return fmt.Errorf("%w: %s", types.ErrDependencyExists, name)
	}
	f.deps[name] = dep
	f.depMu.Unlock()

	f.logger.Info("Dependency registered",
		"dependency", name,
		"strategy", dep.strategy.String(),
		"breaker", breakerCfg.Enabled,
		"max_attempts", dep.policy.MaxAttempts)

	return nil
}

// buildDependency resolves the effective configuration for one dependency
// into its runtime pieces.
func (f *Facade) buildDependency(name string, depCfg config.DependencyConfig, alt types.Operation) (*dependency, error) {
	strategy, err := f.strategyFor(depCfg.Strategy)
	if err != nil {
		return nil, fmt.Errorf("dependency %s: %w", name, err)
	}

	retryCfg := f.cfg.Retry
	if depCfg.Retry != nil {
		retryCfg = *depCfg.Retry
	}

	fallback, err := buildFallback(depCfg.Fallback, alt)
	if err != nil {
		return nil, fmt.Errorf("dependency %s: %w", name, err)
	}

	degradedTTL := f.cfg.Cache.DegradedTTL
	if depCfg.Fallback != nil && depCfg.Fallback.CacheTTL > 0 {
		degradedTTL = depCfg.Fallback.CacheTTL
	}
	if degradedTTL <= 0 {
		degradedTTL = 5 * time.Minute
	}

	bulkheadCfg := f.cfg.Bulkhead
	if depCfg.Bulkhead != nil {
		bulkheadCfg = *depCfg.Bulkhead
	}
	var runner bulkheadRunner
	if bulkheadCfg.Enabled {
		runner = resilience.NewBulkhead(name, bulkheadCfg)
	} else {
		runner = resilience.NewDisabledBulkhead()
	}

	return &dependency{
		name:        name,
		strategy:    strategy,
		bulkhead:    runner,
		policy:      retry.FromRetryConfig(retryCfg),
		fallback:    fallback,
		degradedTTL: degradedTTL,
	}, nil
}

// strategyFor resolves a strategy name, falling back to the configured
// default and finally to the dynamic profile.
func (f *Facade) strategyFor(name string) (types.Strategy, error) {
	if name == "" {
		name = f.cfg.Defaults.Strategy
	}
	if name == "" {
		return types.StrategyDynamic, nil
	}
	return types.ParseStrategy(name)
}

// buildFallback merges the configured fallback section with a
// programmatically registered alternative operation. The alternative wins
// when the config names the alternative strategy or names nothing at all.
func buildFallback(cfg *config.FallbackConfig, alt types.Operation) (*retry.Fallback, error) {
	if cfg == nil {
		if alt == nil {
			return nil, nil
		}
		return &retry.Fallback{Strategy: types.FallbackAlternative, Alternative: alt}, nil
	}

	strategy, err := types.ParseFallbackStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	if strategy == types.FallbackAlternative {
		if alt == nil {
			return nil, fmt.Errorf("%w: alternative fallback needs a registered operation", types.ErrInvalidConfig)
		}
		return &retry.Fallback{Strategy: strategy, Default: cfg.Default, Alternative: alt}, nil
	}

	fb, err := retry.FromFallbackConfig(cfg)
	if err != nil {
		return nil, err
	}
	if fb == nil {
		if alt == nil {
			return nil, nil
		}
		return &retry.Fallback{Strategy: types.FallbackAlternative, Alternative: alt}, nil
	}
	if alt != nil {
		fb.Alternative = alt
	}
	return fb, nil
}
