package retry

import (
	"context"
	"fmt"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/config"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

// Source identifies where an outcome's value came from.
type Source int

const (
	SourceLive Source = iota + 1
	SourceCache
	SourceDefault
	SourceAlternative
	SourceDegraded
)

func (s Source) String() string {
	switch s {
	case SourceLive:
		return "live"
	case SourceCache:
		return "cache"
	case SourceDefault:
		return "default"
	case SourceAlternative:
		return "alternative"
	case SourceDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Outcome is the result of an orchestrated operation: the value, where it
// came from, and how many attempts were spent producing it.
type Outcome struct {
	Value    any
	Source   Source
	Attempts int
}

// FallbackCache is the read-side the cache fallback strategy consults. Any
// entry counts, stale included; a degraded answer beats none.
type FallbackCache interface {
	Lookup(ctx context.Context, key string) (any, bool)
}

// Fallback describes what to substitute once retries are exhausted.
type Fallback struct {
	Strategy types.FallbackStrategy

	// CacheKey is consulted through the FallbackCache for FallbackCache
	// strategy lookups.
	CacheKey string

	// Default is returned for the default strategy and wrapped into the
	// degraded payload for graceful degradation.
	Default any

	// Alternative is the substitute operation for the alternative strategy.
	Alternative types.Operation
}

// FromFallbackConfig binds the file-facing fallback section. Alternative
// operations cannot be expressed in config; they are wired in code.
func FromFallbackConfig(c *config.FallbackConfig) (*Fallback, error) {
	if c == nil {
		return nil, nil
	}

	strategy, err := types.ParseFallbackStrategy(c.Strategy)
	if err != nil {
		return nil, err
	}
	if strategy == types.FallbackNone {
		return nil, nil
	}
	if strategy == types.FallbackAlternative {
		return nil, fmt.Errorf("%w: alternative fallbacks are registered in code, not config", types.ErrInvalidConfig)
	}

	return &Fallback{
		Strategy: strategy,
		Default:  c.Default,
	}, nil
}

// resolve walks the fallback for an exhausted operation. The second return
// reports whether a substitute value was produced; when it is false the
// caller surfaces the original error.
func (o *Orchestrator) resolve(ctx context.Context, fb *Fallback, cause error) (any, Source, bool) {
	if fb == nil || fb.Strategy == types.FallbackNone {
		return nil, 0, false
	}

	switch fb.Strategy {
	case types.FallbackCache:
		if o.cache == nil || fb.CacheKey == "" {
			return nil, 0, false
		}
		if value, ok := o.cache.Lookup(ctx, fb.CacheKey); ok {
			return value, SourceCache, true
		}
		return nil, 0, false

	case types.FallbackDefault:
		return fb.Default, SourceDefault, true

	case types.FallbackAlternative:
		if fb.Alternative == nil {
			return nil, 0, false
		}
		value, err := fb.Alternative(ctx)
		if err != nil {
			o.logger.Warn("alternative fallback failed",
				"error", err,
				"cause", cause)
			return nil, 0, false
		}
		return value, SourceAlternative, true

	case types.FallbackGraceful:
		return types.DegradedPayload{
			Value:        fb.Default,
			DegradedMode: true,
			Timestamp:    o.now(),
		}, SourceDegraded, true

	default:
		return nil, 0, false
	}
}
