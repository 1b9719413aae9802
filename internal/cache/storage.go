package cache

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/config"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/resilience"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

// storageBreakerName identifies the breaker guarding the shared cache tier.
const storageBreakerName = "cache_storage"

// storageGuard wraps every redis tier operation in a dedicated breaker with
// bounded immediate retries. When the shared tier misbehaves the guard trips
// and the manager quietly degrades to memory-only; the guard never delays a
// caller with backoff sleeps.
type storageGuard struct {
	breaker     *resilience.Breaker
	maxAttempts int
}

func newStorageGuard(cfg *config.Config, logger *slog.Logger, metrics types.MetricsRecorder) *storageGuard {
	maxAttempts := cfg.Cache.StorageMaxRetries
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	breaker := resilience.NewBreaker(storageBreakerName, resilience.FromBreakerConfig(cfg.Breaker))
	breaker.SetOnStateChange(func(name string, from, to resilience.State) {
		logger.Warn("Storage breaker state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String(),
		)
		if metrics != nil {
			metrics.RecordBreakerTransition(name, from.String(), to.String())
		}
	})

	return &storageGuard{
		breaker:     breaker,
		maxAttempts: maxAttempts,
	}
}

// do runs op under the storage breaker. Cache misses and write-queue
// backpressure pass through untouched: they are healthy answers from a
// working backend and must neither trip the breaker nor burn retries.
func (g *storageGuard) do(ctx context.Context, op types.Operation) (any, error) {
	var lastErr error

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		var passthrough error

		result, err := g.breaker.Call(ctx, func(ctx context.Context) (any, error) {
			value, opErr := op(ctx)
			if opErr != nil && (types.IsCacheMiss(opErr) || errors.Is(opErr, types.ErrWriteQueueFull)) {
				passthrough = opErr
				return nil, nil
			}
			return value, opErr
		})

		if err == nil {
			if passthrough != nil {
				return nil, passthrough
			}
			return result.Value, nil
		}

		lastErr = err
		if types.IsCircuitOpen(err) || ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

// state reports the breaker state for health views.
func (g *storageGuard) state() resilience.State {
	return g.breaker.State()
}

func (g *storageGuard) open() bool {
	return g.breaker.IsOpen()
}
