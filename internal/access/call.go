package access

import (
	"context"
	"fmt"
	"time"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/cache"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/retry"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

// Request describes one upstream access. Dataset, Identifier, and Params
// locate the cache entry the answer lives under; Op produces the live value
// when the cache cannot.
type Request struct {
	Dataset    string
	Identifier string

	// Params distinguish variants of the same identifier. They are hashed
	// into the cache key.
	Params map[string]any

	// Operation names the call in logs and the error journal. Defaults to
	// the dataset name.
	Operation string

	// Op produces the live value.
	Op types.Operation

	// Alternative supplies a substitute operation for this call only. It
	// engages the alternative fallback when the dependency has none
	// configured, and replaces the registered alternative otherwise.
	Alternative types.Operation

	// TTL overrides the strategy TTL when a live answer is written back.
	TTL time.Duration

	// SkipCache bypasses both the cache read and the write-back.
	SkipCache bool
}

func (r *Request) operationName() string {
	if r.Operation != "" {
		return r.Operation
	}
	if r.Dataset != "" {
		return r.Dataset
	}
	return "call"
}

// Result reports where a call's answer came from.
type Result struct {
	// Quality grades the answer.
	Quality types.Quality

	// Degraded is true for every answer other than a live value or a fresh
	// cache hit.
	Degraded bool

	// FetchedAt is when the answer was originally produced.
	FetchedAt time.Time

	// Attempts counts live operation invocations. Zero for cache hits.
	Attempts int

	// Source names the producing path: live, cache, default, alternative,
	// or degraded.
	Source string
}

// Call runs one resilient access against a registered dependency and decodes
// the answer into dest. The cache is consulted first: a fresh hit returns
// immediately, a stale hit returns immediately while a refresh is scheduled
// in the background. Otherwise the operation runs behind the dependency's
// bulkhead, retry policy, and circuit breaker, and a live answer is written
// back to the cache. The returned Result grades the answer either way.
func (f *Facade) Call(ctx context.Context, dependencyName string, req *Request, dest any) (*Result, error) {
	if f.closed.Load() {
		return nil, types.ErrClosed
	}
	if req == nil || req.Op == nil {
		return nil, fmt.Errorf("%w: call needs an operation", types.ErrInvalidConfig)
	}

	dep, err := f.dependency(dependencyName)
	if err != nil {
		return nil, err
	}

	f.calls.Add(1)
	start := time.Now()

	if !req.SkipCache {
		if res, done := f.fromCache(ctx, dep, req, dest); done {
			f.recordCall(dep, res, start)
			return res, nil
		}
	}

	outcome, err := f.protect(ctx, dep, req)
	if err != nil {
		return nil, err
	}

	res, err := f.finish(ctx, dep, req, outcome, dest)
	if err != nil {
		return nil, err
	}
	f.recordCall(dep, res, start)
	return res, nil
}

// fromCache tries to answer from the cache tiers. The second return reports
// whether the call is done; a miss, a read failure, or an undecodable
// payload all fall through to the live path.
func (f *Facade) fromCache(ctx context.Context, dep *dependency, req *Request, dest any) (*Result, bool) {
	look, err := f.cache.Get(ctx, req.Dataset, req.Identifier, dep.strategy, req.Params)
	if err != nil {
		if !types.IsCacheMiss(err) {
			f.logger.Warn("Cache read failed, falling through to live call",
				"dependency", dep.name,
				"dataset", req.Dataset,
				"error", err)
		}
		return nil, false
	}

	if err := f.decodeInto(look.Data, dest); err != nil {
		f.logger.Warn("Cached payload would not decode, falling through to live call",
			"dependency", dep.name,
			"dataset", req.Dataset,
			"error", err)
		return nil, false
	}

	if look.Fresh {
		return &Result{
			Quality:   types.QualityCachedFresh,
			FetchedAt: look.WrittenAt,
			Source:    "cache",
		}, true
	}

	f.scheduleRefresh(ctx, dep.name, req)
	return &Result{
		Quality:   types.QualityCachedStale,
		Degraded:  true,
		FetchedAt: look.WrittenAt,
		Source:    "cache",
	}, true
}

// decodeInto decodes a cached blob into dest. A nil dest is allowed for
// callers that only want the quality signal.
func (f *Facade) decodeInto(data []byte, dest any) error {
	if dest == nil {
		return nil
	}
	return f.cache.Decode(data, dest)
}

// protect runs the live operation behind the dependency's bulkhead, retry
// policy, and breaker.
func (f *Facade) protect(ctx context.Context, dep *dependency, req *Request) (retry.Outcome, error) {
	rreq := retry.Request{
		Operation: req.operationName(),
		Component: dep.name,
		Policy:    dep.policy,
		Fallback:  f.fallbackFor(dep, req),
		Op: func(ctx context.Context) (any, error) {
			res, err := dep.guard.Call(ctx, req.Op)
			if err != nil {
				return nil, err
			}
			return res.Value, nil
		},
	}

	value, err := dep.bulkhead.ExecuteWithResult(ctx, func(ctx context.Context) (any, error) {
		return f.orch.Execute(ctx, rreq)
	})
	if err != nil {
		return retry.Outcome{}, err
	}

	outcome, ok := value.(retry.Outcome)
	if !ok {
		return retry.Outcome{}, fmt.Errorf("upstream: unexpected orchestrator result %T", value)
	}
	return outcome, nil
}

// fallbackFor resolves the fallback for one call. Cache fallbacks look under
// the request's own key, so the most recent write for this exact request is
// what gets served.
func (f *Facade) fallbackFor(dep *dependency, req *Request) *retry.Fallback {
	fb := dep.fallback
	if fb == nil {
		if req.Alternative == nil {
			return nil
		}
		return &retry.Fallback{Strategy: types.FallbackAlternative, Alternative: req.Alternative}
	}

	resolved := *fb
	if req.Alternative != nil {
		resolved.Alternative = req.Alternative
	}
	if resolved.Strategy == types.FallbackCache && !req.SkipCache {
		if key, err := cache.BuildKey(req.Dataset, req.Identifier, dep.strategy, req.Params); err == nil {
			resolved.CacheKey = key
		}
	}
	return &resolved
}

// finish grades an orchestrator outcome, decodes the answer into dest, and
// writes it back to the cache. Live answers take the strategy TTL; fallback
// answers take the short degraded TTL so the next caller retries the
// upstream soon.
func (f *Facade) finish(ctx context.Context, dep *dependency, req *Request, outcome retry.Outcome, dest any) (*Result, error) {
	res := &Result{
		Attempts:  outcome.Attempts,
		Source:    outcome.Source.String(),
		FetchedAt: f.now(),
	}
	value := outcome.Value

	switch outcome.Source {
	case retry.SourceLive:
		res.Quality = types.QualityLive

	case retry.SourceCache:
		res.Quality = types.QualityCachedStale
		res.Degraded = true
		look, ok := value.(*cache.Lookup)
		if !ok {
			return nil, fmt.Errorf("upstream: unexpected cache fallback payload %T", value)
		}
		res.FetchedAt = look.WrittenAt
		if err := f.decodeInto(look.Data, dest); err != nil {
			return nil, err
		}
		return res, nil

	case retry.SourceDefault:
		res.Quality = types.QualityFallbackDefault
		res.Degraded = true

	case retry.SourceAlternative:
		res.Quality = types.QualityFallbackDegraded
		res.Degraded = true

	case retry.SourceDegraded:
		res.Quality = types.QualityFallbackDegraded
		res.Degraded = true
		if dp, ok := value.(types.DegradedPayload); ok {
			res.FetchedAt = dp.Timestamp
			value = dp.Value
		}
	}

	if err := f.deliver(value, dest); err != nil {
		return nil, err
	}
	f.writeBack(ctx, dep, req, value, res.Quality)
	return res, nil
}

// deliver round-trips a value through the serializer into dest so live and
// cached answers decode identically.
func (f *Facade) deliver(value, dest any) error {
	if dest == nil || value == nil {
		return nil
	}
	blob, err := f.cache.Encode(value)
	if err != nil {
		return err
	}
	return f.cache.Decode(blob, dest)
}

func (f *Facade) writeBack(ctx context.Context, dep *dependency, req *Request, value any, quality types.Quality) {
	if req.SkipCache || value == nil {
		return
	}

	// The memory write is synchronous; the redis leg rides the write-behind
	// queue so a slow shared tier never delays answer delivery.
	opts := []types.Option{types.WithFireAndForget()}
	if quality == types.QualityLive {
		if req.TTL > 0 {
			opts = append(opts, types.WithTTL(req.TTL))
		}
	} else {
		opts = append(opts, types.WithTTL(dep.degradedTTL))
	}

	if err := f.cache.Set(ctx, req.Dataset, req.Identifier, value, dep.strategy, req.Params, opts...); err != nil {
		f.logger.Warn("Cache write-back failed",
			"dependency", dep.name,
			"dataset", req.Dataset,
			"error", err)
	}
}

func (f *Facade) recordCall(dep *dependency, res *Result, start time.Time) {
	f.recorder.RecordCall(dep.name, res.Quality.String(), time.Since(start))
}
