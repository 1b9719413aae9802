package access

import (
	"context"
	"maps"
	"time"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/cache"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/metrics"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/retry"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

// refreshBudget bounds one background refresh. It covers the full retry
// schedule of a slow upstream, not just a single attempt.
const refreshBudget = 30 * time.Second

// RefreshHook is invoked when a stale cache hit is served, giving the caller
// a chance to repopulate the entry. ctx is the serving call's context and is
// canceled once that call returns; req is only valid for the duration of the
// hook. Implementations that defer the work must copy the request and use
// their own context.
type RefreshHook func(ctx context.Context, dependency string, req *Request)

// SetRefreshHook replaces what happens after a stale hit. Passing nil
// restores the default hook, which re-runs the operation through the full
// protection chain in a tracked background goroutine.
func (f *Facade) SetRefreshHook(hook RefreshHook) {
	f.hookMu.Lock()
	if hook == nil {
		hook = f.backgroundRefresh
	}
	f.refresh = hook
	f.hookMu.Unlock()
}

func (f *Facade) scheduleRefresh(ctx context.Context, dependencyName string, req *Request) {
	f.hookMu.RLock()
	hook := f.refresh
	f.hookMu.RUnlock()

	if hook != nil {
		hook(ctx, dependencyName, req)
	}
}

// backgroundRefresh is the default refresh hook. It copies the request and
// re-runs it in a goroutine tied to facade shutdown, deduplicated so
// concurrent stale hits on one key trigger a single upstream call.
func (f *Facade) backgroundRefresh(_ context.Context, dependencyName string, req *Request) {
	r := *req
	r.Params = maps.Clone(req.Params)

	f.runBackground(func(ctx context.Context) {
		f.refreshNow(ctx, dependencyName, &r)
	})
}

// refreshNow runs one deduplicated refresh. Only live answers are written
// back; a fallback value never overwrites stale real data. Refresh failures
// are logged and otherwise dropped, the stale entry keeps serving.
func (f *Facade) refreshNow(ctx context.Context, dependencyName string, req *Request) {
	dep, err := f.dependency(dependencyName)
	if err != nil {
		return
	}

	key, err := cache.BuildKey(req.Dataset, req.Identifier, dep.strategy, req.Params)
	if err != nil {
		return
	}

	_, err, _ = f.refreshGroup.Do(key, func() (any, error) {
		timer := metrics.NewTimer(f.publisher, "refresh.duration", metrics.DependencyTag(dependencyName))
		defer timer.Stop()

		outcome, err := f.protect(ctx, dep, req)
		if err != nil {
			return nil, err
		}
		if outcome.Source == retry.SourceLive {
			f.writeBack(ctx, dep, req, outcome.Value, types.QualityLive)
		}
		return nil, nil
	})
	if err != nil {
		f.logger.Debug("Background refresh failed",
			"dependency", dependencyName,
			"dataset", req.Dataset,
			"identifier", req.Identifier,
			"error", err)
	}
}
