package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/allegro/bigcache/v3"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/config"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

// tierCounters is the per-tier hit accounting both cache tiers keep.
type tierCounters struct {
	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	deletes   atomic.Int64
	evictions atomic.Int64
}

// MemoryCache is the in-process tier, backed by BigCache. BigCache expires
// whole life windows rather than single entries, so its window is only an
// eviction hint; whether an entry is still servable is decided by the
// envelope TTL at read time.
type MemoryCache struct {
	cache  *bigcache.BigCache
	config config.MemoryConfig
	logger *slog.Logger

	stats  tierCounters
	closed atomic.Bool
}

// NewMemoryCache builds the local tier from config.
func NewMemoryCache(cfg config.MemoryConfig, logger *slog.Logger) (*MemoryCache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mc := &MemoryCache{
		config: cfg,
		logger: logger.With("component", "local-tier"),
	}

	bc, err := bigcache.New(context.Background(), bigcache.Config{
		Shards:      cfg.Shards,
		LifeWindow:  cfg.DefaultTTL,
		CleanWindow: cfg.CleanupInterval,
		// Sizing hint only; shards grow past it under load.
		MaxEntriesInWindow: 600_000,
		MaxEntrySize:       cfg.MaxEntrySize,
		HardMaxCacheSize:   cfg.MaxSizeMB,
		Verbose:            false,
		Logger:             bcLogger{mc.logger},
		OnRemoveWithReason: func(key string, entry []byte, reason bigcache.RemoveReason) {
			if reason == bigcache.NoSpace || reason == bigcache.Expired {
				mc.stats.evictions.Add(1)
			}
		},
	})
	if err != nil {
		return nil, err
	}

	mc.cache = bc
	return mc, nil
}

func (c *MemoryCache) Name() string { return "memory" }

func (c *MemoryCache) IsAvailable() bool { return !c.closed.Load() }

// Get returns the stored envelope bytes for a key.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, types.ErrClosed
	}

	blob, err := c.cache.Get(key)
	switch {
	case err == nil:
		c.stats.hits.Add(1)
		return blob, nil
	case errors.Is(err, bigcache.ErrEntryNotFound):
		c.stats.misses.Add(1)
		return nil, types.ErrCacheMiss
	default:
		return nil, types.NewCacheError("Get", key, "memory", err)
	}
}

// Set stores envelope bytes. Entries beyond MaxEntrySize are skipped rather
// than stored, so one oversized provider payload cannot churn the whole
// tier; the shared tier still holds it. Per-entry TTLs are not supported
// here, opts exists for symmetry with the redis tier.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, opts *types.CacheOptions) error {
	if c.closed.Load() {
		return types.ErrClosed
	}

	if c.config.MaxEntrySize > 0 && len(value) > c.config.MaxEntrySize {
		c.logger.Debug("Payload too large for the local tier, skipping",
			"key", key,
			"size", len(value),
			"limit", c.config.MaxEntrySize)
		return nil
	}

	if err := c.cache.Set(key, value); err != nil {
		return types.NewCacheError("Set", key, "memory", err)
	}

	c.stats.sets.Add(1)
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	if c.closed.Load() {
		return types.ErrClosed
	}

	if err := c.cache.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		return types.NewCacheError("Delete", key, "memory", err)
	}

	c.stats.deletes.Add(1)
	return nil
}

// Contains reports presence without counting a hit or a miss.
func (c *MemoryCache) Contains(ctx context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, types.ErrClosed
	}

	if _, err := c.cache.Get(key); err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return false, nil
		}
		return false, types.NewCacheError("Contains", key, "memory", err)
	}
	return true, nil
}

// Clear drops every entry.
func (c *MemoryCache) Clear(ctx context.Context) error {
	if c.closed.Load() {
		return types.ErrClosed
	}
	return c.cache.Reset()
}

// ClearByPattern walks the tier and removes matching keys, reporting how
// many went away. BigCache has no native scan-by-pattern, so this iterates
// every entry; invalidation is rare enough for that to be fine.
func (c *MemoryCache) ClearByPattern(ctx context.Context, pattern string) (int, error) {
	if c.closed.Load() {
		return 0, types.ErrClosed
	}

	var matched []string
	iter := c.cache.Iterator()
	for iter.SetNext() {
		entry, err := iter.Value()
		if err != nil {
			continue
		}
		if globMatch(entry.Key(), pattern) {
			matched = append(matched, entry.Key())
		}
	}

	for _, key := range matched {
		_ = c.cache.Delete(key)
	}

	c.logger.Debug("Purged local tier keys",
		"pattern", pattern,
		"deleted", len(matched))
	return len(matched), nil
}

func (c *MemoryCache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.cache.Close()
}

// Stats returns the tier's counters.
func (c *MemoryCache) Stats() types.MemoryCacheStats {
	return types.MemoryCacheStats{
		Hits:      c.stats.hits.Load(),
		Misses:    c.stats.misses.Load(),
		Sets:      c.stats.sets.Load(),
		Deletes:   c.stats.deletes.Load(),
		Evictions: c.stats.evictions.Load(),
	}
}

func (c *MemoryCache) EntryCount() int { return c.cache.Len() }

// Size is the allocated footprint in bytes, which BigCache reports as
// capacity rather than live bytes.
func (c *MemoryCache) Size() int64 { return int64(c.cache.Capacity()) }

func (c *MemoryCache) MaxSize() int64 { return int64(c.config.MaxSizeMB) << 20 }

func (c *MemoryCache) UsagePercentage() float64 {
	limit := c.MaxSize()
	if limit == 0 {
		return 0
	}
	return float64(c.Size()) / float64(limit) * 100
}

func (c *MemoryCache) HitRatio() float64 {
	hits, misses := c.stats.hits.Load(), c.stats.misses.Load()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// globMatch supports the single-star patterns invalidation produces:
// exact, prefix*, *suffix, and prefix*suffix.
func globMatch(key, pattern string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasSuffix(pattern, "*") && !strings.HasPrefix(pattern, "*") && strings.Count(pattern, "*") == 1:
		return strings.HasPrefix(key, pattern[:len(pattern)-1])
	case strings.HasPrefix(pattern, "*") && strings.Count(pattern, "*") == 1:
		return strings.HasSuffix(key, pattern[1:])
	case strings.Contains(pattern, "*"):
		parts := strings.SplitN(pattern, "*", 3)
		if len(parts) == 2 {
			return strings.HasPrefix(key, parts[0]) && strings.HasSuffix(key, parts[1])
		}
		return false
	default:
		return key == pattern
	}
}

type bcLogger struct {
	logger *slog.Logger
}

func (l bcLogger) Printf(format string, args ...any) {
	l.logger.Debug("bigcache: " + fmt.Sprintf(format, args...))
}

var _ types.MemoryCacheLayer = (*MemoryCache)(nil)
