package cache

import (
	"context"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

// DisabledMemoryCache stands in for the local tier when it is turned off.
// Reads miss, writes vanish, gauges read zero.
type DisabledMemoryCache struct{}

func NewDisabledMemoryCache() *DisabledMemoryCache { return &DisabledMemoryCache{} }

func (d *DisabledMemoryCache) Name() string { return "memory-disabled" }

func (d *DisabledMemoryCache) IsAvailable() bool { return false }

func (d *DisabledMemoryCache) Close() error { return nil }

func (d *DisabledMemoryCache) EntryCount() int { return 0 }

func (d *DisabledMemoryCache) Size() int64 { return 0 }

func (d *DisabledMemoryCache) MaxSize() int64 { return 0 }

func (d *DisabledMemoryCache) UsagePercentage() float64 { return 0 }

func (d *DisabledMemoryCache) HitRatio() float64 { return 0 }

func (d *DisabledMemoryCache) Stats() types.MemoryCacheStats { return types.MemoryCacheStats{} }

func (d *DisabledMemoryCache) Clear(ctx context.Context) error { return nil }

func (d *DisabledMemoryCache) ClearByPattern(ctx context.Context, pattern string) (int, error) {
	return 0, nil
}

func (d *DisabledMemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, types.ErrCacheMiss
}

func (d *DisabledMemoryCache) Set(ctx context.Context, key string, value []byte, opts *types.CacheOptions) error {
	return nil
}

func (d *DisabledMemoryCache) Delete(ctx context.Context, key string) error { return nil }

func (d *DisabledMemoryCache) Contains(ctx context.Context, key string) (bool, error) {
	return false, nil
}

// DisabledRedisCache stands in for the shared tier when Redis is turned off.
// Get reports the tier as unavailable so the manager falls through without
// treating it as a miss worth counting.
type DisabledRedisCache struct{}

func NewDisabledRedisCache() *DisabledRedisCache { return &DisabledRedisCache{} }

func (d *DisabledRedisCache) Name() string { return "redis-disabled" }

func (d *DisabledRedisCache) IsAvailable() bool { return false }

func (d *DisabledRedisCache) Close() error { return nil }

func (d *DisabledRedisCache) PendingWrites() int { return 0 }

func (d *DisabledRedisCache) DroppedWrites() int64 { return 0 }

func (d *DisabledRedisCache) Hits() int64 { return 0 }

func (d *DisabledRedisCache) Misses() int64 { return 0 }

func (d *DisabledRedisCache) Clear(ctx context.Context) error { return nil }

func (d *DisabledRedisCache) ClearByPattern(ctx context.Context, pattern string) (int, error) {
	return 0, nil
}

func (d *DisabledRedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, types.ErrRedisUnavailable
}

func (d *DisabledRedisCache) Set(ctx context.Context, key string, value []byte, opts *types.CacheOptions) error {
	return nil
}

func (d *DisabledRedisCache) Delete(ctx context.Context, key string) error { return nil }

func (d *DisabledRedisCache) Contains(ctx context.Context, key string) (bool, error) {
	return false, nil
}

func (d *DisabledRedisCache) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	return make(map[string][]byte), nil
}

func (d *DisabledRedisCache) SetMany(ctx context.Context, items map[string][]byte, opts *types.CacheOptions) error {
	return nil
}

var (
	_ types.MemoryCacheLayer = (*DisabledMemoryCache)(nil)
	_ types.RedisCacheLayer  = (*DisabledRedisCache)(nil)
)
