// Package cache implements the two-tier entry store for upstream payloads:
// an in-process bigcache tier backed by a shared redis tier. Entries are
// stored as envelopes carrying their own TTL and write time, so freshness
// decisions survive tier-level eviction differences.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/config"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

const (
	// DefaultShutdownTimeout bounds how long Close waits for background
	// work to drain before the tiers are shut regardless.
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultBackgroundOpTimeout caps each tracked background operation.
	DefaultBackgroundOpTimeout = 5 * time.Second
)

// Lookup is a successful cache read. Data holds the payload exactly as the
// writer serialized it; Fresh and Stale partition the entry's position
// inside its TTL window.
type Lookup struct {
	Data      []byte
	WrittenAt time.Time
	Age       time.Duration
	Fresh     bool
	Stale     bool
}

// Stats is a point-in-time aggregate of tier counters and footprint.
type Stats struct {
	MemoryHits      int64
	MemoryMisses    int64
	MemoryEntries   int
	MemorySizeBytes int64
	MemoryMaxBytes  int64
	MemoryEvictions int64
	RedisHits       int64
	RedisMisses     int64
	RedisConnected  bool
	PendingWrites   int
	DroppedWrites   int64
	Errors          int64
	StorageBreaker  string
}

// Manager coordinates the memory and redis tiers under strategy-derived
// keys. Tier failures on the read path are downgraded to misses; the shared
// tier is additionally guarded by a dedicated storage breaker.
type Manager struct {
	memory         types.MemoryCacheLayer
	redis          types.RedisCacheLayer
	storage        *storageGuard
	codec          *envelopeCodec
	serializer     types.Serializer
	config         *config.Config
	metrics        types.MetricsRecorder
	logger         *slog.Logger
	keyValidator   *types.KeyValidator
	now            func() time.Time
	freshFraction  float64
	shutdownCancel context.CancelFunc
	shutdownCtx    context.Context
	sfGroup        singleflight.Group
	bgWg           sync.WaitGroup
	bgMu           sync.Mutex
	errors         atomic.Int64
	closed         atomic.Bool
}

// NewManager assembles both tiers from cfg and applies the overrides in
// opts. A nil opts is valid.
//
//nolint:gocyclo // one branch per override
func NewManager(cfg *config.Config, opts *types.ManagerOptions) (*Manager, error) {
	logger := slog.Default()
	if opts != nil && opts.Logger != nil {
		logger = AdaptLogger(opts.Logger)
	}
	logger = logger.With("component", "cache")

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	m := &Manager{
		config:         cfg,
		logger:         logger,
		now:            time.Now,
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}

	serializer, err := NewSerializer(cfg.Cache.Serializer)
	if err != nil {
		return nil, err
	}
	m.serializer = serializer

	disableResilience := false
	if opts != nil {
		if opts.Serializer != nil {
			m.serializer = opts.Serializer
		}
		if opts.Metrics != nil {
			m.metrics = opts.Metrics
		}
		if opts.Now != nil {
			m.now = opts.Now
		}
		if opts.RedisAddress != "" {
			cfg.Redis.Address = opts.RedisAddress
		}
		if !opts.RedisPassword.IsEmpty() {
			cfg.Redis.Password = opts.RedisPassword
		}
		if opts.RedisDB != 0 {
			cfg.Redis.DB = opts.RedisDB
		}
		if opts.DisableRedis {
			cfg.Redis.Enabled = false
		}
		disableResilience = opts.DisableResilience
	}

	m.freshFraction = cfg.Cache.FreshnessFraction
	if m.freshFraction <= 0 || m.freshFraction >= 1 {
		m.freshFraction = 0.8
	}

	m.codec = newEnvelopeCodec(m.serializer, cfg.Cache.CompressionThreshold, cfg.Cache.CompressionEnabled)

	if cfg.KeyValidation.Enabled {
		m.keyValidator = types.NewKeyValidator(cfg.KeyValidation.ToTypesConfig())
	}

	if cfg.Memory.Enabled {
		memCache, err := NewMemoryCache(cfg.Memory, logger)
		if err != nil {
			return nil, err
		}
		m.memory = memCache
	} else {
		m.memory = NewDisabledMemoryCache()
	}

	if cfg.Redis.Enabled {
		redisCache, err := NewRedisCache(cfg.Redis, logger)
		if err != nil {
			logger.Warn("Rejected redis config, continuing memory-only", "error", err)
			m.redis = NewDisabledRedisCache()
		} else {
			m.redis = redisCache
		}
	} else {
		m.redis = NewDisabledRedisCache()
	}

	if cfg.Breaker.Enabled && !disableResilience {
		m.storage = newStorageGuard(cfg, logger, m.metrics)
	}

	return m, nil
}

// Get retrieves the entry stored for dataset/identifier under the given
// strategy. Expired and undecodable entries count as misses and are purged
// best-effort. Tier failures also surface as misses, never as errors.
func (m *Manager) Get(ctx context.Context, dataset, identifier string, strategy types.Strategy, params map[string]any) (*Lookup, error) {
	if m.closed.Load() {
		return nil, types.ErrClosed
	}

	key, err := m.buildKey(dataset, identifier, strategy, params)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	blob, tier, err := m.read(ctx, key)
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordMiss(tier, key, time.Since(start))
		}
		return nil, err
	}

	look, ok := m.decodeLookup(blob, key)
	if !ok {
		if m.metrics != nil {
			m.metrics.RecordMiss(tier, key, time.Since(start))
		}
		return nil, types.ErrCacheMiss
	}

	if m.metrics != nil {
		m.metrics.RecordHit(tier, key, time.Since(start))
	}

	return look, nil
}

// read consults memory first, then redis. A redis hit backfills memory in a
// tracked background goroutine.
func (m *Manager) read(ctx context.Context, key string) ([]byte, string, error) {
	data, err := m.memory.Get(ctx, key)
	if err == nil {
		return data, "memory", nil
	}
	if !types.IsCacheMiss(err) {
		m.logger.Debug("Memory read failed", "key", key, "error", err)
		m.errors.Add(1)
		if m.metrics != nil {
			m.metrics.RecordError("memory", "Get", err)
		}
	}

	if !m.redis.IsAvailable() {
		return nil, "redis", types.ErrCacheMiss
	}

	data, err = m.readRedis(ctx, key)
	if err != nil {
		if !types.IsCacheMiss(err) {
			m.logger.Debug("Redis read failed, degrading to miss", "key", key, "error", err)
			m.errors.Add(1)
			if m.metrics != nil {
				m.metrics.RecordError("redis", "Get", err)
			}
		}
		return nil, "redis", types.ErrCacheMiss
	}

	m.runBackground(func(ctx context.Context) {
		if setErr := m.memory.Set(ctx, key, data, nil); setErr != nil {
			m.logger.Debug("Local backfill failed", "key", key, "error", setErr)
		}
	})

	return data, "redis", nil
}

func (m *Manager) readRedis(ctx context.Context, key string) ([]byte, error) {
	op := func(ctx context.Context) (any, error) {
		return m.redis.Get(ctx, key)
	}

	var (
		value any
		err   error
	)
	if m.storage == nil {
		value, err = op(ctx)
	} else {
		value, err = m.storage.do(ctx, op)
	}
	if err != nil {
		return nil, err
	}

	data, ok := value.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected result type: %T", value)
	}
	return data, nil
}

// decodeLookup decodes one stored blob and applies the expiry policy.
// Undecodable and expired entries are purged and reported absent.
func (m *Manager) decodeLookup(blob []byte, key string) (*Lookup, bool) {
	env, err := m.codec.decode(blob)
	if err != nil {
		m.logger.Warn("Discarding undecodable cache entry", "key", key, "error", err)
		m.errors.Add(1)
		if m.metrics != nil {
			m.metrics.RecordError("cache", "Decode", err)
		}
		m.purge(key)
		return nil, false
	}

	now := m.now()
	if env.expired(now) {
		m.purge(key)
		return nil, false
	}

	return m.lookupFrom(env, now), true
}

func (m *Manager) lookupFrom(env *envelope, now time.Time) *Lookup {
	fresh := env.fresh(now, m.freshFraction)
	return &Lookup{
		Data:      env.Data,
		WrittenAt: env.WrittenAt,
		Age:       env.age(now),
		Fresh:     fresh,
		Stale:     !fresh,
	}
}

// Set stores a payload for dataset/identifier under the given strategy.
// The write replaces any previous entry wholesale.
func (m *Manager) Set(ctx context.Context, dataset, identifier string, payload any, strategy types.Strategy, params map[string]any, opts ...types.Option) error {
	if m.closed.Load() {
		return types.ErrClosed
	}

	key, err := m.buildKey(dataset, identifier, strategy, params)
	if err != nil {
		return err
	}

	start := time.Now()
	options := m.applyDefaults(strategy, opts...)

	data, err := m.serializer.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrSerializationFailed, err)
	}

	blob, err := m.codec.encode(&envelope{
		Data:      data,
		WrittenAt: m.now(),
		Strategy:  strategy,
		Version:   strategy.VersionTag(),
		TTL:       options.TTL,
	})
	if err != nil {
		return err
	}

	var memErr, redisErr error

	if options.Level.IncludesMemory() && !options.SkipLocalCache {
		memErr = m.memory.Set(ctx, key, blob, options)
	}
	if options.Level.IncludesRedis() {
		redisErr = m.writeRedis(ctx, key, blob, options)
	}

	var setErr error
	switch options.Level {
	case types.LevelMemoryOnly:
		setErr = memErr
	case types.LevelRedisOnly:
		setErr = redisErr
	default:
		if memErr != nil {
			setErr = memErr
		} else if redisErr != nil && !options.FireAndForget {
			m.logger.Warn("Shared-tier write failed, entry is local only", "key", key, "error", redisErr)
		}
	}

	if m.metrics != nil {
		m.metrics.RecordSet(options.Level.String(), key, len(blob), time.Since(start))
	}

	return setErr
}

func (m *Manager) writeRedis(ctx context.Context, key string, blob []byte, opts *types.CacheOptions) error {
	if !m.redis.IsAvailable() && !opts.FireAndForget {
		return types.ErrRedisUnavailable
	}

	op := func(ctx context.Context) (any, error) {
		return nil, m.redis.Set(ctx, key, blob, opts)
	}

	var err error
	if m.storage == nil {
		_, err = op(ctx)
	} else {
		_, err = m.storage.do(ctx, op)
	}

	if err != nil && !errors.Is(err, types.ErrWriteQueueFull) {
		m.errors.Add(1)
		if m.metrics != nil {
			m.metrics.RecordError("redis", "Set", err)
		}
	}
	return err
}

// GetOrFetch returns the cached entry or, on a miss, produces it with fetch
// and stores it. Concurrent callers for the same key share one fetch.
func (m *Manager) GetOrFetch(ctx context.Context, dataset, identifier string, strategy types.Strategy, params map[string]any, fetch func() (any, error)) (*Lookup, error) {
	if m.closed.Load() {
		return nil, types.ErrClosed
	}

	look, err := m.Get(ctx, dataset, identifier, strategy, params)
	if err == nil {
		return look, nil
	}
	if !types.IsCacheMiss(err) {
		return nil, err
	}

	key, err := m.buildKey(dataset, identifier, strategy, params)
	if err != nil {
		return nil, err
	}

	result, err, _ := m.sfGroup.Do(key, func() (any, error) {
		// Another caller may have populated the entry while we waited.
		if look, checkErr := m.Get(ctx, dataset, identifier, strategy, params); checkErr == nil {
			return look, nil
		}

		value, fetchErr := fetch()
		if fetchErr != nil {
			return nil, fetchErr
		}

		data, marshalErr := m.serializer.Marshal(value)
		if marshalErr != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrSerializationFailed, marshalErr)
		}

		if setErr := m.Set(ctx, dataset, identifier, value, strategy, params); setErr != nil {
			m.logger.Debug("Failed to cache fetched value", "key", key, "error", setErr)
		}

		return &Lookup{
			Data:      data,
			WrittenAt: m.now(),
			Fresh:     true,
		}, nil
	})

	if err != nil {
		return nil, err
	}

	look, ok := result.(*Lookup)
	if !ok {
		return nil, fmt.Errorf("unexpected result type: %T", result)
	}
	return look, nil
}

// Delete removes one entry from both tiers.
func (m *Manager) Delete(ctx context.Context, dataset, identifier string, strategy types.Strategy, params map[string]any) error {
	if m.closed.Load() {
		return types.ErrClosed
	}

	key, err := m.buildKey(dataset, identifier, strategy, params)
	if err != nil {
		return err
	}

	start := time.Now()

	memErr := m.memory.Delete(ctx, key)
	var redisErr error
	if m.redis.IsAvailable() {
		redisErr = m.deleteRedis(ctx, key)
	}

	if m.metrics != nil {
		m.metrics.RecordDelete(types.LevelAll.String(), key, time.Since(start))
	}

	if memErr != nil {
		return memErr
	}
	return redisErr
}

func (m *Manager) deleteRedis(ctx context.Context, key string) error {
	op := func(ctx context.Context) (any, error) {
		return nil, m.redis.Delete(ctx, key)
	}

	var err error
	if m.storage == nil {
		_, err = op(ctx)
	} else {
		_, err = m.storage.do(ctx, op)
	}
	return err
}

// Contains reports whether either tier holds the key. Envelope expiry is not
// checked; a true result can still turn into a miss on Get.
func (m *Manager) Contains(ctx context.Context, dataset, identifier string, strategy types.Strategy, params map[string]any) (bool, error) {
	if m.closed.Load() {
		return false, types.ErrClosed
	}

	key, err := m.buildKey(dataset, identifier, strategy, params)
	if err != nil {
		return false, err
	}

	exists, memErr := m.memory.Contains(ctx, key)
	if memErr == nil && exists {
		return true, nil
	}

	if !m.redis.IsAvailable() {
		return false, nil
	}

	exists, redisErr := m.redis.Contains(ctx, key)
	if redisErr != nil {
		m.logger.Debug("Redis contains check failed", "key", key, "error", redisErr)
		return false, nil
	}
	return exists, nil
}

// GetMany reads several identifiers of one dataset in a single pass. Missing,
// expired, and undecodable entries are simply absent from the result.
// Parameterized keys are not batched.
func (m *Manager) GetMany(ctx context.Context, dataset string, identifiers []string, strategy types.Strategy, opts ...types.Option) (map[string]*Lookup, error) {
	if m.closed.Load() {
		return nil, types.ErrClosed
	}

	if len(identifiers) == 0 {
		return make(map[string]*Lookup), nil
	}

	if err := m.validateComponent(dataset); err != nil {
		return nil, err
	}

	options := m.applyDefaults(strategy, opts...)
	results := make(map[string]*Lookup, len(identifiers))
	keyToID := make(map[string]string, len(identifiers))
	var missing []string

	for _, id := range identifiers {
		if err := m.validateComponent(id); err != nil {
			return nil, err
		}
		key, err := BuildKey(dataset, id, strategy, nil)
		if err != nil {
			return nil, err
		}
		keyToID[key] = id

		if options.Level.IncludesMemory() {
			if blob, err := m.memory.Get(ctx, key); err == nil {
				if look, ok := m.decodeLookup(blob, key); ok {
					results[id] = look
					continue
				}
			}
		}
		missing = append(missing, key)
	}

	if len(missing) > 0 && options.Level.IncludesRedis() && m.redis.IsAvailable() {
		blobs, err := m.readRedisMany(ctx, missing)
		if err != nil {
			m.logger.Debug("Redis GetMany failed, degrading to partial result", "error", err)
		} else {
			for key, blob := range blobs {
				look, ok := m.decodeLookup(blob, key)
				if !ok {
					continue
				}
				results[keyToID[key]] = look

				m.runBackground(func(ctx context.Context) {
					if setErr := m.memory.Set(ctx, key, blob, nil); setErr != nil {
						m.logger.Debug("Local backfill failed", "key", key, "error", setErr)
					}
				})
			}
		}
	}

	return results, nil
}

func (m *Manager) readRedisMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	op := func(ctx context.Context) (any, error) {
		return m.redis.GetMany(ctx, keys)
	}

	var (
		value any
		err   error
	)
	if m.storage == nil {
		value, err = op(ctx)
	} else {
		value, err = m.storage.do(ctx, op)
	}
	if err != nil {
		return nil, err
	}

	blobs, ok := value.(map[string][]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected result type: %T", value)
	}
	return blobs, nil
}

// SetMany stores several identifiers of one dataset wholesale. Redis
// failures degrade to memory-only writes; memory failures are reported.
func (m *Manager) SetMany(ctx context.Context, dataset string, items map[string]any, strategy types.Strategy, opts ...types.Option) error {
	if m.closed.Load() {
		return types.ErrClosed
	}

	if len(items) == 0 {
		return nil
	}

	if err := m.validateComponent(dataset); err != nil {
		return err
	}

	options := m.applyDefaults(strategy, opts...)
	writtenAt := m.now()

	encoded := make(map[string][]byte, len(items))
	for id, payload := range items {
		if err := m.validateComponent(id); err != nil {
			return err
		}
		key, err := BuildKey(dataset, id, strategy, nil)
		if err != nil {
			return err
		}

		data, err := m.serializer.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%w: %v", types.ErrSerializationFailed, err)
		}

		blob, err := m.codec.encode(&envelope{
			Data:      data,
			WrittenAt: writtenAt,
			Strategy:  strategy,
			Version:   strategy.VersionTag(),
			TTL:       options.TTL,
		})
		if err != nil {
			return err
		}
		encoded[key] = blob
	}

	var memoryFailures int

	if options.Level.IncludesMemory() && !options.SkipLocalCache {
		for key, blob := range encoded {
			if err := m.memory.Set(ctx, key, blob, options); err != nil {
				memoryFailures++
				m.logger.Warn("Local tier rejected batch entry", "key", key, "error", err)
			}
		}
	}

	if options.Level.IncludesRedis() && m.redis.IsAvailable() {
		if err := m.writeRedisMany(ctx, encoded, options); err != nil {
			m.logger.Warn("Redis SetMany failed", "error", err, "keys_count", len(encoded))
		}
	}

	if memoryFailures > 0 {
		return types.NewCacheError("SetMany", "", "memory",
			fmt.Errorf("failed to set %d/%d keys", memoryFailures, len(items)))
	}

	return nil
}

func (m *Manager) writeRedisMany(ctx context.Context, items map[string][]byte, opts *types.CacheOptions) error {
	op := func(ctx context.Context) (any, error) {
		return nil, m.redis.SetMany(ctx, items, opts)
	}

	var err error
	if m.storage == nil {
		_, err = op(ctx)
	} else {
		_, err = m.storage.do(ctx, op)
	}
	if err != nil {
		m.errors.Add(1)
		if m.metrics != nil {
			m.metrics.RecordError("redis", "SetMany", err)
		}
	}
	return err
}

// Invalidate purges entries for a dataset from both tiers and returns how
// many were removed across them. An empty identifier widens the purge to the
// whole dataset; the strategy narrows it to a version-tagged keyspace where
// one exists.
func (m *Manager) Invalidate(ctx context.Context, dataset, identifier string, strategy types.Strategy) (int, error) {
	if m.closed.Load() {
		return 0, types.ErrClosed
	}

	if err := m.validateComponent(dataset); err != nil {
		return 0, err
	}
	if identifier != "" {
		if err := m.validateComponent(identifier); err != nil {
			return 0, err
		}
	}

	pattern := invalidationPattern(dataset, identifier, strategy)
	start := time.Now()

	total := 0
	var errs []error

	n, err := m.memory.ClearByPattern(ctx, pattern)
	total += n
	if err != nil {
		errs = append(errs, err)
	}

	if m.redis.IsAvailable() {
		n, err := m.redisClearByPattern(ctx, pattern)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}

	m.logger.Info("Invalidated cache entries",
		"pattern", pattern,
		"removed", total,
	)

	if m.metrics != nil {
		m.metrics.RecordDelete("pattern", pattern, time.Since(start))
	}

	return total, errors.Join(errs...)
}

func (m *Manager) redisClearByPattern(ctx context.Context, pattern string) (int, error) {
	op := func(ctx context.Context) (any, error) {
		return m.redis.ClearByPattern(ctx, pattern)
	}

	var (
		value any
		err   error
	)
	if m.storage == nil {
		value, err = op(ctx)
	} else {
		value, err = m.storage.do(ctx, op)
	}
	if err != nil {
		return 0, err
	}

	n, ok := value.(int)
	if !ok {
		return 0, fmt.Errorf("unexpected result type: %T", value)
	}
	return n, nil
}

// Clear wipes both tiers.
func (m *Manager) Clear(ctx context.Context) error {
	if m.closed.Load() {
		return types.ErrClosed
	}

	memErr := m.memory.Clear(ctx)
	var redisErr error
	if m.redis.IsAvailable() {
		redisErr = m.redis.Clear(ctx)
	}

	if memErr != nil {
		return memErr
	}
	return redisErr
}

// Health returns tier-by-tier health for the cache.
func (m *Manager) Health(ctx context.Context) (*types.HealthMetrics, error) {
	metrics := &types.HealthMetrics{
		Timestamp: time.Now(),
	}

	memStats := m.memory.Stats()
	metrics.Memory = types.MemoryHealthMetrics{
		Status:          types.HealthStatusHealthy,
		Available:       m.memory.IsAvailable(),
		EntryCount:      m.memory.EntryCount(),
		SizeBytes:       m.memory.Size(),
		MaxSizeBytes:    m.memory.MaxSize(),
		UsagePercentage: m.memory.UsagePercentage(),
		HitCount:        memStats.Hits,
		MissCount:       memStats.Misses,
		HitRatio:        m.memory.HitRatio(),
		EvictionCount:   memStats.Evictions,
	}
	if !m.memory.IsAvailable() {
		metrics.Memory.Status = types.HealthStatusCritical
	}

	breakerState := "disabled"
	if m.storage != nil {
		breakerState = m.storage.state().String()
	}

	redisHits, redisMisses := m.redis.Hits(), m.redis.Misses()
	metrics.Redis = types.RedisHealthMetrics{
		Status:        types.HealthStatusHealthy,
		Available:     m.redis.IsAvailable(),
		Connected:     m.redis.IsAvailable(),
		BreakerState:  breakerState,
		PendingWrites: m.redis.PendingWrites(),
		DroppedWrites: m.redis.DroppedWrites(),
		HitCount:      redisHits,
		MissCount:     redisMisses,
	}
	if total := redisHits + redisMisses; total > 0 {
		metrics.Redis.HitRatio = float64(redisHits) / float64(total)
	}
	if !m.redis.IsAvailable() {
		metrics.Redis.Status = types.HealthStatusDegraded
	}

	switch {
	case metrics.Memory.Status == types.HealthStatusHealthy && metrics.Redis.Status == types.HealthStatusHealthy:
		metrics.Status = types.HealthStatusHealthy
	case metrics.Memory.Status == types.HealthStatusHealthy:
		metrics.Status = types.HealthStatusDegraded
	default:
		metrics.Status = types.HealthStatusCritical
	}

	return metrics, nil
}

// Stats returns aggregate counters across both tiers.
func (m *Manager) Stats() Stats {
	memStats := m.memory.Stats()

	breakerState := "disabled"
	if m.storage != nil {
		breakerState = m.storage.state().String()
	}

	return Stats{
		MemoryHits:      memStats.Hits,
		MemoryMisses:    memStats.Misses,
		MemoryEntries:   m.memory.EntryCount(),
		MemorySizeBytes: m.memory.Size(),
		MemoryMaxBytes:  m.memory.MaxSize(),
		MemoryEvictions: memStats.Evictions,
		RedisHits:       m.redis.Hits(),
		RedisMisses:     m.redis.Misses(),
		RedisConnected:  m.redis.IsAvailable(),
		PendingWrites:   m.redis.PendingWrites(),
		DroppedWrites:   m.redis.DroppedWrites(),
		Errors:          m.errors.Load(),
		StorageBreaker:  breakerState,
	}
}

// Decode unmarshals payload bytes from a Lookup into dest using the
// manager's serializer.
func (m *Manager) Decode(data []byte, dest any) error {
	return m.serializer.Unmarshal(data, dest)
}

// Encode marshals a payload with the manager's serializer.
func (m *Manager) Encode(payload any) ([]byte, error) {
	data, err := m.serializer.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSerializationFailed, err)
	}
	return data, nil
}

// Peek retrieves the entry stored under an already built key. Freshness is
// not considered; any unexpired, decodable entry is returned.
func (m *Manager) Peek(ctx context.Context, key string) (*Lookup, bool) {
	if m.closed.Load() {
		return nil, false
	}

	blob, _, err := m.read(ctx, key)
	if err != nil {
		return nil, false
	}
	return m.decodeLookup(blob, key)
}

// IsHealthy reports whether the cache can still serve from its local tier.
func (m *Manager) IsHealthy(ctx context.Context) bool {
	return m.memory.IsAvailable()
}

// IsRedisAvailable returns true if the shared tier is connected and its
// breaker admits traffic.
func (m *Manager) IsRedisAvailable() bool {
	return m.redis.IsAvailable() && (m.storage == nil || !m.storage.open())
}

// IsMemoryAvailable returns true if the memory tier is available.
func (m *Manager) IsMemoryAvailable() bool {
	return m.memory.IsAvailable()
}

// RedisClient exposes the redis tier's connection pool, or nil when the tier
// is disabled. The breaker snapshot store shares this pool.
func (m *Manager) RedisClient() *redis.Client {
	if rc, ok := m.redis.(*RedisCache); ok {
		return rc.Client()
	}
	return nil
}

// Close shuts the manager down with DefaultShutdownTimeout.
func (m *Manager) Close() error {
	return m.CloseWithTimeout(DefaultShutdownTimeout)
}

// CloseWithTimeout stops accepting work, waits up to timeout for background
// operations to drain, then closes both tiers. On a blown timeout the tiers
// still close and ErrShutdownTimeout joins the result.
func (m *Manager) CloseWithTimeout(timeout time.Duration) error {
	// Flipping closed under bgMu orders this against runBackground: no
	// WaitGroup Add can slip in once the Wait below has started.
	m.bgMu.Lock()
	if m.closed.Swap(true) {
		m.bgMu.Unlock()
		return nil
	}
	m.shutdownCancel()
	m.bgMu.Unlock()

	m.logger.Info("Draining cache background work", "timeout", timeout)

	drained := make(chan struct{})
	go func() {
		m.bgWg.Wait()
		close(drained)
	}()

	var errs []error
	select {
	case <-drained:
	case <-time.After(timeout):
		m.logger.Warn("Cache shutdown timed out, closing tiers anyway", "timeout", timeout)
		errs = append(errs, types.ErrShutdownTimeout)
	}

	if err := m.memory.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := m.redis.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// runBackground runs fn on a tracked goroutine with a capped context so
// shutdown can drain it. After close it is a no-op.
func (m *Manager) runBackground(fn func(ctx context.Context)) {
	// Check closed and Add under bgMu so CloseWithTimeout cannot start
	// waiting between the two.
	m.bgMu.Lock()
	if m.closed.Load() {
		m.bgMu.Unlock()
		return
	}
	m.bgWg.Add(1)
	m.bgMu.Unlock()

	go func() {
		defer m.bgWg.Done()
		ctx, cancel := context.WithTimeout(m.shutdownCtx, DefaultBackgroundOpTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// purge drops a key from both tiers in the background. Used for entries that
// turned out expired or undecodable at read time.
func (m *Manager) purge(key string) {
	m.runBackground(func(ctx context.Context) {
		if err := m.memory.Delete(ctx, key); err != nil {
			m.logger.Debug("Purge from memory failed", "key", key, "error", err)
		}
		if m.redis.IsAvailable() {
			if err := m.redis.Delete(ctx, key); err != nil {
				m.logger.Debug("Purge from redis failed", "key", key, "error", err)
			}
		}
	})
}

func (m *Manager) buildKey(dataset, identifier string, strategy types.Strategy, params map[string]any) (string, error) {
	if err := m.validateComponent(dataset); err != nil {
		return "", err
	}
	if err := m.validateComponent(identifier); err != nil {
		return "", err
	}
	if !strategy.Valid() {
		return "", fmt.Errorf("%w: invalid strategy %d", types.ErrInvalidConfig, int(strategy))
	}
	return BuildKey(dataset, identifier, strategy, params)
}

func (m *Manager) validateComponent(component string) error {
	if m.keyValidator == nil {
		return nil
	}
	return m.keyValidator.Validate(component)
}

func (m *Manager) applyDefaults(strategy types.Strategy, opts ...types.Option) *types.CacheOptions {
	options := types.ApplyOptions(opts...)

	if options.TTL == 0 {
		options.TTL = m.config.Cache.Strategies.TTLFor(strategy)
	}

	if options.Level == 0 {
		options.Level = parseCacheLevel(m.config.Defaults.Level)
	}

	if m.config.Defaults.FireAndForget && !options.FireAndForget {
		options.FireAndForget = true
	}

	return options
}

func parseCacheLevel(s string) types.CacheLevel {
	switch s {
	case "memory-only":
		return types.LevelMemoryOnly
	case "redis-only":
		return types.LevelRedisOnly
	case "memory-then-redis":
		return types.LevelMemoryThenRedis
	case "all":
		return types.LevelAll
	default:
		return types.LevelMemoryThenRedis
	}
}

// AdaptLogger wraps a caller-provided types.Logger as a *slog.Logger so it
// can flow into the slog-based tiers.
func AdaptLogger(logger types.Logger) *slog.Logger {
	return slog.New(&loggerBridge{sink: logger})
}

// loggerBridge funnels slog records into a types.Logger. Attrs bound via
// WithAttrs are flattened to key/value args once, up front; record attrs
// are converted per call.
type loggerBridge struct {
	bound []any
	sink  types.Logger
	group string
}

func (b *loggerBridge) Enabled(context.Context, slog.Level) bool { return true }

//nolint:gocritic // Record arrives by value per slog.Handler
func (b *loggerBridge) Handle(_ context.Context, r slog.Record) error {
	args := make([]any, len(b.bound), len(b.bound)+2*r.NumAttrs())
	copy(args, b.bound)
	r.Attrs(func(attr slog.Attr) bool {
		args = append(args, b.qualify(attr.Key), attr.Value.Any())
		return true
	})

	switch {
	case r.Level >= slog.LevelError:
		b.sink.Error(r.Message, args...)
	case r.Level >= slog.LevelWarn:
		b.sink.Warn(r.Message, args...)
	case r.Level >= slog.LevelInfo:
		b.sink.Info(r.Message, args...)
	default:
		b.sink.Debug(r.Message, args...)
	}
	return nil
}

func (b *loggerBridge) qualify(key string) string {
	if b.group == "" {
		return key
	}
	return b.group + "." + key
}

func (b *loggerBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *b
	next.bound = make([]any, len(b.bound), len(b.bound)+2*len(attrs))
	copy(next.bound, b.bound)
	for _, attr := range attrs {
		next.bound = append(next.bound, b.qualify(attr.Key), attr.Value.Any())
	}
	return &next
}

func (b *loggerBridge) WithGroup(name string) slog.Handler {
	next := *b
	next.group = b.qualify(name)
	return &next
}
