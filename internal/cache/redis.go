package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/config"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

// offlineAfter is how many straight command failures it takes before the
// tier stops accepting traffic and waits for the prober to bring it back.
const offlineAfter = 5

// flushTimeout bounds a single queued write against a slow server.
const flushTimeout = 2 * time.Second

// RedisCache is the shared tier. Every API instance points at the same
// server, so a payload fetched by one instance answers the next instance's
// miss. The tier is allowed to be down: callers treat every error here as a
// miss, and a background prober re-admits the server once it answers pings
// again.
type RedisCache struct {
	client *redis.Client
	config config.RedisConfig
	logger *slog.Logger

	connected atomic.Bool
	faults    atomic.Int64

	// queue carries fire-and-forget writes so a caller never waits on the
	// shared tier. Overflow is dropped and counted, not blocked on.
	queue   chan queuedWrite
	pending atomic.Int32
	dropped atomic.Int64

	stop chan struct{}
	wg   sync.WaitGroup

	stats tierCounters
}

type queuedWrite struct {
	key  string
	blob []byte
	ttl  time.Duration
}

// NewRedisCache dials the shared tier. An unreachable server is not an
// error; the tier starts offline and the prober keeps trying.
func NewRedisCache(cfg config.RedisConfig, logger *slog.Logger) (*RedisCache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password.Value(),
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
	}
	if cfg.EnableTLS {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: cfg.TLSSkipVerify}
		if cfg.TLSSkipVerify {
			logger.Warn("Redis TLS verification disabled, do not run this against production")
		}
	}

	rc := &RedisCache{
		client: redis.NewClient(opts),
		config: cfg,
		logger: logger.With("component", "shared-tier"),
		queue:  make(chan queuedWrite, cfg.MaxPendingWrites),
		stop:   make(chan struct{}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := rc.client.Ping(ctx).Err(); err != nil {
		rc.logger.Warn("Shared tier unreachable at startup, continuing without it", "error", err)
	} else {
		rc.connected.Store(true)
		rc.logger.Info("Shared tier connected", "address", cfg.Address)
	}

	rc.wg.Add(1)
	go rc.writeBehindLoop()

	if cfg.HealthCheckInterval > 0 {
		rc.wg.Add(1)
		go rc.probeLoop()
	}

	return rc, nil
}

func (c *RedisCache) Name() string { return "redis" }

func (c *RedisCache) IsAvailable() bool { return c.connected.Load() }

// Client exposes the underlying connection pool so the breaker snapshot
// store can share it instead of dialing its own.
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

func (c *RedisCache) fullKey(key string) string {
	return c.config.KeyPrefix + key
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	if !c.connected.Load() {
		return nil, types.ErrRedisUnavailable
	}

	blob, err := c.client.Get(ctx, c.fullKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.stats.misses.Add(1)
			return nil, types.ErrCacheMiss
		}
		c.noteFailure(err)
		return nil, types.NewCacheError("Get", key, "redis", err)
	}

	c.stats.hits.Add(1)
	c.noteSuccess()
	return blob, nil
}

// GetMany fetches a batch in one MGET round trip. Keys the server does not
// hold are simply absent from the result.
func (c *RedisCache) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	if !c.connected.Load() {
		return nil, types.ErrRedisUnavailable
	}
	if len(keys) == 0 {
		return make(map[string][]byte), nil
	}

	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = c.fullKey(key)
	}

	values, err := c.client.MGet(ctx, full...).Result()
	if err != nil {
		c.noteFailure(err)
		return nil, types.NewCacheError("GetMany", "", "redis", err)
	}

	found := make(map[string][]byte, len(keys))
	for i, v := range values {
		if v == nil {
			c.stats.misses.Add(1)
			continue
		}
		if s, ok := v.(string); ok {
			found[keys[i]] = []byte(s)
			c.stats.hits.Add(1)
		}
	}

	c.noteSuccess()
	return found, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, opts *types.CacheOptions) error {
	if !c.connected.Load() {
		return types.ErrRedisUnavailable
	}
	if opts == nil {
		opts = types.DefaultOptions()
	}

	ttl := c.config.DefaultTTL
	if opts.TTL > 0 {
		ttl = opts.TTL
	}

	if opts.FireAndForget {
		return c.enqueue(c.fullKey(key), value, ttl)
	}

	if err := c.client.Set(ctx, c.fullKey(key), value, ttl).Err(); err != nil {
		c.noteFailure(err)
		return types.NewCacheError("Set", key, "redis", err)
	}

	c.stats.sets.Add(1)
	c.noteSuccess()
	return nil
}

// SetMany pipelines a batch of writes under one TTL.
func (c *RedisCache) SetMany(ctx context.Context, items map[string][]byte, opts *types.CacheOptions) error {
	if !c.connected.Load() {
		return types.ErrRedisUnavailable
	}
	if len(items) == 0 {
		return nil
	}
	if opts == nil {
		opts = types.DefaultOptions()
	}

	ttl := c.config.DefaultTTL
	if opts.TTL > 0 {
		ttl = opts.TTL
	}

	pipe := c.client.Pipeline()
	for key, blob := range items {
		pipe.Set(ctx, c.fullKey(key), blob, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.noteFailure(err)
		return types.NewCacheError("SetMany", "", "redis", err)
	}

	c.stats.sets.Add(int64(len(items)))
	c.noteSuccess()
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if !c.connected.Load() {
		return types.ErrRedisUnavailable
	}

	if err := c.client.Del(ctx, c.fullKey(key)).Err(); err != nil {
		c.noteFailure(err)
		return types.NewCacheError("Delete", key, "redis", err)
	}

	c.stats.deletes.Add(1)
	c.noteSuccess()
	return nil
}

func (c *RedisCache) Contains(ctx context.Context, key string) (bool, error) {
	if !c.connected.Load() {
		return false, types.ErrRedisUnavailable
	}

	n, err := c.client.Exists(ctx, c.fullKey(key)).Result()
	if err != nil {
		c.noteFailure(err)
		return false, types.NewCacheError("Contains", key, "redis", err)
	}

	c.noteSuccess()
	return n > 0, nil
}

// Clear drops every key under this tier's prefix. Other tenants of the
// server are untouched.
func (c *RedisCache) Clear(ctx context.Context) error {
	if !c.connected.Load() {
		return types.ErrRedisUnavailable
	}
	_, err := c.scanDelete(ctx, c.fullKey("*"))
	return err
}

// ClearByPattern removes keys matching the pattern and reports how many
// went away.
func (c *RedisCache) ClearByPattern(ctx context.Context, pattern string) (int, error) {
	if !c.connected.Load() {
		return 0, types.ErrRedisUnavailable
	}
	return c.scanDelete(ctx, c.fullKey(pattern))
}

// scanDelete walks the keyspace with SCAN so a large purge never blocks the
// server the way KEYS would.
func (c *RedisCache) scanDelete(ctx context.Context, pattern string) (int, error) {
	var cursor uint64
	deleted := 0

	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.noteFailure(err)
			return deleted, types.NewCacheError("ClearByPattern", pattern, "redis", err)
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.noteFailure(err)
				return deleted, types.NewCacheError("ClearByPattern", pattern, "redis", err)
			}
			deleted += len(keys)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	c.logger.Debug("Purged shared tier keys", "pattern", pattern, "deleted", deleted)
	c.noteSuccess()
	return deleted, nil
}

// Ping checks the server directly, bypassing the availability flag.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Reconnect re-admits the server after an operator fixed it, without
// waiting for the next probe.
func (c *RedisCache) Reconnect(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return err
	}
	c.markOnline("Shared tier reconnected")
	return nil
}

func (c *RedisCache) Close() error {
	c.connected.Store(false)
	close(c.stop)
	c.wg.Wait()
	return c.client.Close()
}

func (c *RedisCache) PendingWrites() int   { return int(c.pending.Load()) }
func (c *RedisCache) DroppedWrites() int64 { return c.dropped.Load() }
func (c *RedisCache) Hits() int64          { return c.stats.hits.Load() }
func (c *RedisCache) Misses() int64        { return c.stats.misses.Load() }

// enqueue hands a write to the write-behind worker. A full queue drops the
// write; the entry will be repopulated on the next miss.
func (c *RedisCache) enqueue(key string, blob []byte, ttl time.Duration) error {
	select {
	case c.queue <- queuedWrite{key: key, blob: blob, ttl: ttl}:
		c.pending.Add(1)
		return nil
	default:
		c.dropped.Add(1)
		c.logger.Warn("Write-behind queue full, dropping write",
			"key", key,
			"dropped_total", c.dropped.Load())
		return types.ErrWriteQueueFull
	}
}

func (c *RedisCache) writeBehindLoop() {
	defer c.wg.Done()

	for {
		select {
		case w := <-c.queue:
			c.flush(w)
		case <-c.stop:
			// Drain what callers already handed over.
			for {
				select {
				case w := <-c.queue:
					c.flush(w)
				default:
					return
				}
			}
		}
	}
}

func (c *RedisCache) flush(w queuedWrite) {
	defer c.pending.Add(-1)

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := c.client.Set(ctx, w.key, w.blob, w.ttl).Err(); err != nil {
		c.noteFailure(err)
		c.logger.Debug("Write-behind flush failed", "key", w.key, "error", err)
		return
	}
	c.stats.sets.Add(1)
	c.noteSuccess()
}

func (c *RedisCache) probeLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.probe()
		}
	}
}

// probe pings the server. It is the only path that brings a downed tier
// back without traffic, and the first to notice a quiet outage.
func (c *RedisCache) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.DialTimeout)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		if c.connected.Load() {
			c.logger.Warn("Shared tier probe failed", "error", err)
			c.connected.Store(false)
		}
		return
	}

	c.markOnline("Shared tier restored by probe")
}

// noteFailure counts a failed command. A run of them takes the tier
// offline so callers stop paying the timeout on every operation.
func (c *RedisCache) noteFailure(err error) {
	if c.faults.Add(1) < offlineAfter {
		return
	}
	if c.connected.CompareAndSwap(true, false) {
		c.logger.Warn("Shared tier taken offline after repeated errors",
			"faults", c.faults.Load(),
			"last_error", err)
	}
}

// noteSuccess clears the fault streak and re-admits the tier if a command
// got through while it was marked offline.
func (c *RedisCache) noteSuccess() {
	if c.faults.Swap(0) > 0 {
		if c.connected.CompareAndSwap(false, true) {
			c.logger.Info("Shared tier back online")
		}
	}
}

func (c *RedisCache) markOnline(msg string) {
	c.faults.Store(0)
	if c.connected.CompareAndSwap(false, true) {
		c.logger.Info(msg)
	}
}

var _ types.RedisCacheLayer = (*RedisCache)(nil)
