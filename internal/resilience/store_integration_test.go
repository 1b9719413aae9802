package resilience

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeTestAddress returns the Redis address for integration tests.
// It checks the REDIS_TEST_ADDRESS environment variable first,
// then falls back to localhost:6379.
func storeTestAddress() string {
	if addr := os.Getenv("REDIS_TEST_ADDRESS"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

// skipWithoutRedis connects a raw client or skips the test.
func skipWithoutRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr:        storeTestAddress(),
		DialTimeout: 2 * time.Second,
		ReadTimeout: 1 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis unavailable: %v", err)
	}

	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisStoreRoundTrip(t *testing.T) {
	client := skipWithoutRedis(t)
	ctx := context.Background()

	const prefix = "trazo:breakertest:"

	t.Run("opened breaker restores into a fresh registry", func(t *testing.T) {
		t.Cleanup(func() { client.Del(ctx, prefix+"agri_stats") })

		first := NewRegistry(
			Config{FailureThreshold: 1, RecoveryTimeout: time.Hour},
			WithStore(NewRedisStore(client, prefix, time.Minute)),
		)

		b, err := first.Register(ctx, "agri_stats", nil)
		require.NoError(t, err)

		_, err = b.Call(ctx, func(ctx context.Context) (any, error) {
			return nil, errors.New("quickstats API: 503 service unavailable")
		})
		require.Error(t, err)
		require.Equal(t, StateOpen, b.State(), "breaker should open on the first failure")

		// A second registry simulates another instance of the service
		// coming up while the dependency is down.
		second := NewRegistry(
			Config{FailureThreshold: 1, RecoveryTimeout: time.Hour},
			WithStore(NewRedisStore(client, prefix, time.Minute)),
		)

		restored, err := second.Register(ctx, "agri_stats", nil)
		require.NoError(t, err)

		assert.Equal(t, StateOpen, restored.State())
		assert.Equal(t, 1, restored.Snapshot().ConsecutiveFailures)
		assert.False(t, restored.Snapshot().LastFailure.IsZero())
	})

	t.Run("missing snapshot loads as nil without error", func(t *testing.T) {
		store := NewRedisStore(client, prefix, time.Minute)

		snap, err := store.Load(ctx, "never_registered")
		require.NoError(t, err)
		assert.Nil(t, snap)
	})

	t.Run("delete removes a saved snapshot", func(t *testing.T) {
		store := NewRedisStore(client, prefix, time.Minute)

		err := store.Save(ctx, Snapshot{
			Name:      "food_db",
			State:     "closed",
			UpdatedAt: time.Now(),
		})
		require.NoError(t, err)

		snap, err := store.Load(ctx, "food_db")
		require.NoError(t, err)
		require.NotNil(t, snap)
		assert.Equal(t, "closed", snap.State)

		require.NoError(t, store.Delete(ctx, "food_db"))

		snap, err = store.Load(ctx, "food_db")
		require.NoError(t, err)
		assert.Nil(t, snap)
	})

	t.Run("snapshots expire with the configured ttl", func(t *testing.T) {
		t.Cleanup(func() { client.Del(ctx, prefix+"computation_service") })

		store := NewRedisStore(client, prefix, 0)
		err := store.Save(ctx, Snapshot{
			Name:      "computation_service",
			State:     "open",
			UpdatedAt: time.Now(),
		})
		require.NoError(t, err)

		ttl, err := client.TTL(ctx, prefix+"computation_service").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, 55*time.Minute, "zero config ttl should fall back to an hour")
	})
}
