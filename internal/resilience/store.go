package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

// RedisStore keeps breaker snapshots in Redis so every instance of the
// service converges on one view of a dependency's circuit. Snapshots carry
// a TTL; an entry that outlives it is too stale to trust and simply expires.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore wraps an existing Redis client as a snapshot store. The
// client is shared with the cache tier; the store never closes it.
func NewRedisStore(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "trazo:breaker:"
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

func (s *RedisStore) key(name string) string {
	return s.keyPrefix + name
}

// Save writes the snapshot under the dependency's key, refreshing the TTL.
func (s *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: breaker snapshot for %s: %v", types.ErrSerializationFailed, snap.Name, err)
	}

	if err := s.client.Set(ctx, s.key(snap.Name), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: save breaker %s: %v", types.ErrRedisUnavailable, snap.Name, err)
	}
	return nil
}

// Load reads the persisted snapshot for a dependency. A missing key is not
// an error; it returns (nil, nil).
func (s *RedisStore) Load(ctx context.Context, name string) (*Snapshot, error) {
	payload, err := s.client.Get(ctx, s.key(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: load breaker %s: %v", types.ErrRedisUnavailable, name, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("%w: breaker snapshot for %s: %v", types.ErrSerializationFailed, name, err)
	}
	return &snap, nil
}

// Delete removes a persisted snapshot.
func (s *RedisStore) Delete(ctx context.Context, name string) error {
	if err := s.client.Del(ctx, s.key(name)).Err(); err != nil {
		return fmt.Errorf("%w: delete breaker %s: %v", types.ErrRedisUnavailable, name, err)
	}
	return nil
}

var _ SnapshotStore = (*RedisStore)(nil)
