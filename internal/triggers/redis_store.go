package triggers

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisFireStore is a distributed FireStore backed by Redis SETNX,
// letting multiple Scheduler processes share at-most-once semantics
// instead of each keeping its own in-memory seen-set (the gap
// MemoryFireStore explicitly does not cover across restarts or
// replicas).
type RedisFireStore struct {
	client *redis.Client
	ttl    time.Duration
}

// DefaultFireKeyTTL bounds how long a fire-key is remembered; long enough
// to dedupe any plausible re-delivery window, short enough not to grow
// Redis memory unbounded for high-churn event triggers.
const DefaultFireKeyTTL = 24 * time.Hour

// NewRedisFireStore builds a RedisFireStore. ttl <= 0 uses DefaultFireKeyTTL.
func NewRedisFireStore(client *redis.Client, ttl time.Duration) *RedisFireStore {
	if ttl <= 0 {
		ttl = DefaultFireKeyTTL
	}
	return &RedisFireStore{client: client, ttl: ttl}
}

// MarkFired implements FireStore via SETNX: the first caller to set the
// key wins and is told first=true; everyone after sees first=false.
func (s *RedisFireStore) MarkFired(ctx context.Context, fireKey string) (bool, error) {
	ok, err := s.client.SetNX(ctx, redisFireKeyPrefix+fireKey, 1, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("triggers: redis fire-key dedup: %w", err)
	}
	return ok, nil
}

const redisFireKeyPrefix = "triggers:firekey:"
