package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireDispatchLock claims the right to dispatch a ride.
// Returns false when another process already dispatched it within ttl.
func (s *LockStore) AcquireDispatchLock(ctx context.Context, rideID string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, dispatchLockKey(rideID), "1", ttl).Result()
}

// ReleaseDispatchLock releases the dispatch lock for a ride.
func (s *LockStore) ReleaseDispatchLock(ctx context.Context, rideID string) error {
	return s.client.Del(ctx, dispatchLockKey(rideID)).Err()
}

func dispatchLockKey(rideID string) string {
	return fmt.Sprintf("lock:dispatch:%s", rideID)
}
