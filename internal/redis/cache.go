package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ActorCacheTTL bounds how stale an approval flag can be during handshakes.
const ActorCacheTTL = 30 * time.Second

const actorCachePrefix = "cache:actor:"

// CachedActor is the directory entry kept in Redis.
type CachedActor struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Phone      string    `json:"phone"`
	IsApproved bool      `json:"is_approved"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// CacheStore handles entity caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// GetActor retrieves an actor from cache. A miss returns nil, nil.
func (s *CacheStore) GetActor(ctx context.Context, actorID string) (*CachedActor, error) {
	data, err := s.client.Get(ctx, actorCachePrefix+actorID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var actor CachedActor
	if err := json.Unmarshal(data, &actor); err != nil {
		return nil, err
	}
	return &actor, nil
}

// SetActor stores an actor in cache.
func (s *CacheStore) SetActor(ctx context.Context, actor *CachedActor) error {
	data, err := json.Marshal(actor)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, actorCachePrefix+actor.ID, data, ActorCacheTTL).Err()
}

// InvalidateActor removes an actor from cache.
func (s *CacheStore) InvalidateActor(ctx context.Context, actorID string) error {
	return s.client.Del(ctx, actorCachePrefix+actorID).Err()
}
