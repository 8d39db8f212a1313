package redis

import (
	"context"
	"time"
)

// LocationStoreInterface defines the online driver GEO index operations.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error
	FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]NearbyDriver, error)
	RemoveLocation(ctx context.Context, driverID string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireDispatchLock(ctx context.Context, rideID string, ttl time.Duration) (bool, error)
	ReleaseDispatchLock(ctx context.Context, rideID string) error
}

// CacheStoreInterface defines the actor cache operations.
type CacheStoreInterface interface {
	GetActor(ctx context.Context, actorID string) (*CachedActor, error)
	SetActor(ctx context.Context, actor *CachedActor) error
	InvalidateActor(ctx context.Context, actorID string) error
}

// EventBusInterface defines the cluster broadcast transport.
type EventBusInterface interface {
	Publish(ctx context.Context, payload []byte) error
	Subscribe(ctx context.Context, handle func([]byte)) error
}

// IdempotencyStoreInterface defines the replay cache used by the HTTP layer.
type IdempotencyStoreInterface interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

var (
	_ IdempotencyStoreInterface = (*IdempotencyStore)(nil)
	_ LocationStoreInterface    = (*LocationStore)(nil)
	_ LockStoreInterface        = (*LockStore)(nil)
	_ CacheStoreInterface       = (*CacheStore)(nil)
	_ EventBusInterface         = (*EventBus)(nil)
)
