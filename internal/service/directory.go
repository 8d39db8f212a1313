package service

import (
	"context"

	"go.uber.org/zap"

	"ryde/internal/domain"
	"ryde/internal/redis"
	"ryde/internal/repository"
)

// DirectoryService resolves actors through the Redis cache, falling back to the
// user table. A nil cache reads straight through.
type DirectoryService struct {
	actors repository.ActorRepository
	cache  redis.CacheStoreInterface
	log    *zap.Logger
}

// NewDirectoryService creates a new DirectoryService.
func NewDirectoryService(actors repository.ActorRepository, cache redis.CacheStoreInterface, log *zap.Logger) *DirectoryService {
	return &DirectoryService{actors: actors, cache: cache, log: log}
}

// GetActor returns the actor with id or repository.ErrNotFound. Only active
// actors are served from cache.
func (s *DirectoryService) GetActor(ctx context.Context, id string) (*domain.Actor, error) {
	if s.cache != nil {
		cached, err := s.cache.GetActor(ctx, id)
		if err != nil {
			s.log.Warn("actor cache read failed", zap.String("actor_id", id), zap.Error(err))
		} else if cached != nil && cached.IsActive {
			return fromCachedActor(cached), nil
		} else if cached != nil {
			// Disabled accounts are re-read so a reactivation takes effect at once.
			if err := s.cache.InvalidateActor(ctx, id); err != nil {
				s.log.Warn("actor cache invalidate failed", zap.String("actor_id", id), zap.Error(err))
			}
		}
	}

	actor, err := s.actors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetActor(ctx, toCachedActor(actor)); err != nil {
			s.log.Warn("actor cache write failed", zap.String("actor_id", id), zap.Error(err))
		}
	}
	return actor, nil
}

func toCachedActor(a *domain.Actor) *redis.CachedActor {
	return &redis.CachedActor{
		ID:         a.ID,
		Type:       string(a.Type),
		FirstName:  a.FirstName,
		LastName:   a.LastName,
		Phone:      a.Phone,
		IsApproved: a.IsApproved,
		IsActive:   a.IsActive,
		CreatedAt:  a.CreatedAt,
	}
}

func fromCachedActor(c *redis.CachedActor) *domain.Actor {
	return &domain.Actor{
		ID:         c.ID,
		Type:       domain.ActorType(c.Type),
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		Phone:      c.Phone,
		IsApproved: c.IsApproved,
		IsActive:   c.IsActive,
		CreatedAt:  c.CreatedAt,
	}
}
