package repository

import (
	"context"
	"time"

	"ryde/internal/domain"
)

// RideRepository defines the persistence operations for rides.
type RideRepository interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// ListByStatus retrieves rides in the given status, oldest first.
	ListByStatus(ctx context.Context, status domain.RideStatus, limit int) ([]*domain.Ride, error)

	// ListByActor retrieves rides where the actor is customer or driver, newest first.
	ListByActor(ctx context.Context, actorID string, limit int) ([]*domain.Ride, error)

	// UpdateStatus moves the ride from expected to next in one conditional write.
	// in_progress stamps the pickup time and completed stamps the dropoff time.
	// Returns ErrStatusConflict when the stored status is no longer expected.
	UpdateStatus(ctx context.Context, id string, expected, next domain.RideStatus, at time.Time) (*domain.Ride, error)

	// AssignDriver sets the driver and status accepted only while the ride is requested.
	// Returns ErrStatusConflict when the ride has left requested.
	AssignDriver(ctx context.Context, id, driverID string, at time.Time) (*domain.Ride, error)
}
