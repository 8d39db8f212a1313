package repository

import (
	"context"

	"ryde/internal/domain"
)

// ActorRepository is the read side of the user directory.
type ActorRepository interface {
	// GetByID retrieves an actor by ID.
	GetByID(ctx context.Context, id string) (*domain.Actor, error)

	// ListDispatchable retrieves approved, active drivers and boda riders.
	ListDispatchable(ctx context.Context) ([]*domain.Actor, error)
}

// VehicleRepository defines the read operations for driver vehicles.
type VehicleRepository interface {
	// GetByDriverID retrieves the vehicle registered to a driver.
	GetByDriverID(ctx context.Context, driverID string) (*domain.Vehicle, error)
}

// LocationRepository defines the persistence operations for driver locations.
type LocationRepository interface {
	// Get retrieves the last known location of a driver.
	Get(ctx context.Context, driverID string) (*domain.DriverLocation, error)

	// GetMany retrieves locations keyed by driver ID. Drivers without a row are absent.
	GetMany(ctx context.Context, driverIDs []string) (map[string]*domain.DriverLocation, error)

	// Upsert creates or replaces the driver's location row.
	Upsert(ctx context.Context, loc *domain.DriverLocation) error

	// ListOnline retrieves every driver currently flagged online.
	ListOnline(ctx context.Context) ([]*domain.DriverLocation, error)
}
