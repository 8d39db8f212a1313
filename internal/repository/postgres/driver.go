package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"ryde/internal/domain"
	"ryde/internal/repository"
)

// VehicleRepository is a PostgreSQL implementation of repository.VehicleRepository.
type VehicleRepository struct {
	q Querier
}

// NewVehicleRepository creates a new PostgreSQL vehicle repository.
func NewVehicleRepository(db *sql.DB) *VehicleRepository {
	return &VehicleRepository{q: db}
}

// GetByDriverID retrieves the vehicle registered to a driver.
func (r *VehicleRepository) GetByDriverID(ctx context.Context, driverID string) (*domain.Vehicle, error) {
	query := `SELECT driver_id, vehicle_type, license_plate, COALESCE(make, ''), COALESCE(model, ''), COALESCE(color, '')
		FROM vehicles WHERE driver_id = $1`

	var v domain.Vehicle
	err := r.q.QueryRowContext(ctx, query, driverID).Scan(
		&v.DriverID,
		&v.Type,
		&v.LicensePlate,
		&v.Make,
		&v.Model,
		&v.Color,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// LocationRepository is a PostgreSQL implementation of repository.LocationRepository.
type LocationRepository struct {
	q Querier
}

// NewLocationRepository creates a new PostgreSQL driver location repository.
func NewLocationRepository(db *sql.DB) *LocationRepository {
	return &LocationRepository{q: db}
}

// Get retrieves the last known location of a driver.
func (r *LocationRepository) Get(ctx context.Context, driverID string) (*domain.DriverLocation, error) {
	query := `SELECT driver_id, lat, lng, is_online, updated_at FROM driver_locations WHERE driver_id = $1`

	var loc domain.DriverLocation
	err := r.q.QueryRowContext(ctx, query, driverID).Scan(
		&loc.DriverID, &loc.Lat, &loc.Lng, &loc.IsOnline, &loc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &loc, nil
}

// GetMany retrieves locations keyed by driver ID.
func (r *LocationRepository) GetMany(ctx context.Context, driverIDs []string) (map[string]*domain.DriverLocation, error) {
	out := make(map[string]*domain.DriverLocation, len(driverIDs))
	if len(driverIDs) == 0 {
		return out, nil
	}

	query := `SELECT driver_id, lat, lng, is_online, updated_at FROM driver_locations WHERE driver_id = ANY($1)`
	rows, err := r.q.QueryContext(ctx, query, pq.Array(driverIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var loc domain.DriverLocation
		if err := rows.Scan(&loc.DriverID, &loc.Lat, &loc.Lng, &loc.IsOnline, &loc.UpdatedAt); err != nil {
			return nil, err
		}
		out[loc.DriverID] = &loc
	}
	return out, rows.Err()
}

// Upsert creates or replaces the driver's location row.
func (r *LocationRepository) Upsert(ctx context.Context, loc *domain.DriverLocation) error {
	query := `
		INSERT INTO driver_locations (driver_id, lat, lng, is_online, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (driver_id) DO UPDATE
		SET lat = EXCLUDED.lat, lng = EXCLUDED.lng, is_online = EXCLUDED.is_online, updated_at = EXCLUDED.updated_at
	`
	_, err := r.q.ExecContext(ctx, query, loc.DriverID, loc.Lat, loc.Lng, loc.IsOnline, loc.UpdatedAt)
	return err
}

// ListOnline retrieves every driver currently flagged online.
func (r *LocationRepository) ListOnline(ctx context.Context) ([]*domain.DriverLocation, error) {
	query := `SELECT driver_id, lat, lng, is_online, updated_at FROM driver_locations WHERE is_online ORDER BY driver_id`
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locs []*domain.DriverLocation
	for rows.Next() {
		var loc domain.DriverLocation
		if err := rows.Scan(&loc.DriverID, &loc.Lat, &loc.Lng, &loc.IsOnline, &loc.UpdatedAt); err != nil {
			return nil, err
		}
		locs = append(locs, &loc)
	}
	return locs, rows.Err()
}
