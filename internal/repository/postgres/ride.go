package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ryde/internal/domain"
	"ryde/internal/repository"
)

const rideColumns = `id, customer_id, driver_id, status, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
	pickup_address, dropoff_address, service_type, fare, created_at, picked_up_at, dropped_off_at, updated_at`

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (id, customer_id, driver_id, status, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
			pickup_address, dropoff_address, service_type, fare, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
	`

	_, err := r.q.ExecContext(ctx, query,
		ride.ID,
		ride.CustomerID,
		nullString(ride.DriverID),
		ride.Status,
		ride.PickupLat,
		ride.PickupLng,
		ride.DropoffLat,
		ride.DropoffLng,
		ride.PickupAddress,
		ride.DropoffAddress,
		ride.ServiceType,
		ride.Fare,
		ride.CreatedAt,
	)
	return err
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return ride, nil
}

// ListByStatus retrieves rides in the given status, oldest first.
func (r *RideRepository) ListByStatus(ctx context.Context, status domain.RideStatus, limit int) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE status = $1 ORDER BY created_at ASC LIMIT $2`
	return r.list(ctx, query, status, limit)
}

// ListByActor retrieves rides where the actor is customer or driver, newest first.
func (r *RideRepository) ListByActor(ctx context.Context, actorID string, limit int) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE customer_id = $1 OR driver_id = $1 ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, query, actorID, limit)
}

// UpdateStatus moves the ride from expected to next in one conditional write.
func (r *RideRepository) UpdateStatus(ctx context.Context, id string, expected, next domain.RideStatus, at time.Time) (*domain.Ride, error) {
	var pickedUpAt, droppedOffAt sql.NullTime
	switch next {
	case domain.RideStatusInProgress:
		pickedUpAt = sql.NullTime{Time: at, Valid: true}
	case domain.RideStatusCompleted:
		droppedOffAt = sql.NullTime{Time: at, Valid: true}
	}

	ride, err := scanRide(r.q.QueryRowContext(ctx, updateStatusQuery, id, expected, next, pickedUpAt, droppedOffAt, at))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.missOrConflict(ctx, id)
		}
		return nil, err
	}
	return ride, nil
}

// updateStatusQuery moves a ride only from the expected status. Pickup and
// dropoff times are stamped once; an existing value is never overwritten.
const updateStatusQuery = `
		UPDATE rides
		SET status = $3,
			picked_up_at = COALESCE(picked_up_at, $4),
			dropped_off_at = COALESCE(dropped_off_at, $5),
			updated_at = $6
		WHERE id = $1 AND status = $2
		RETURNING ` + rideColumns

// AssignDriver sets the driver and status accepted only while the ride is requested.
func (r *RideRepository) AssignDriver(ctx context.Context, id, driverID string, at time.Time) (*domain.Ride, error) {
	query := `
		UPDATE rides
		SET driver_id = $2, status = $3, updated_at = $5
		WHERE id = $1 AND status = $4
		RETURNING ` + rideColumns

	ride, err := scanRide(r.q.QueryRowContext(ctx, query,
		id, driverID, domain.RideStatusAccepted, domain.RideStatusRequested, at))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.missOrConflict(ctx, id)
		}
		return nil, err
	}
	return ride, nil
}

// missOrConflict tells an absent ride apart from a lost conditional write.
func (r *RideRepository) missOrConflict(ctx context.Context, id string) error {
	var status string
	err := r.q.QueryRowContext(ctx, `SELECT status FROM rides WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	if err != nil {
		return err
	}
	return repository.ErrStatusConflict
}

func (r *RideRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Ride, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*domain.Ride, error) {
	var ride domain.Ride
	var driverID sql.NullString
	var pickedUpAt, droppedOffAt sql.NullTime

	err := row.Scan(
		&ride.ID,
		&ride.CustomerID,
		&driverID,
		&ride.Status,
		&ride.PickupLat,
		&ride.PickupLng,
		&ride.DropoffLat,
		&ride.DropoffLng,
		&ride.PickupAddress,
		&ride.DropoffAddress,
		&ride.ServiceType,
		&ride.Fare,
		&ride.CreatedAt,
		&pickedUpAt,
		&droppedOffAt,
		&ride.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if driverID.Valid {
		ride.DriverID = driverID.String
	}
	if pickedUpAt.Valid {
		ride.PickedUpAt = pickedUpAt.Time
	}
	if droppedOffAt.Valid {
		ride.DroppedOffAt = droppedOffAt.Time
	}
	return &ride, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
