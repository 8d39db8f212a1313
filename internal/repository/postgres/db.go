package postgres

import (
	"context"
	"database/sql"

	"ryde/internal/repository"
)

// Querier is the subset of *sql.DB the repositories use.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

var _ Querier = (*sql.DB)(nil)

var (
	_ repository.RideRepository     = (*RideRepository)(nil)
	_ repository.ActorRepository    = (*ActorRepository)(nil)
	_ repository.VehicleRepository  = (*VehicleRepository)(nil)
	_ repository.LocationRepository = (*LocationRepository)(nil)
)
