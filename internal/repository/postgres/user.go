package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ryde/internal/domain"
	"ryde/internal/repository"
)

const actorColumns = `id, user_type, COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(phone, ''), is_approved, is_active, created_at`

// ActorRepository implements repository.ActorRepository using PostgreSQL.
type ActorRepository struct {
	q Querier
}

// NewActorRepository creates a new ActorRepository.
func NewActorRepository(db *sql.DB) *ActorRepository {
	return &ActorRepository{q: db}
}

// GetByID retrieves an actor by ID.
func (r *ActorRepository) GetByID(ctx context.Context, id string) (*domain.Actor, error) {
	query := `SELECT ` + actorColumns + ` FROM users WHERE id = $1`

	var actor domain.Actor
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&actor.ID,
		&actor.Type,
		&actor.FirstName,
		&actor.LastName,
		&actor.Phone,
		&actor.IsApproved,
		&actor.IsActive,
		&actor.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &actor, nil
}

// ListDispatchable retrieves approved, active drivers and boda riders.
func (r *ActorRepository) ListDispatchable(ctx context.Context) ([]*domain.Actor, error) {
	query := `SELECT ` + actorColumns + ` FROM users
		WHERE user_type IN ($1, $2) AND is_approved AND is_active
		ORDER BY id`

	rows, err := r.q.QueryContext(ctx, query, domain.ActorTypeDriver, domain.ActorTypeBodaRider)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actors []*domain.Actor
	for rows.Next() {
		var actor domain.Actor
		if err := rows.Scan(
			&actor.ID,
			&actor.Type,
			&actor.FirstName,
			&actor.LastName,
			&actor.Phone,
			&actor.IsApproved,
			&actor.IsActive,
			&actor.CreatedAt,
		); err != nil {
			return nil, err
		}
		actors = append(actors, &actor)
	}
	return actors, rows.Err()
}
