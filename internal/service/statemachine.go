package service

import (
	"context"
	"errors"
	"time"

	"ryde/internal/domain"
	"ryde/internal/observability"
	"ryde/internal/repository"
)

// maxApplyAttempts bounds re-reads after losing a conditional write.
// Every loss means the ride advanced, and the lifecycle is only five edges deep.
const maxApplyAttempts = 8

// StateMachine validates and applies ride status changes.
type StateMachine struct {
	rides repository.RideRepository
	now   func() time.Time
}

// NewStateMachine creates a new StateMachine.
func NewStateMachine(rides repository.RideRepository) *StateMachine {
	return &StateMachine{rides: rides, now: time.Now}
}

// CanTransition reports whether to is an outgoing edge of from.
func (m *StateMachine) CanTransition(from, to domain.RideStatus) bool {
	return domain.CanTransition(from, to)
}

// Apply moves a ride to status `to` on behalf of actor and returns the
// updated ride with the status it left. The write is conditional on the
// status that was checked, so concurrent callers never both succeed from the
// same state.
//
// accepted is not applied here: it assigns a driver and goes through
// AcceptService.Accept once CheckAccept passes.
func (m *StateMachine) Apply(ctx context.Context, rideID string, to domain.RideStatus, actor *domain.Actor) (*domain.Ride, domain.RideStatus, error) {
	if rideID == "" {
		return nil, "", ErrInvalidRideID
	}
	if actor == nil {
		return nil, "", ErrUnauthorized
	}

	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		ride, err := m.rides.GetByID(ctx, rideID)
		if err != nil {
			return nil, "", err
		}

		if to == domain.RideStatusAccepted {
			if err := acceptGate(ride, actor); err != nil {
				return nil, "", err
			}
			return nil, "", ErrAcceptRequired
		}
		if !ride.IsParticipant(actor.ID) {
			observability.StatusTransitions.WithLabelValues(string(to), "unauthorized").Inc()
			return nil, "", ErrUnauthorized
		}
		from := ride.Status
		if !m.CanTransition(from, to) {
			observability.StatusTransitions.WithLabelValues(string(to), "rejected").Inc()
			return nil, "", &TransitionError{From: from, To: to}
		}

		updated, err := m.rides.UpdateStatus(ctx, rideID, from, to, m.now())
		if errors.Is(err, repository.ErrStatusConflict) {
			continue
		}
		if err != nil {
			return nil, "", err
		}

		observability.StatusTransitions.WithLabelValues(string(to), "applied").Inc()
		return updated, from, nil
	}

	return nil, "", ErrConcurrentUpdate
}

// CheckAccept reports whether actor may try to accept the ride as it stands.
// Only a requested ride can be accepted, and only by a driver; the race itself
// is settled by the conditional write in AcceptService.Accept.
func (m *StateMachine) CheckAccept(ctx context.Context, rideID string, actor *domain.Actor) error {
	if rideID == "" {
		return ErrInvalidRideID
	}
	if actor == nil {
		return ErrUnauthorized
	}
	ride, err := m.rides.GetByID(ctx, rideID)
	if err != nil {
		return err
	}
	return acceptGate(ride, actor)
}

// acceptGate applies the usual order for a move to accepted: a stranger to a
// ride that already left requested is unauthorized, a participant gets the
// transition error, and on a requested ride only drivers may accept.
func acceptGate(ride *domain.Ride, actor *domain.Actor) error {
	to := domain.RideStatusAccepted
	if ride.Status != domain.RideStatusRequested {
		if !ride.IsParticipant(actor.ID) {
			observability.StatusTransitions.WithLabelValues(string(to), "unauthorized").Inc()
			return ErrUnauthorized
		}
		observability.StatusTransitions.WithLabelValues(string(to), "rejected").Inc()
		return &TransitionError{From: ride.Status, To: to}
	}
	if !actor.Type.IsDriver() {
		observability.StatusTransitions.WithLabelValues(string(to), "unauthorized").Inc()
		return ErrUnauthorized
	}
	return nil
}
