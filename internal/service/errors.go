package service

import (
	"errors"
	"fmt"

	"ryde/internal/domain"
)

var (
	// ErrInvalidTransition is matched by every *TransitionError.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnauthorized is returned when the actor is not allowed to act on the ride.
	ErrUnauthorized = errors.New("actor not allowed to act on this ride")

	// ErrRideAlreadyTaken is returned to drivers who lose the accept race.
	ErrRideAlreadyTaken = errors.New("ride already taken")

	// ErrRideNotOpen is returned when declining a ride that is no longer requested.
	ErrRideNotOpen = errors.New("ride is no longer open")

	// ErrInvalidRideID is returned when ride ID is empty.
	ErrInvalidRideID = errors.New("invalid ride id")

	// ErrInvalidCustomerID is returned when customer ID is empty.
	ErrInvalidCustomerID = errors.New("invalid customer id")

	// ErrInvalidPickupLocation is returned when pickup coordinates are invalid.
	ErrInvalidPickupLocation = errors.New("invalid pickup location")

	// ErrInvalidDropoffLocation is returned when dropoff coordinates are invalid.
	ErrInvalidDropoffLocation = errors.New("invalid dropoff location")

	// ErrInvalidLocation is returned when location coordinates are invalid.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidServiceType is returned for unknown vehicle classes.
	ErrInvalidServiceType = errors.New("invalid service type")

	// ErrInvalidFare is returned for negative fares.
	ErrInvalidFare = errors.New("invalid fare")

	// ErrInvalidStatus is returned for status names outside the lifecycle.
	ErrInvalidStatus = errors.New("invalid ride status")

	// ErrInvalidRadius is returned for non-positive search radii.
	ErrInvalidRadius = errors.New("invalid radius")

	// ErrAcceptRequired is returned by StateMachine.Apply for accepted, which
	// assigns a driver and must go through AcceptService.Accept.
	ErrAcceptRequired = errors.New("accepting a ride must go through accept")

	// ErrConcurrentUpdate is returned when a status change keeps losing to other writers.
	ErrConcurrentUpdate = errors.New("ride updated concurrently, retry")
)

// TransitionError reports a status change the lifecycle does not allow.
type TransitionError struct {
	From domain.RideStatus
	To   domain.RideStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move ride from %s to %s", e.From, e.To)
}

// Is makes errors.Is(err, ErrInvalidTransition) hold.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
