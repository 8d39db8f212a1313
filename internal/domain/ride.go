package domain

import "time"

// RideStatus represents the current status of a ride.
type RideStatus string

const (
	RideStatusRequested     RideStatus = "requested"
	RideStatusAccepted      RideStatus = "accepted"
	RideStatusDriverArrived RideStatus = "driver_arrived"
	RideStatusInProgress    RideStatus = "in_progress"
	RideStatusCompleted     RideStatus = "completed"
	RideStatusCancelled     RideStatus = "cancelled"
)

// rideTransitions is the complete edge set of the ride lifecycle.
var rideTransitions = map[RideStatus][]RideStatus{
	RideStatusRequested:     {RideStatusAccepted, RideStatusCancelled},
	RideStatusAccepted:      {RideStatusDriverArrived, RideStatusCancelled},
	RideStatusDriverArrived: {RideStatusInProgress, RideStatusCancelled},
	RideStatusInProgress:    {RideStatusCompleted, RideStatusCancelled},
	RideStatusCompleted:     {},
	RideStatusCancelled:     {},
}

// AllRideStatuses lists every status in lifecycle order.
func AllRideStatuses() []RideStatus {
	return []RideStatus{
		RideStatusRequested,
		RideStatusAccepted,
		RideStatusDriverArrived,
		RideStatusInProgress,
		RideStatusCompleted,
		RideStatusCancelled,
	}
}

// Valid reports whether s is a known status.
func (s RideStatus) Valid() bool {
	_, ok := rideTransitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves s.
func (s RideStatus) IsTerminal() bool {
	return s.Valid() && len(rideTransitions[s]) == 0
}

// CanTransition reports whether to is an outgoing edge of from.
func CanTransition(from, to RideStatus) bool {
	for _, next := range rideTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s in one step.
func NextStatuses(s RideStatus) []RideStatus {
	next := rideTransitions[s]
	out := make([]RideStatus, len(next))
	copy(out, next)
	return out
}

// Ride represents a ride request and its lifecycle.
type Ride struct {
	ID             string
	CustomerID     string
	DriverID       string // empty until accepted
	Status         RideStatus
	PickupLat      float64
	PickupLng      float64
	DropoffLat     float64
	DropoffLng     float64
	PickupAddress  string
	DropoffAddress string
	ServiceType    VehicleType
	Fare           float64
	CreatedAt      time.Time
	PickedUpAt     time.Time
	DroppedOffAt   time.Time
	UpdatedAt      time.Time
}

// IsParticipant reports whether actorID is the customer or the assigned driver.
func (r *Ride) IsParticipant(actorID string) bool {
	if actorID == "" {
		return false
	}
	return actorID == r.CustomerID || (r.DriverID != "" && actorID == r.DriverID)
}

// Counterpart returns the other participant of the ride, or "" when there is none yet.
func (r *Ride) Counterpart(actorID string) string {
	if actorID == "" {
		return ""
	}
	switch actorID {
	case r.CustomerID:
		return r.DriverID
	case r.DriverID:
		return r.CustomerID
	}
	return ""
}
