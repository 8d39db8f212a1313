package domain

import (
	"strings"
	"time"
)

// ActorType represents the kind of participant behind an account.
type ActorType string

const (
	ActorTypeCustomer  ActorType = "customer"
	ActorTypeDriver    ActorType = "driver"
	ActorTypeBodaRider ActorType = "boda_rider"
	ActorTypeResponder ActorType = "emergency_responder"
)

// IsDriver reports whether the type can take rides.
func (t ActorType) IsDriver() bool {
	return t == ActorTypeDriver || t == ActorTypeBodaRider
}

// Actor represents an authenticated participant. The user directory owns it.
type Actor struct {
	ID         string
	Type       ActorType
	FirstName  string
	LastName   string
	Phone      string
	IsApproved bool // drivers only
	IsActive   bool
	CreatedAt  time.Time
}

// DisplayName returns the name shown to the other side of a ride.
func (a *Actor) DisplayName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// CanDrive reports whether the actor may be dispatched rides.
func (a *Actor) CanDrive() bool {
	return a.Type.IsDriver() && a.IsApproved && a.IsActive
}
