package realtime

import (
	"encoding/json"
	"time"

	"ryde/internal/domain"
)

// EventKind is the type tag of an outbound frame.
type EventKind string

// Outbound event kinds.
const (
	KindConnectionEstablished EventKind = "connection_established"
	KindPong                  EventKind = "pong"
	KindNewRideRequest        EventKind = "new_ride_request"
	KindRideAccepted          EventKind = "ride_accepted"
	KindRideAcceptedSelf      EventKind = "ride_accepted_self"
	KindRideTaken             EventKind = "ride_taken"
	KindRideDeclined          EventKind = "ride_declined"
	KindDriverMessage         EventKind = "driver_message"
	KindCustomerMessage       EventKind = "customer_message"
	KindLocationUpdate        EventKind = "location_update"
	KindRideStatusUpdate      EventKind = "ride_status_update"
	KindDriverArrived         EventKind = "driver_arrived"
)

// Event is an outbound payload. Each kind has exactly one payload type.
type Event interface {
	Kind() EventKind
}

// ConnectionEstablished confirms a completed handshake to the new session only.
type ConnectionEstablished struct {
	Message   string           `json:"message"`
	SessionID string           `json:"session_id"`
	ActorID   string           `json:"actor_id"`
	ActorType domain.ActorType `json:"actor_type"`
}

// Pong answers a ping.
type Pong struct {
	Timestamp string `json:"timestamp"`
}

// NewRideRequest offers a ride to a candidate driver.
type NewRideRequest struct {
	RideID         string             `json:"ride_id"`
	CustomerName   string             `json:"customer_name"`
	CustomerPhone  string             `json:"customer_phone"`
	PickupAddress  string             `json:"pickup_address"`
	DropoffAddress string             `json:"dropoff_address"`
	PickupLat      float64            `json:"pickup_latitude"`
	PickupLng      float64            `json:"pickup_longitude"`
	DropoffLat     float64            `json:"dropoff_latitude"`
	DropoffLng     float64            `json:"dropoff_longitude"`
	Fare           float64            `json:"fare"`
	ServiceType    domain.VehicleType `json:"service_type"`
	DistanceKm     float64            `json:"distance_km"`
	ETAMinutes     float64            `json:"eta_minutes"`
	CreatedAt      time.Time          `json:"created_at"`
}

// RideAccepted tells the customer who is coming.
type RideAccepted struct {
	RideID       string    `json:"ride_id"`
	DriverID     string    `json:"driver_id"`
	DriverName   string    `json:"driver_name"`
	DriverPhone  string    `json:"driver_phone"`
	VehicleType  string    `json:"vehicle_type"`
	LicensePlate string    `json:"license_plate"`
	Timestamp    time.Time `json:"timestamp"`
}

// RideAcceptedSelf confirms the win to the accepting driver's own sessions.
type RideAcceptedSelf struct {
	RideID         string            `json:"ride_id"`
	Status         domain.RideStatus `json:"status"`
	CustomerName   string            `json:"customer_name"`
	CustomerPhone  string            `json:"customer_phone"`
	PickupAddress  string            `json:"pickup_address"`
	DropoffAddress string            `json:"dropoff_address"`
	Fare           float64           `json:"fare"`
	Timestamp      time.Time         `json:"timestamp"`
}

// RideTaken withdraws an offer from drivers who did not win it.
type RideTaken struct {
	RideID  string `json:"ride_id"`
	Message string `json:"message"`
}

// RideDeclined informs the customer that one driver passed on the ride.
type RideDeclined struct {
	RideID    string    `json:"ride_id"`
	DriverID  string    `json:"driver_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatMessage is a relayed chat line. Its kind follows the sender's role.
type ChatMessage struct {
	RideID     string           `json:"ride_id"`
	Message    string           `json:"message"`
	SenderID   string           `json:"sender_id"`
	SenderName string           `json:"sender_name"`
	SenderType domain.ActorType `json:"sender_type"`
	Timestamp  string           `json:"timestamp"`
}

// LocationUpdate streams the assigned driver's position to the customer.
type LocationUpdate struct {
	RideID    string   `json:"ride_id"`
	DriverID  string   `json:"driver_id"`
	Lat       float64  `json:"latitude"`
	Lng       float64  `json:"longitude"`
	Heading   *float64 `json:"heading,omitempty"`
	Timestamp string   `json:"timestamp"`
}

// RideStatusUpdate pushes a status change, or relayed status chatter, to the counterpart.
type RideStatusUpdate struct {
	RideID    string `json:"ride_id"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	UpdatedBy string `json:"updated_by"`
	Timestamp string `json:"timestamp"`
}

// DriverArrived tells the customer the driver is at the pickup point.
type DriverArrived struct {
	RideID     string    `json:"ride_id"`
	DriverID   string    `json:"driver_id"`
	DriverName string    `json:"driver_name"`
	Timestamp  time.Time `json:"timestamp"`
}

func (ConnectionEstablished) Kind() EventKind { return KindConnectionEstablished }
func (Pong) Kind() EventKind                  { return KindPong }
func (NewRideRequest) Kind() EventKind        { return KindNewRideRequest }
func (RideAccepted) Kind() EventKind          { return KindRideAccepted }
func (RideAcceptedSelf) Kind() EventKind      { return KindRideAcceptedSelf }
func (RideTaken) Kind() EventKind             { return KindRideTaken }
func (RideDeclined) Kind() EventKind          { return KindRideDeclined }
func (LocationUpdate) Kind() EventKind        { return KindLocationUpdate }
func (RideStatusUpdate) Kind() EventKind      { return KindRideStatusUpdate }
func (DriverArrived) Kind() EventKind         { return KindDriverArrived }

func (m ChatMessage) Kind() EventKind {
	if m.SenderType.IsDriver() {
		return KindDriverMessage
	}
	return KindCustomerMessage
}

type outbound struct {
	Type EventKind `json:"type"`
	Data Event     `json:"data"`
}

// Encode renders an event as an envelope frame.
func Encode(e Event) ([]byte, error) {
	return json.Marshal(outbound{Type: e.Kind(), Data: e})
}
