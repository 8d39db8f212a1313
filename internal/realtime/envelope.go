// Package realtime holds the live session layer: the message envelope, the
// group registry, per-connection sessions and the connect-time handshake.
package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedEnvelope is returned for frames that are not a valid envelope
	// or whose data does not fit the declared type.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrUnknownMessageType is returned for envelope types outside the inbound set.
	ErrUnknownMessageType = errors.New("unknown message type")
)

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound message types accepted from a session.
const (
	InboundPing             = "ping"
	InboundRideAccepted     = "ride_accepted"
	InboundLocationUpdate   = "location_update"
	InboundChatMessage      = "chat_message"
	InboundRideStatusUpdate = "ride_status_update"
)

// Inbound is one parsed client message. The concrete types below are the
// complete set.
type Inbound interface {
	InboundType() string
}

// PingMessage asks for a pong.
type PingMessage struct {
	Timestamp string `json:"timestamp,omitempty"`
}

// RideAcceptedMessage is a driver's echo after accepting through the HTTP surface.
type RideAcceptedMessage struct {
	RideID       string `json:"ride_id"`
	VehicleType  string `json:"vehicle_type,omitempty"`
	LicensePlate string `json:"license_plate,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
}

// LocationMessage is a position report from the driver on a ride.
type LocationMessage struct {
	RideID    string   `json:"ride_id"`
	Lat       float64  `json:"latitude"`
	Lng       float64  `json:"longitude"`
	Heading   *float64 `json:"heading,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
}

// ChatInbound is a chat line sent to the other participant of a ride.
type ChatInbound struct {
	RideID    string `json:"ride_id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

// StatusInbound is free-form status chatter relayed to the counterpart.
// It never changes the stored ride.
type StatusInbound struct {
	RideID    string `json:"ride_id"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

func (PingMessage) InboundType() string         { return InboundPing }
func (RideAcceptedMessage) InboundType() string { return InboundRideAccepted }
func (LocationMessage) InboundType() string     { return InboundLocationUpdate }
func (ChatInbound) InboundType() string         { return InboundChatMessage }
func (StatusInbound) InboundType() string       { return InboundRideStatusUpdate }

// ParseInbound decodes a client frame into its typed message.
func ParseInbound(raw []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	}

	data := env.Data
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		data = []byte("{}")
	}

	switch env.Type {
	case InboundPing:
		var msg PingMessage
		if err := decodeData(data, &msg); err != nil {
			return nil, err
		}
		return msg, nil

	case InboundRideAccepted:
		var msg RideAcceptedMessage
		if err := decodeData(data, &msg); err != nil {
			return nil, err
		}
		if err := requireRideID(msg.RideID); err != nil {
			return nil, err
		}
		return msg, nil

	case InboundLocationUpdate:
		var msg LocationMessage
		if err := decodeData(data, &msg); err != nil {
			return nil, err
		}
		if err := requireRideID(msg.RideID); err != nil {
			return nil, err
		}
		if msg.Lat < -90 || msg.Lat > 90 || msg.Lng < -180 || msg.Lng > 180 {
			return nil, fmt.Errorf("%w: coordinates out of range", ErrMalformedEnvelope)
		}
		return msg, nil

	case InboundChatMessage:
		var msg ChatInbound
		if err := decodeData(data, &msg); err != nil {
			return nil, err
		}
		if err := requireRideID(msg.RideID); err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.Message) == "" {
			return nil, fmt.Errorf("%w: empty chat message", ErrMalformedEnvelope)
		}
		return msg, nil

	case InboundRideStatusUpdate:
		var msg StatusInbound
		if err := decodeData(data, &msg); err != nil {
			return nil, err
		}
		if err := requireRideID(msg.RideID); err != nil {
			return nil, err
		}
		return msg, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.Type)
}

func decodeData(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return nil
}

func requireRideID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: ride_id is required", ErrMalformedEnvelope)
	}
	return nil
}
