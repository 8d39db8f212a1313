package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ryde/internal/audit"
	"ryde/internal/domain"
)

// NotificationType names an audit record.
type NotificationType string

const (
	NotificationRideRequested NotificationType = "RIDE_REQUESTED"
	NotificationRideAccepted  NotificationType = "RIDE_ACCEPTED"
	NotificationRideDeclined  NotificationType = "RIDE_DECLINED"
	NotificationStatusChanged NotificationType = "RIDE_STATUS_CHANGED"
	NotificationRideCancelled NotificationType = "RIDE_CANCELLED"
	NotificationChatRelayed   NotificationType = "CHAT_RELAYED"
)

// NotificationService records ride events for administrators. Failures are
// logged and never fail the ride flow that produced them.
type NotificationService struct {
	sink audit.Sink
	log  *zap.Logger
	now  func() time.Time
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(sink audit.Sink, log *zap.Logger) *NotificationService {
	return &NotificationService{sink: sink, log: log, now: time.Now}
}

// NotifyRideRequested records a new ride and how many drivers were offered it.
func (s *NotificationService) NotifyRideRequested(ctx context.Context, ride *domain.Ride, candidates int) {
	s.send(ctx, audit.Record{
		Type:    string(NotificationRideRequested),
		RideID:  ride.ID,
		ActorID: ride.CustomerID,
		Message: fmt.Sprintf("Ride requested, offered to %d drivers", candidates),
		Data: map[string]any{
			"pickup_lat":   ride.PickupLat,
			"pickup_lng":   ride.PickupLng,
			"fare":         ride.Fare,
			"service_type": ride.ServiceType,
			"candidates":   candidates,
		},
	})
}

// NotifyRideAccepted records the driver that won a ride.
func (s *NotificationService) NotifyRideAccepted(ctx context.Context, ride *domain.Ride, driver *domain.Actor) {
	s.send(ctx, audit.Record{
		Type:    string(NotificationRideAccepted),
		RideID:  ride.ID,
		ActorID: driver.ID,
		Message: fmt.Sprintf("Driver %s accepted the ride", driver.DisplayName()),
	})
}

// NotifyRideDeclined records a driver passing on a ride.
func (s *NotificationService) NotifyRideDeclined(ctx context.Context, ride *domain.Ride, driverID string) {
	s.send(ctx, audit.Record{
		Type:    string(NotificationRideDeclined),
		RideID:  ride.ID,
		ActorID: driverID,
		Message: "Driver declined the ride",
	})
}

// NotifyStatusChanged records an applied transition.
func (s *NotificationService) NotifyStatusChanged(ctx context.Context, ride *domain.Ride, from domain.RideStatus, actorID string) {
	typ := NotificationStatusChanged
	if ride.Status == domain.RideStatusCancelled {
		typ = NotificationRideCancelled
	}
	s.send(ctx, audit.Record{
		Type:    string(typ),
		RideID:  ride.ID,
		ActorID: actorID,
		Message: fmt.Sprintf("Ride moved from %s to %s", from, ride.Status),
		Data:    map[string]any{"from": from, "to": ride.Status},
	})
}

// NotifyChatRelayed records that a chat line was forwarded. The text is not kept.
func (s *NotificationService) NotifyChatRelayed(ctx context.Context, rideID, senderID, recipientID string) {
	s.send(ctx, audit.Record{
		Type:    string(NotificationChatRelayed),
		RideID:  rideID,
		ActorID: senderID,
		Message: "Chat message relayed",
		Data:    map[string]any{"recipient_id": recipientID},
	})
}

func (s *NotificationService) send(ctx context.Context, rec audit.Record) {
	if s == nil || s.sink == nil {
		return
	}
	rec.CreatedAt = s.now()
	if err := s.sink.Publish(ctx, rec); err != nil {
		s.log.Warn("audit publish failed",
			zap.String("type", rec.Type),
			zap.String("ride_id", rec.RideID),
			zap.Error(err),
		)
	}
}
