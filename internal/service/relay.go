package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"ryde/internal/domain"
	"ryde/internal/realtime"
	"ryde/internal/repository"
)

// LocationPublisher streams driver positions to downstream consumers.
type LocationPublisher interface {
	PublishLocation(ctx context.Context, loc domain.DriverLocation, rideID string) error
}

// RelayService forwards chat, location and status chatter between the two
// participants of a ride. Nothing it relays is stored. Undeliverable messages
// are logged and dropped, never returned as errors.
type RelayService struct {
	rides       repository.RideRepository
	broadcaster realtime.Broadcaster
	stream      LocationPublisher
	notifier    *NotificationService
	log         *zap.Logger
	now         func() time.Time
}

// NewRelayService creates a new RelayService. stream and notifier may be nil.
func NewRelayService(
	rides repository.RideRepository,
	broadcaster realtime.Broadcaster,
	stream LocationPublisher,
	notifier *NotificationService,
	log *zap.Logger,
) *RelayService {
	return &RelayService{
		rides:       rides,
		broadcaster: broadcaster,
		stream:      stream,
		notifier:    notifier,
		log:         log,
		now:         time.Now,
	}
}

// RelayChat sends content to the sender's counterpart on the ride, tagged
// driver_message or customer_message by the sender's role.
func (s *RelayService) RelayChat(ctx context.Context, rideID string, sender *domain.Actor, content, timestamp string) error {
	ride, recipient, ok, err := s.counterpart(ctx, rideID, sender)
	if err != nil || !ok {
		return err
	}

	if timestamp == "" {
		timestamp = s.now().UTC().Format(time.RFC3339)
	}
	s.broadcaster.Broadcast(ctx, s.groupOf(ride, recipient), realtime.ChatMessage{
		RideID:     ride.ID,
		Message:    content,
		SenderID:   sender.ID,
		SenderName: sender.DisplayName(),
		SenderType: sender.Type,
		Timestamp:  timestamp,
	})
	s.notifier.NotifyChatRelayed(ctx, ride.ID, sender.ID, recipient)
	return nil
}

// RelayLocation forwards the assigned driver's position to the customer.
func (s *RelayService) RelayLocation(ctx context.Context, rideID string, sender *domain.Actor, msg realtime.LocationMessage) error {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return s.dropOnMissing(rideID, err)
	}
	if ride.DriverID == "" || ride.DriverID != sender.ID {
		s.log.Warn("location from non-assigned actor dropped",
			zap.String("ride_id", rideID), zap.String("actor_id", sender.ID))
		return nil
	}

	timestamp := msg.Timestamp
	if timestamp == "" {
		timestamp = s.now().UTC().Format(time.RFC3339)
	}
	s.broadcaster.Broadcast(ctx, realtime.CustomerGroup(ride.CustomerID), realtime.LocationUpdate{
		RideID:    ride.ID,
		DriverID:  sender.ID,
		Lat:       msg.Lat,
		Lng:       msg.Lng,
		Heading:   msg.Heading,
		Timestamp: timestamp,
	})

	if s.stream != nil {
		sample := domain.DriverLocation{DriverID: sender.ID, Lat: msg.Lat, Lng: msg.Lng, IsOnline: true, UpdatedAt: s.now()}
		if err := s.stream.PublishLocation(ctx, sample, ride.ID); err != nil {
			s.log.Warn("location stream publish failed", zap.String("ride_id", ride.ID), zap.Error(err))
		}
	}
	return nil
}

// RelayStatus broadcasts status chatter to the counterpart. The stored ride
// is not touched; authoritative changes go through the state machine first.
func (s *RelayService) RelayStatus(ctx context.Context, rideID string, sender *domain.Actor, status, message, timestamp string) error {
	ride, recipient, ok, err := s.counterpart(ctx, rideID, sender)
	if err != nil || !ok {
		return err
	}

	if timestamp == "" {
		timestamp = s.now().UTC().Format(time.RFC3339)
	}
	s.broadcaster.Broadcast(ctx, s.groupOf(ride, recipient), realtime.RideStatusUpdate{
		RideID:    ride.ID,
		Status:    status,
		Message:   message,
		UpdatedBy: sender.ID,
		Timestamp: timestamp,
	})
	return nil
}

// counterpart resolves the ride and the other participant. ok is false when
// the message must be dropped.
func (s *RelayService) counterpart(ctx context.Context, rideID string, sender *domain.Actor) (*domain.Ride, string, bool, error) {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, "", false, s.dropOnMissing(rideID, err)
	}
	if !ride.IsParticipant(sender.ID) {
		s.log.Warn("relay from non-participant dropped",
			zap.String("ride_id", rideID), zap.String("actor_id", sender.ID))
		return nil, "", false, nil
	}
	recipient := ride.Counterpart(sender.ID)
	if recipient == "" {
		s.log.Info("relay dropped, ride has no counterpart yet",
			zap.String("ride_id", rideID), zap.String("actor_id", sender.ID))
		return nil, "", false, nil
	}
	return ride, recipient, true, nil
}

func (s *RelayService) groupOf(ride *domain.Ride, actorID string) string {
	if actorID == ride.CustomerID {
		return realtime.CustomerGroup(actorID)
	}
	return realtime.DriverGroup(actorID)
}

func (s *RelayService) dropOnMissing(rideID string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		s.log.Warn("relay for unknown ride dropped", zap.String("ride_id", rideID))
		return nil
	}
	return err
}
