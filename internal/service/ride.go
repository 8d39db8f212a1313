package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ryde/internal/domain"
	"ryde/internal/geo"
	"ryde/internal/observability"
	"ryde/internal/realtime"
	"ryde/internal/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// RideService handles ride requests and lifecycle actions.
type RideService struct {
	rideRepo     repository.RideRepository
	directory    realtime.ActorDirectory
	stateMachine *StateMachine
	dispatcher   *Dispatcher
	accept       *AcceptService
	broadcaster  realtime.Broadcaster
	notifier     *NotificationService
	log          *zap.Logger
	now          func() time.Time
}

// NewRideService creates a new RideService.
func NewRideService(
	rideRepo repository.RideRepository,
	directory realtime.ActorDirectory,
	stateMachine *StateMachine,
	dispatcher *Dispatcher,
	accept *AcceptService,
	broadcaster realtime.Broadcaster,
	notifier *NotificationService,
	log *zap.Logger,
) *RideService {
	return &RideService{
		rideRepo:     rideRepo,
		directory:    directory,
		stateMachine: stateMachine,
		dispatcher:   dispatcher,
		accept:       accept,
		broadcaster:  broadcaster,
		notifier:     notifier,
		log:          log,
		now:          time.Now,
	}
}

// CreateRideRequest contains the parameters for creating a ride.
type CreateRideRequest struct {
	CustomerID     string
	PickupLat      float64
	PickupLng      float64
	DropoffLat     float64
	DropoffLng     float64
	PickupAddress  string
	DropoffAddress string
	ServiceType    domain.VehicleType // Optional: defaults to economy
	Fare           float64            // Optional: zero means estimate from distance
}

// CreateRide persists a requested ride and dispatches it to nearby drivers.
// A dispatch failure is logged; the ride is still returned in requested status.
func (s *RideService) CreateRide(ctx context.Context, req CreateRideRequest) (*domain.Ride, error) {
	if err := s.validateCreateRequest(req); err != nil {
		return nil, err
	}

	customer, err := s.directory.GetActor(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer.Type != domain.ActorTypeCustomer {
		return nil, ErrUnauthorized
	}

	serviceType := req.ServiceType
	if serviceType == "" {
		serviceType = domain.VehicleTypeEconomy
	}

	pickup := geo.Point{Lat: req.PickupLat, Lng: req.PickupLng}
	dropoff := geo.Point{Lat: req.DropoffLat, Lng: req.DropoffLng}
	fare := req.Fare
	if fare == 0 {
		fare = geo.EstimateFare(pickup, dropoff)
	}

	now := s.now()
	ride := &domain.Ride{
		ID:             uuid.New().String(),
		CustomerID:     customer.ID,
		Status:         domain.RideStatusRequested,
		PickupLat:      req.PickupLat,
		PickupLng:      req.PickupLng,
		DropoffLat:     req.DropoffLat,
		DropoffLng:     req.DropoffLng,
		PickupAddress:  req.PickupAddress,
		DropoffAddress: req.DropoffAddress,
		ServiceType:    serviceType,
		Fare:           geo.Round2(fare),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.rideRepo.Create(ctx, ride); err != nil {
		return nil, err
	}
	observability.RidesCreated.Inc()

	candidates, err := s.dispatcher.Dispatch(ctx, ride, customer)
	if err != nil {
		s.log.Error("dispatch failed", zap.String("ride_id", ride.ID), zap.Error(err))
	}
	s.notifier.NotifyRideRequested(ctx, ride, len(candidates))

	return ride, nil
}

func (s *RideService) validateCreateRequest(req CreateRideRequest) error {
	if req.CustomerID == "" {
		return ErrInvalidCustomerID
	}
	if !(geo.Point{Lat: req.PickupLat, Lng: req.PickupLng}).Valid() {
		return ErrInvalidPickupLocation
	}
	if !(geo.Point{Lat: req.DropoffLat, Lng: req.DropoffLng}).Valid() {
		return ErrInvalidDropoffLocation
	}
	if req.ServiceType != "" && !req.ServiceType.Valid() {
		return ErrInvalidServiceType
	}
	if req.Fare < 0 {
		return ErrInvalidFare
	}
	return nil
}

// GetRide returns a ride to its participants. Drivers may also read rides
// that are still requested.
func (s *RideService) GetRide(ctx context.Context, rideID string, actor *domain.Actor) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.IsParticipant(actor.ID) {
		return ride, nil
	}
	if actor.Type.IsDriver() && ride.Status == domain.RideStatusRequested {
		return ride, nil
	}
	return nil, ErrUnauthorized
}

// ListRides returns the actor's rides, newest first.
func (s *RideService) ListRides(ctx context.Context, actor *domain.Actor, limit int) ([]*domain.Ride, error) {
	return s.rideRepo.ListByActor(ctx, actor.ID, clampLimit(limit))
}

// AvailableRide is a requested ride with the distance from the asking driver.
type AvailableRide struct {
	Ride       *domain.Ride
	DistanceKm *float64
}

// AvailableRides lists requested rides for drivers, oldest first. When from is
// set each ride carries its distance to pickup.
func (s *RideService) AvailableRides(ctx context.Context, driver *domain.Actor, from *geo.Point, limit int) ([]AvailableRide, error) {
	if !driver.Type.IsDriver() {
		return nil, ErrUnauthorized
	}
	if from != nil && !from.Valid() {
		return nil, ErrInvalidLocation
	}

	rides, err := s.rideRepo.ListByStatus(ctx, domain.RideStatusRequested, clampLimit(limit))
	if err != nil {
		return nil, err
	}

	out := make([]AvailableRide, 0, len(rides))
	for _, r := range rides {
		item := AvailableRide{Ride: r}
		if from != nil {
			d := geo.Round2(geo.HaversineKm(*from, geo.Point{Lat: r.PickupLat, Lng: r.PickupLng}))
			item.DistanceKm = &d
		}
		out = append(out, item)
	}
	return out, nil
}

// AcceptRide assigns the ride to driver.
func (s *RideService) AcceptRide(ctx context.Context, rideID string, driver *domain.Actor) (*domain.Ride, error) {
	return s.accept.Accept(ctx, rideID, driver)
}

// DeclineRide informs the customer that driver passed.
func (s *RideService) DeclineRide(ctx context.Context, rideID string, driver *domain.Actor) error {
	return s.accept.Decline(ctx, rideID, driver)
}

// UpdateStatus applies a lifecycle transition and pushes it to the other
// participant. Moving a requested ride to accepted is an accept by a driver.
func (s *RideService) UpdateStatus(ctx context.Context, rideID string, actor *domain.Actor, to domain.RideStatus) (*domain.Ride, error) {
	if !to.Valid() {
		return nil, ErrInvalidStatus
	}
	if to == domain.RideStatusAccepted {
		if err := s.stateMachine.CheckAccept(ctx, rideID, actor); err != nil {
			return nil, err
		}
		return s.accept.Accept(ctx, rideID, actor)
	}

	ride, from, err := s.stateMachine.Apply(ctx, rideID, to, actor)
	if err != nil {
		return nil, err
	}

	s.pushStatus(ctx, ride, actor)
	s.notifier.NotifyStatusChanged(ctx, ride, from, actor.ID)
	s.log.Info("ride status changed",
		zap.String("ride_id", ride.ID),
		zap.String("from", string(from)),
		zap.String("to", string(ride.Status)),
		zap.String("actor_id", actor.ID),
	)
	return ride, nil
}

// CancelRide cancels the ride on behalf of a participant.
func (s *RideService) CancelRide(ctx context.Context, rideID string, actor *domain.Actor) (*domain.Ride, error) {
	return s.UpdateStatus(ctx, rideID, actor, domain.RideStatusCancelled)
}

// pushStatus tells the counterpart about an applied change. driver_arrived
// also sends the dedicated arrival event to the customer.
func (s *RideService) pushStatus(ctx context.Context, ride *domain.Ride, actor *domain.Actor) {
	at := ride.UpdatedAt.UTC().Format(time.RFC3339)
	update := realtime.RideStatusUpdate{
		RideID:    ride.ID,
		Status:    string(ride.Status),
		UpdatedBy: actor.ID,
		Timestamp: at,
	}

	if counterpart := ride.Counterpart(actor.ID); counterpart != "" {
		group := realtime.DriverGroup(counterpart)
		if counterpart == ride.CustomerID {
			group = realtime.CustomerGroup(counterpart)
		}
		s.broadcaster.Broadcast(ctx, group, update)
	}

	if ride.Status == domain.RideStatusDriverArrived && ride.DriverID != "" {
		driverName := ""
		if driver, err := s.directory.GetActor(ctx, ride.DriverID); err == nil {
			driverName = driver.DisplayName()
		}
		s.broadcaster.Broadcast(ctx, realtime.CustomerGroup(ride.CustomerID), realtime.DriverArrived{
			RideID:     ride.ID,
			DriverID:   ride.DriverID,
			DriverName: driverName,
			Timestamp:  ride.UpdatedAt,
		})
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
