package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"ryde/internal/domain"
	"ryde/internal/observability"
	"ryde/internal/realtime"
	"ryde/internal/redis"
	"ryde/internal/repository"
)

// AcceptService resolves the race between drivers for one ride.
type AcceptService struct {
	rides       repository.RideRepository
	directory   realtime.ActorDirectory
	vehicles    repository.VehicleRepository
	locations   repository.LocationRepository
	geoIndex    redis.LocationStoreInterface
	broadcaster realtime.Broadcaster
	notifier    *NotificationService
	log         *zap.Logger
	now         func() time.Time
}

// NewAcceptService creates a new AcceptService. geoIndex and notifier may be nil.
func NewAcceptService(
	rides repository.RideRepository,
	directory realtime.ActorDirectory,
	vehicles repository.VehicleRepository,
	locations repository.LocationRepository,
	geoIndex redis.LocationStoreInterface,
	broadcaster realtime.Broadcaster,
	notifier *NotificationService,
	log *zap.Logger,
) *AcceptService {
	return &AcceptService{
		rides:       rides,
		directory:   directory,
		vehicles:    vehicles,
		locations:   locations,
		geoIndex:    geoIndex,
		broadcaster: broadcaster,
		notifier:    notifier,
		log:         log,
		now:         time.Now,
	}
}

// Accept assigns the ride to driver if it is still requested. The assignment
// is a single conditional write, so of any number of concurrent callers at
// most one succeeds; the rest get ErrRideAlreadyTaken.
func (s *AcceptService) Accept(ctx context.Context, rideID string, driver *domain.Actor) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if driver == nil || !driver.CanDrive() {
		return nil, ErrUnauthorized
	}

	now := s.now()
	ride, err := s.rides.AssignDriver(ctx, rideID, driver.ID, now)
	if errors.Is(err, repository.ErrStatusConflict) {
		observability.AcceptOutcomes.WithLabelValues("taken").Inc()
		return nil, ErrRideAlreadyTaken
	}
	if err != nil {
		return nil, err
	}
	observability.AcceptOutcomes.WithLabelValues("won").Inc()

	loc := &domain.DriverLocation{
		DriverID:  driver.ID,
		Lat:       ride.PickupLat,
		Lng:       ride.PickupLng,
		IsOnline:  true,
		UpdatedAt: now,
	}
	if err := s.locations.Upsert(ctx, loc); err != nil {
		s.log.Warn("snap driver to pickup failed", zap.String("driver_id", driver.ID), zap.Error(err))
	}
	if s.geoIndex != nil {
		if err := s.geoIndex.UpdateLocation(ctx, driver.ID, loc.Lat, loc.Lng); err != nil {
			s.log.Warn("geo index update failed", zap.String("driver_id", driver.ID), zap.Error(err))
		}
	}

	s.broadcaster.Broadcast(ctx, realtime.CustomerGroup(ride.CustomerID), s.acceptedEvent(ctx, ride, driver, "", ""))
	s.broadcaster.Broadcast(ctx, realtime.DriverGroup(driver.ID), s.acceptedSelfEvent(ctx, ride))
	s.notifyLosers(ctx, ride)

	s.notifier.NotifyRideAccepted(ctx, ride, driver)
	s.log.Info("ride accepted", zap.String("ride_id", ride.ID), zap.String("driver_id", driver.ID))
	return ride, nil
}

// Decline tells the customer that driver passed on the ride. The ride is not changed.
func (s *AcceptService) Decline(ctx context.Context, rideID string, driver *domain.Actor) error {
	if rideID == "" {
		return ErrInvalidRideID
	}
	if driver == nil || !driver.Type.IsDriver() {
		return ErrUnauthorized
	}

	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return err
	}
	if ride.Status != domain.RideStatusRequested {
		return ErrRideNotOpen
	}

	s.broadcaster.Broadcast(ctx, realtime.CustomerGroup(ride.CustomerID), realtime.RideDeclined{
		RideID:    ride.ID,
		DriverID:  driver.ID,
		Timestamp: s.now(),
	})
	s.notifier.NotifyRideDeclined(ctx, ride, driver.ID)
	return nil
}

// ConfirmAccepted forwards a driver's ride_accepted echo, with the vehicle
// details the client supplied, to the customer. Only the assigned driver may
// send it.
func (s *AcceptService) ConfirmAccepted(ctx context.Context, driver *domain.Actor, msg realtime.RideAcceptedMessage) error {
	ride, err := s.rides.GetByID(ctx, msg.RideID)
	if err != nil {
		return err
	}
	if ride.DriverID == "" || ride.DriverID != driver.ID {
		return ErrUnauthorized
	}

	s.broadcaster.Broadcast(ctx, realtime.CustomerGroup(ride.CustomerID),
		s.acceptedEvent(ctx, ride, driver, msg.VehicleType, msg.LicensePlate))
	return nil
}

func (s *AcceptService) acceptedEvent(ctx context.Context, ride *domain.Ride, driver *domain.Actor, vehicleType, plate string) realtime.RideAccepted {
	if vehicleType == "" || plate == "" {
		v, err := s.vehicles.GetByDriverID(ctx, driver.ID)
		switch {
		case err == nil:
			if vehicleType == "" {
				vehicleType = string(v.Type)
			}
			if plate == "" {
				plate = v.LicensePlate
			}
		case !errors.Is(err, repository.ErrNotFound):
			s.log.Warn("vehicle lookup failed", zap.String("driver_id", driver.ID), zap.Error(err))
		}
	}

	return realtime.RideAccepted{
		RideID:       ride.ID,
		DriverID:     driver.ID,
		DriverName:   driver.DisplayName(),
		DriverPhone:  driver.Phone,
		VehicleType:  vehicleType,
		LicensePlate: plate,
		Timestamp:    ride.UpdatedAt,
	}
}

func (s *AcceptService) acceptedSelfEvent(ctx context.Context, ride *domain.Ride) realtime.RideAcceptedSelf {
	ev := realtime.RideAcceptedSelf{
		RideID:         ride.ID,
		Status:         ride.Status,
		PickupAddress:  ride.PickupAddress,
		DropoffAddress: ride.DropoffAddress,
		Fare:           ride.Fare,
		Timestamp:      ride.UpdatedAt,
	}
	customer, err := s.directory.GetActor(ctx, ride.CustomerID)
	if err != nil {
		s.log.Warn("customer lookup failed", zap.String("ride_id", ride.ID), zap.Error(err))
		return ev
	}
	ev.CustomerName = customer.DisplayName()
	ev.CustomerPhone = customer.Phone
	return ev
}

// notifyLosers withdraws the offer from every other online driver.
func (s *AcceptService) notifyLosers(ctx context.Context, ride *domain.Ride) {
	online, err := s.locations.ListOnline(ctx)
	if err != nil {
		s.log.Warn("list online drivers failed", zap.String("ride_id", ride.ID), zap.Error(err))
		return
	}

	taken := realtime.RideTaken{RideID: ride.ID, Message: "Ride taken by another driver"}
	for _, loc := range online {
		if loc.DriverID == ride.DriverID {
			continue
		}
		s.broadcaster.Broadcast(ctx, realtime.DriverGroup(loc.DriverID), taken)
	}
}
