package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"ryde/internal/domain"
	"ryde/internal/geo"
	"ryde/internal/observability"
	"ryde/internal/realtime"
	"ryde/internal/redis"
	"ryde/internal/repository"
)

// DispatchPolicy holds the tunables of candidate selection.
type DispatchPolicy struct {
	MaxRadiusKm  float64
	MinutesPerKm float64
	LockTTL      time.Duration
}

// Candidate is a driver offered a ride.
type Candidate struct {
	DriverID   string
	DistanceKm float64
	ETAMinutes float64
	Online     bool
}

// Dispatcher offers a newly requested ride to the drivers around its pickup point.
type Dispatcher struct {
	actors      repository.ActorRepository
	locations   repository.LocationRepository
	broadcaster realtime.Broadcaster
	locks       redis.LockStoreInterface
	policy      DispatchPolicy
	log         *zap.Logger
}

// NewDispatcher creates a new Dispatcher. locks may be nil.
func NewDispatcher(
	actors repository.ActorRepository,
	locations repository.LocationRepository,
	broadcaster realtime.Broadcaster,
	locks redis.LockStoreInterface,
	policy DispatchPolicy,
	log *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		actors:      actors,
		locations:   locations,
		broadcaster: broadcaster,
		locks:       locks,
		policy:      policy,
		log:         log,
	}
}

// Dispatch sends new_ride_request to every approved, active driver within the
// policy radius, nearest first, and returns who was offered the ride. It never
// mutates the ride. Offline drivers simply miss the offer.
func (d *Dispatcher) Dispatch(ctx context.Context, ride *domain.Ride, customer *domain.Actor) ([]Candidate, error) {
	locked := false
	if d.locks != nil {
		acquired, err := d.locks.AcquireDispatchLock(ctx, ride.ID, d.policy.LockTTL)
		if err != nil {
			d.log.Warn("dispatch lock unavailable, dispatching anyway", zap.String("ride_id", ride.ID), zap.Error(err))
		} else if !acquired {
			d.log.Info("ride already dispatched", zap.String("ride_id", ride.ID))
			return nil, nil
		}
		locked = acquired
	}

	candidates, err := d.Candidates(ctx, ride)
	if err != nil {
		// Nothing was offered, so a retry must be able to dispatch again.
		if locked {
			if rerr := d.locks.ReleaseDispatchLock(ctx, ride.ID); rerr != nil {
				d.log.Warn("dispatch lock release failed", zap.String("ride_id", ride.ID), zap.Error(rerr))
			}
		}
		return nil, err
	}

	for _, c := range candidates {
		d.broadcaster.Broadcast(ctx, realtime.DriverGroup(c.DriverID), realtime.NewRideRequest{
			RideID:         ride.ID,
			CustomerName:   customer.DisplayName(),
			CustomerPhone:  customer.Phone,
			PickupAddress:  ride.PickupAddress,
			DropoffAddress: ride.DropoffAddress,
			PickupLat:      ride.PickupLat,
			PickupLng:      ride.PickupLng,
			DropoffLat:     ride.DropoffLat,
			DropoffLng:     ride.DropoffLng,
			Fare:           ride.Fare,
			ServiceType:    ride.ServiceType,
			DistanceKm:     geo.Round2(c.DistanceKm),
			ETAMinutes:     c.ETAMinutes,
			CreatedAt:      ride.CreatedAt,
		})
	}

	observability.DispatchCandidates.Observe(float64(len(candidates)))
	d.log.Info("ride dispatched",
		zap.String("ride_id", ride.ID),
		zap.Int("candidates", len(candidates)),
		zap.Float64("radius_km", d.policy.MaxRadiusKm),
	)
	return candidates, nil
}

// Candidates ranks the drivers eligible for ride by distance to pickup. A
// driver with no location row is placed at the pickup point, offline.
func (d *Dispatcher) Candidates(ctx context.Context, ride *domain.Ride) ([]Candidate, error) {
	drivers, err := d.actors.ListDispatchable(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(drivers))
	for _, drv := range drivers {
		ids = append(ids, drv.ID)
	}
	locs, err := d.locations.GetMany(ctx, ids)
	if err != nil {
		d.log.Warn("driver locations unavailable, using pickup point", zap.String("ride_id", ride.ID), zap.Error(err))
		locs = nil
	}

	pickup := geo.Point{Lat: ride.PickupLat, Lng: ride.PickupLng}
	candidates := make([]Candidate, 0, len(drivers))
	for _, drv := range drivers {
		if !drv.CanDrive() {
			continue
		}

		at, online := pickup, false
		if loc, ok := locs[drv.ID]; ok {
			at, online = geo.Point{Lat: loc.Lat, Lng: loc.Lng}, loc.IsOnline
		}

		distance := geo.HaversineKm(at, pickup)
		if !geo.WithinRadius(distance, d.policy.MaxRadiusKm) {
			continue
		}
		candidates = append(candidates, Candidate{
			DriverID:   drv.ID,
			DistanceKm: distance,
			ETAMinutes: geo.EstimateETAMinutes(distance, d.policy.MinutesPerKm),
			Online:     online,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].DistanceKm < candidates[j].DistanceKm
	})
	return candidates, nil
}
