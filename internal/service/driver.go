package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"ryde/internal/domain"
	"ryde/internal/geo"
	"ryde/internal/redis"
	"ryde/internal/repository"
)

// DriverService handles driver presence and proximity queries.
type DriverService struct {
	locations      repository.LocationRepository
	locationStore  redis.LocationStoreInterface
	stream         LocationPublisher
	nearbyRadiusKm float64
	log            *zap.Logger
	now            func() time.Time
}

// NewDriverService creates a new DriverService. locationStore and stream may be nil.
func NewDriverService(
	locations repository.LocationRepository,
	locationStore redis.LocationStoreInterface,
	stream LocationPublisher,
	nearbyRadiusKm float64,
	log *zap.Logger,
) *DriverService {
	return &DriverService{
		locations:      locations,
		locationStore:  locationStore,
		stream:         stream,
		nearbyRadiusKm: nearbyRadiusKm,
		log:            log,
		now:            time.Now,
	}
}

// UpdateLocationRequest contains the parameters for updating driver location.
type UpdateLocationRequest struct {
	Lat    float64
	Lng    float64
	Online bool
}

// UpdateLocation upserts the driver's row and keeps the online GEO index in
// step: online drivers are indexed, offline drivers are removed.
func (s *DriverService) UpdateLocation(ctx context.Context, driver *domain.Actor, req UpdateLocationRequest) (*domain.DriverLocation, error) {
	if driver == nil || !driver.Type.IsDriver() {
		return nil, ErrUnauthorized
	}
	if !(geo.Point{Lat: req.Lat, Lng: req.Lng}).Valid() {
		return nil, ErrInvalidLocation
	}

	loc := &domain.DriverLocation{
		DriverID:  driver.ID,
		Lat:       req.Lat,
		Lng:       req.Lng,
		IsOnline:  req.Online,
		UpdatedAt: s.now(),
	}
	if err := s.locations.Upsert(ctx, loc); err != nil {
		return nil, err
	}

	if s.locationStore != nil {
		var err error
		if loc.IsOnline {
			err = s.locationStore.UpdateLocation(ctx, loc.DriverID, loc.Lat, loc.Lng)
		} else {
			err = s.locationStore.RemoveLocation(ctx, loc.DriverID)
		}
		if err != nil {
			s.log.Warn("geo index update failed", zap.String("driver_id", loc.DriverID), zap.Error(err))
		}
	}

	if s.stream != nil && loc.IsOnline {
		if err := s.stream.PublishLocation(ctx, *loc, ""); err != nil {
			s.log.Warn("location stream publish failed", zap.String("driver_id", loc.DriverID), zap.Error(err))
		}
	}
	return loc, nil
}

// NearbyDriver is an online driver near a point.
type NearbyDriver struct {
	DriverID   string
	Lat        float64
	Lng        float64
	DistanceKm float64
}

// FindNearby returns online drivers within radiusKm of (lat, lng), nearest
// first. A zero radius uses the configured default.
func (s *DriverService) FindNearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]NearbyDriver, error) {
	center := geo.Point{Lat: lat, Lng: lng}
	if !center.Valid() {
		return nil, ErrInvalidLocation
	}
	if radiusKm == 0 {
		radiusKm = s.nearbyRadiusKm
	}
	if radiusKm < 0 {
		return nil, ErrInvalidRadius
	}

	if s.locationStore != nil {
		hits, err := s.locationStore.FindNearbyDrivers(ctx, lat, lng, radiusKm, limit)
		if err == nil {
			out := make([]NearbyDriver, 0, len(hits))
			for _, h := range hits {
				out = append(out, NearbyDriver{DriverID: h.DriverID, Lat: h.Lat, Lng: h.Lng, DistanceKm: geo.Round2(h.DistanceKm)})
			}
			return out, nil
		}
		s.log.Warn("geo index query failed, scanning online drivers", zap.Error(err))
	}

	return s.scanNearby(ctx, center, radiusKm, limit)
}

func (s *DriverService) scanNearby(ctx context.Context, center geo.Point, radiusKm float64, limit int) ([]NearbyDriver, error) {
	online, err := s.locations.ListOnline(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]NearbyDriver, 0, len(online))
	for _, loc := range online {
		d := geo.HaversineKm(center, geo.Point{Lat: loc.Lat, Lng: loc.Lng})
		if !geo.WithinRadius(d, radiusKm) {
			continue
		}
		out = append(out, NearbyDriver{DriverID: loc.DriverID, Lat: loc.Lat, Lng: loc.Lng, DistanceKm: geo.Round2(d)})
	}
	sortNearby(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortNearby(drivers []NearbyDriver) {
	sort.SliceStable(drivers, func(i, j int) bool {
		return drivers[i].DistanceKm < drivers[j].DistanceKm
	})
}
