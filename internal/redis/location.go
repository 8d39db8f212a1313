package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const onlineDriversKey = "drivers:online"

// NearbyDriver is a hit from the online driver index.
type NearbyDriver struct {
	DriverID   string
	Lat        float64
	Lng        float64
	DistanceKm float64
}

// LocationStore keeps the GEO index of online drivers.
type LocationStore struct {
	client *redis.Client
}

// NewLocationStore creates a new LocationStore.
func NewLocationStore(client *redis.Client) *LocationStore {
	return &LocationStore{client: client}
}

// UpdateLocation stores a driver's position using GEOADD.
func (s *LocationStore) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	return s.client.GeoAdd(ctx, onlineDriversKey, &redis.GeoLocation{
		Name:      driverID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// FindNearbyDrivers returns online drivers within radiusKm, nearest first.
// A limit of zero returns every match.
func (s *LocationStore) FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]NearbyDriver, error) {
	results, err := s.client.GeoSearchLocation(ctx, onlineDriversKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lng,
			Latitude:   lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, err
	}

	drivers := make([]NearbyDriver, 0, len(results))
	for _, r := range results {
		drivers = append(drivers, NearbyDriver{
			DriverID:   r.Name,
			Lat:        r.Latitude,
			Lng:        r.Longitude,
			DistanceKm: r.Dist,
		})
	}
	return drivers, nil
}

// RemoveLocation drops a driver from the index when they go offline.
func (s *LocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	return s.client.ZRem(ctx, onlineDriversKey, driverID).Err()
}
