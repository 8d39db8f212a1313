// Package geo holds the distance math used by dispatch and the read APIs.
package geo

import "math"

const earthRadiusKm = 6371.0

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64
	Lng float64
}

// Valid reports whether the point lies within latitude/longitude bounds.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// HaversineKm returns the great-circle distance between two points in kilometers.
func HaversineKm(a, b Point) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// WithinRadius reports whether distanceKm is inside radiusKm. The bound is inclusive.
func WithinRadius(distanceKm, radiusKm float64) bool {
	return distanceKm <= radiusKm
}

// EstimateETAMinutes is the coarse pickup ETA shown to drivers.
func EstimateETAMinutes(distanceKm, minutesPerKm float64) float64 {
	return Round2(distanceKm * minutesPerKm)
}

// Straight-line fare used when the caller supplies none (KSH).
const (
	BaseFare  = 100.0
	PerKmRate = 50.0
)

// EstimateFare prices a trip from its straight-line distance.
func EstimateFare(pickup, dropoff Point) float64 {
	return Round2(BaseFare + HaversineKm(pickup, dropoff)*PerKmRate)
}

// Round2 rounds to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
