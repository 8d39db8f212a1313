package tests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ryde/internal/service"
)

func TestDriverLocation_OnlineIsIndexedAndStreamed(t *testing.T) {
	h := newHarness(t)
	driver := h.addDriver("drv-1")

	loc, err := h.driverSvc.UpdateLocation(context.Background(), driver, service.UpdateLocationRequest{
		Lat: -1.2864, Lng: 36.8172, Online: true,
	})
	require.NoError(t, err)
	assert.True(t, loc.IsOnline)

	stored, err := h.locations.Get(context.Background(), "drv-1")
	require.NoError(t, err)
	assert.Equal(t, -1.2864, stored.Lat)
	assert.True(t, h.geoIndex.HasLocation("drv-1"))
	assert.Equal(t, 1, h.stream.Len())
	assert.Empty(t, h.stream.RideIDs[0])
}

func TestDriverLocation_OfflineLeavesIndex(t *testing.T) {
	h := newHarness(t)
	driver := h.addDriver("drv-1")
	ctx := context.Background()

	_, err := h.driverSvc.UpdateLocation(ctx, driver, service.UpdateLocationRequest{Lat: -1.28, Lng: 36.81, Online: true})
	require.NoError(t, err)
	_, err = h.driverSvc.UpdateLocation(ctx, driver, service.UpdateLocationRequest{Lat: -1.28, Lng: 36.81, Online: false})
	require.NoError(t, err)

	stored, err := h.locations.Get(ctx, "drv-1")
	require.NoError(t, err)
	assert.False(t, stored.IsOnline)
	assert.False(t, h.geoIndex.HasLocation("drv-1"))
	assert.Equal(t, 1, h.stream.Len())
}

func TestDriverLocation_Validation(t *testing.T) {
	h := newHarness(t)
	customer := h.addCustomer("cust-1")
	driver := h.addDriver("drv-1")

	_, err := h.driverSvc.UpdateLocation(context.Background(), customer, service.UpdateLocationRequest{Lat: -1.28, Lng: 36.81, Online: true})
	assert.ErrorIs(t, err, service.ErrUnauthorized)

	_, err = h.driverSvc.UpdateLocation(context.Background(), driver, service.UpdateLocationRequest{Lat: 95, Lng: 36.81, Online: true})
	assert.ErrorIs(t, err, service.ErrInvalidLocation)
	assert.Equal(t, int32(0), h.locations.UpsertCallCount)
}

func TestFindNearby_DefaultRadiusAndOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, d := range []struct {
		id       string
		lat, lng float64
	}{
		{"drv-westlands", -1.2676, 36.8108}, // ~3 km
		{"drv-cbd", -1.2850, 36.8200},       // ~0.8 km
		{"drv-thika", -1.0388, 37.0834},     // ~40 km
	} {
		driver := h.addDriver(d.id)
		_, err := h.driverSvc.UpdateLocation(ctx, driver, service.UpdateLocationRequest{Lat: d.lat, Lng: d.lng, Online: true})
		require.NoError(t, err)
	}

	got, err := h.driverSvc.FindNearby(ctx, nairobiLat, nairobiLng, 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "drv-cbd", got[0].DriverID)
	assert.Equal(t, "drv-westlands", got[1].DriverID)

	wide, err := h.driverSvc.FindNearby(ctx, nairobiLat, nairobiLng, 100, 10)
	require.NoError(t, err)
	assert.Len(t, wide, 3)

	limited, err := h.driverSvc.FindNearby(ctx, nairobiLat, nairobiLng, 100, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "drv-cbd", limited[0].DriverID)
}

func TestFindNearby_FallsBackToScan(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	driver := h.addDriver("drv-cbd")
	_, err := h.driverSvc.UpdateLocation(ctx, driver, service.UpdateLocationRequest{Lat: -1.2850, Lng: 36.8200, Online: true})
	require.NoError(t, err)
	h.locations.SetLocation("drv-offline", -1.2851, 36.8201, false)

	h.geoIndex.SearchError = ErrMockTimeout

	got, err := h.driverSvc.FindNearby(ctx, nairobiLat, nairobiLng, 5, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "drv-cbd", got[0].DriverID)
}

func TestFindNearby_Validation(t *testing.T) {
	h := newHarness(t)

	_, err := h.driverSvc.FindNearby(context.Background(), 120, 36.8, 5, 10)
	assert.ErrorIs(t, err, service.ErrInvalidLocation)

	_, err = h.driverSvc.FindNearby(context.Background(), nairobiLat, nairobiLng, -1, 10)
	assert.ErrorIs(t, err, service.ErrInvalidRadius)
}
