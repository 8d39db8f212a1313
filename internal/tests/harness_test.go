package tests

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"ryde/internal/domain"
	"ryde/internal/realtime"
	"ryde/internal/service"
)

// Nairobi CBD and points around it.
const (
	nairobiLat = -1.2921
	nairobiLng = 36.8219
)

type harness struct {
	rides       *MockRideRepository
	actors      *MockActorRepository
	vehicles    *MockVehicleRepository
	locations   *MockLocationRepository
	geoIndex    *MockLocationStore
	locks       *MockLockStore
	cache       *MockCacheStore
	broadcaster *RecordingBroadcaster
	sink        *MockSink
	stream      *MockLocationStream

	directory *service.DirectoryService
	machine   *service.StateMachine
	dispatch  *service.Dispatcher
	accept    *service.AcceptService
	relay     *service.RelayService
	rideSvc   *service.RideService
	driverSvc *service.DriverService
	inbound   *service.InboundRouter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, nil)
}

// newHarnessWith wires the services to bus instead of the recording
// broadcaster when bus is set.
func newHarnessWith(t *testing.T, bus realtime.Broadcaster) *harness {
	t.Helper()
	log := zap.NewNop()

	h := &harness{
		rides:       NewMockRideRepository(),
		actors:      NewMockActorRepository(),
		vehicles:    NewMockVehicleRepository(),
		locations:   NewMockLocationRepository(),
		geoIndex:    NewMockLocationStore(),
		locks:       NewMockLockStore(),
		cache:       NewMockCacheStore(),
		broadcaster: NewRecordingBroadcaster(),
		sink:        &MockSink{},
		stream:      &MockLocationStream{},
	}

	if bus == nil {
		bus = h.broadcaster
	}

	notifier := service.NewNotificationService(h.sink, log)
	h.directory = service.NewDirectoryService(h.actors, h.cache, log)
	h.machine = service.NewStateMachine(h.rides)
	h.dispatch = service.NewDispatcher(h.actors, h.locations, bus, h.locks, service.DispatchPolicy{
		MaxRadiusKm:  50,
		MinutesPerKm: 2,
		LockTTL:      time.Minute,
	}, log)
	h.accept = service.NewAcceptService(h.rides, h.directory, h.vehicles, h.locations, h.geoIndex, bus, notifier, log)
	h.relay = service.NewRelayService(h.rides, bus, h.stream, notifier, log)
	h.rideSvc = service.NewRideService(h.rides, h.directory, h.machine, h.dispatch, h.accept, bus, notifier, log)
	h.driverSvc = service.NewDriverService(h.locations, h.geoIndex, h.stream, 5, log)
	h.inbound = service.NewInboundRouter(h.relay, h.accept, log)
	return h
}

func (h *harness) addCustomer(id string) *domain.Actor {
	a := &domain.Actor{
		ID:        id,
		Type:      domain.ActorTypeCustomer,
		FirstName: "Wanjiku",
		LastName:  "Kamau",
		Phone:     "+254700000001",
		IsActive:  true,
	}
	h.actors.AddActor(a)
	return a
}

func (h *harness) addDriver(id string) *domain.Actor {
	a := &domain.Actor{
		ID:         id,
		Type:       domain.ActorTypeDriver,
		FirstName:  "Otieno",
		LastName:   "Odhiambo",
		Phone:      "+254711000000",
		IsApproved: true,
		IsActive:   true,
	}
	h.actors.AddActor(a)
	return a
}

// addRide stores a ride in the given status. Rides past requested get driverID.
func (h *harness) addRide(id, customerID, driverID string, status domain.RideStatus) *domain.Ride {
	r := &domain.Ride{
		ID:          id,
		CustomerID:  customerID,
		DriverID:    driverID,
		Status:      status,
		PickupLat:   nairobiLat,
		PickupLng:   nairobiLng,
		DropoffLat:  -1.3032,
		DropoffLng:  36.7073,
		ServiceType: domain.VehicleTypeEconomy,
		Fare:        750,
		CreatedAt:   time.Now().Add(-time.Minute),
		UpdatedAt:   time.Now().Add(-time.Minute),
	}
	h.rides.AddRide(r)
	return r
}
