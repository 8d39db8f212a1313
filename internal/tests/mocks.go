package tests

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"ryde/internal/audit"
	"ryde/internal/domain"
	"ryde/internal/geo"
	"ryde/internal/realtime"
	"ryde/internal/redis"
	"ryde/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK RIDE REPOSITORY
// ──────────────────────────────────────────────

// MockRideRepository is an in-memory RideRepository. UpdateStatus and
// AssignDriver compare and swap under one lock, like the SQL they stand in for.
type MockRideRepository struct {
	mu    sync.RWMutex
	rides map[string]*domain.Ride

	// Counters for verification
	CreateCallCount       int32
	AssignDriverCallCount int32
	UpdateStatusCallCount int32

	// Error injection
	CreateError error
}

// NewMockRideRepository creates a new mock ride repository.
func NewMockRideRepository() *MockRideRepository {
	return &MockRideRepository{
		rides: make(map[string]*domain.Ride),
	}
}

// AddRide adds a ride to the mock repository.
func (m *MockRideRepository) AddRide(ride *domain.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ride
	m.rides[ride.ID] = &cp
}

func (m *MockRideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ride
	m.rides[ride.ID] = &cp
	return nil
}

func (m *MockRideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *ride
	return &cp, nil
}

func (m *MockRideRepository) ListByStatus(ctx context.Context, status domain.RideStatus, limit int) ([]*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Ride
	for _, r := range m.rides {
		if r.Status == status {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return truncate(out, limit), nil
}

func (m *MockRideRepository) ListByActor(ctx context.Context, actorID string, limit int) ([]*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Ride
	for _, r := range m.rides {
		if r.IsParticipant(actorID) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return truncate(out, limit), nil
}

func (m *MockRideRepository) UpdateStatus(ctx context.Context, id string, expected, next domain.RideStatus, at time.Time) (*domain.Ride, error) {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if ride.Status != expected {
		return nil, repository.ErrStatusConflict
	}
	ride.Status = next
	ride.UpdatedAt = at
	switch next {
	case domain.RideStatusInProgress:
		if ride.PickedUpAt.IsZero() {
			ride.PickedUpAt = at
		}
	case domain.RideStatusCompleted:
		if ride.DroppedOffAt.IsZero() {
			ride.DroppedOffAt = at
		}
	}
	cp := *ride
	return &cp, nil
}

func (m *MockRideRepository) AssignDriver(ctx context.Context, id, driverID string, at time.Time) (*domain.Ride, error) {
	atomic.AddInt32(&m.AssignDriverCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if ride.Status != domain.RideStatusRequested {
		return nil, repository.ErrStatusConflict
	}
	ride.DriverID = driverID
	ride.Status = domain.RideStatusAccepted
	ride.UpdatedAt = at
	cp := *ride
	return &cp, nil
}

// GetRide returns a copy of the stored ride (for test assertions).
func (m *MockRideRepository) GetRide(id string) *domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil
	}
	cp := *ride
	return &cp
}

// CountRides returns the number of stored rides.
func (m *MockRideRepository) CountRides() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rides)
}

func truncate(rides []*domain.Ride, limit int) []*domain.Ride {
	if limit > 0 && len(rides) > limit {
		return rides[:limit]
	}
	return rides
}

// ──────────────────────────────────────────────
// MOCK ACTOR / VEHICLE / LOCATION REPOSITORIES
// ──────────────────────────────────────────────

// MockActorRepository is an in-memory user directory.
type MockActorRepository struct {
	mu     sync.RWMutex
	actors map[string]*domain.Actor

	GetByIDCallCount int32
	ListError        error
}

// NewMockActorRepository creates a new mock actor repository.
func NewMockActorRepository() *MockActorRepository {
	return &MockActorRepository{actors: make(map[string]*domain.Actor)}
}

// AddActor adds an actor to the mock repository.
func (m *MockActorRepository) AddActor(actor *domain.Actor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actors[actor.ID] = actor
}

func (m *MockActorRepository) GetByID(ctx context.Context, id string) (*domain.Actor, error) {
	atomic.AddInt32(&m.GetByIDCallCount, 1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	actor, ok := m.actors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *actor
	return &cp, nil
}

func (m *MockActorRepository) ListDispatchable(ctx context.Context) ([]*domain.Actor, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Actor
	for _, a := range m.actors {
		if a.CanDrive() {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MockVehicleRepository is an in-memory VehicleRepository.
type MockVehicleRepository struct {
	mu       sync.RWMutex
	vehicles map[string]*domain.Vehicle
}

// NewMockVehicleRepository creates a new mock vehicle repository.
func NewMockVehicleRepository() *MockVehicleRepository {
	return &MockVehicleRepository{vehicles: make(map[string]*domain.Vehicle)}
}

// AddVehicle registers a vehicle.
func (m *MockVehicleRepository) AddVehicle(v *domain.Vehicle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[v.DriverID] = v
}

func (m *MockVehicleRepository) GetByDriverID(ctx context.Context, driverID string) (*domain.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vehicles[driverID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

// MockLocationRepository is an in-memory LocationRepository.
type MockLocationRepository struct {
	mu        sync.RWMutex
	locations map[string]*domain.DriverLocation

	UpsertCallCount int32
}

// NewMockLocationRepository creates a new mock location repository.
func NewMockLocationRepository() *MockLocationRepository {
	return &MockLocationRepository{locations: make(map[string]*domain.DriverLocation)}
}

// SetLocation stores a driver location directly.
func (m *MockLocationRepository) SetLocation(driverID string, lat, lng float64, online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[driverID] = &domain.DriverLocation{DriverID: driverID, Lat: lat, Lng: lng, IsOnline: online, UpdatedAt: time.Now()}
}

func (m *MockLocationRepository) Get(ctx context.Context, driverID string) (*domain.DriverLocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.locations[driverID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *loc
	return &cp, nil
}

func (m *MockLocationRepository) GetMany(ctx context.Context, driverIDs []string) (map[string]*domain.DriverLocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*domain.DriverLocation, len(driverIDs))
	for _, id := range driverIDs {
		if loc, ok := m.locations[id]; ok {
			cp := *loc
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *MockLocationRepository) Upsert(ctx context.Context, loc *domain.DriverLocation) error {
	atomic.AddInt32(&m.UpsertCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *loc
	m.locations[loc.DriverID] = &cp
	return nil
}

func (m *MockLocationRepository) ListOnline(ctx context.Context) ([]*domain.DriverLocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.DriverLocation
	for _, loc := range m.locations {
		if loc.IsOnline {
			cp := *loc
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriverID < out[j].DriverID })
	return out, nil
}

// ──────────────────────────────────────────────
// MOCK REDIS STORES
// ──────────────────────────────────────────────

// MockLocationStore is an in-memory GEO index.
type MockLocationStore struct {
	mu        sync.RWMutex
	locations map[string]geo.Point

	// Error injection
	SearchError error
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{locations: make(map[string]geo.Point)}
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[driverID] = geo.Point{Lat: lat, Lng: lng}
	return nil
}

func (m *MockLocationStore) FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]redis.NearbyDriver, error) {
	if m.SearchError != nil {
		return nil, m.SearchError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	center := geo.Point{Lat: lat, Lng: lng}
	var out []redis.NearbyDriver
	for id, p := range m.locations {
		d := geo.HaversineKm(center, p)
		if d <= radiusKm {
			out = append(out, redis.NearbyDriver{DriverID: id, Lat: p.Lat, Lng: p.Lng, DistanceKm: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locations, driverID)
	return nil
}

// HasLocation checks if a driver is indexed (for test assertions).
func (m *MockLocationStore) HasLocation(driverID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.locations[driverID]
	return ok
}

// MockLockStore is an in-memory dispatch lock.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]time.Time

	AcquireCallCount int32
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{locks: make(map[string]time.Time)}
}

func (m *MockLockStore) AcquireDispatchLock(ctx context.Context, rideID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if expiry, ok := m.locks[rideID]; ok && time.Now().Before(expiry) {
		return false, nil
	}
	m.locks[rideID] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockLockStore) ReleaseDispatchLock(ctx context.Context, rideID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, rideID)
	return nil
}

// MockCacheStore is an in-memory actor cache.
type MockCacheStore struct {
	mu     sync.Mutex
	actors map[string]*redis.CachedActor
}

// NewMockCacheStore creates a new mock cache store.
func NewMockCacheStore() *MockCacheStore {
	return &MockCacheStore{actors: make(map[string]*redis.CachedActor)}
}

func (m *MockCacheStore) GetActor(ctx context.Context, actorID string) (*redis.CachedActor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.actors[actorID], nil
}

func (m *MockCacheStore) SetActor(ctx context.Context, actor *redis.CachedActor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actors[actor.ID] = actor
	return nil
}

func (m *MockCacheStore) InvalidateActor(ctx context.Context, actorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.actors, actorID)
	return nil
}

// MockIdempotencyStore is an in-memory replay cache.
type MockIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string][]byte
}

// NewMockIdempotencyStore creates a new mock idempotency store.
func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{entries: make(map[string][]byte)}
}

func (m *MockIdempotencyStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.entries[key]
	return data, ok, nil
}

func (m *MockIdempotencyStore) Save(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = data
	return nil
}

// ──────────────────────────────────────────────
// RECORDING BROADCASTER / SINKS
// ──────────────────────────────────────────────

// Delivery is one recorded broadcast.
type Delivery struct {
	Group string
	Event realtime.Event
}

// RecordingBroadcaster records every broadcast instead of delivering it.
type RecordingBroadcaster struct {
	mu         sync.Mutex
	deliveries []Delivery
}

// NewRecordingBroadcaster creates a new RecordingBroadcaster.
func NewRecordingBroadcaster() *RecordingBroadcaster {
	return &RecordingBroadcaster{}
}

func (b *RecordingBroadcaster) Broadcast(ctx context.Context, group string, event realtime.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliveries = append(b.deliveries, Delivery{Group: group, Event: event})
}

// To returns the events sent to group, in order.
func (b *RecordingBroadcaster) To(group string) []realtime.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []realtime.Event
	for _, d := range b.deliveries {
		if d.Group == group {
			out = append(out, d.Event)
		}
	}
	return out
}

// OfKind returns every delivery of the given kind.
func (b *RecordingBroadcaster) OfKind(kind realtime.EventKind) []Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Delivery
	for _, d := range b.deliveries {
		if d.Event.Kind() == kind {
			out = append(out, d)
		}
	}
	return out
}

// Count returns the number of recorded broadcasts.
func (b *RecordingBroadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.deliveries)
}

// Reset forgets everything recorded so far.
func (b *RecordingBroadcaster) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliveries = nil
}

// MockSink records audit records.
type MockSink struct {
	mu      sync.Mutex
	records []audit.Record
}

func (s *MockSink) Publish(ctx context.Context, rec audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *MockSink) Close() error { return nil }

// Types returns the recorded record types, in order.
func (s *MockSink) Types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Type)
	}
	return out
}

// MockLocationStream records published location samples.
type MockLocationStream struct {
	mu      sync.Mutex
	Samples []domain.DriverLocation
	RideIDs []string
}

func (s *MockLocationStream) PublishLocation(ctx context.Context, loc domain.DriverLocation, rideID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Samples = append(s.Samples, loc)
	s.RideIDs = append(s.RideIDs, rideID)
	return nil
}

// Len returns the number of published samples.
func (s *MockLocationStream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Samples)
}

// ──────────────────────────────────────────────
// HELPER ERRORS
// ──────────────────────────────────────────────

var (
	ErrMockDBConstraint = errors.New("mock: unique constraint violation")
	ErrMockTimeout      = errors.New("mock: operation timeout")
)

var (
	_ repository.RideRepository       = (*MockRideRepository)(nil)
	_ repository.ActorRepository      = (*MockActorRepository)(nil)
	_ repository.VehicleRepository    = (*MockVehicleRepository)(nil)
	_ repository.LocationRepository   = (*MockLocationRepository)(nil)
	_ redis.LocationStoreInterface    = (*MockLocationStore)(nil)
	_ redis.LockStoreInterface        = (*MockLockStore)(nil)
	_ redis.CacheStoreInterface       = (*MockCacheStore)(nil)
	_ redis.IdempotencyStoreInterface = (*MockIdempotencyStore)(nil)
	_ realtime.Broadcaster            = (*RecordingBroadcaster)(nil)
	_ audit.Sink                      = (*MockSink)(nil)
)
