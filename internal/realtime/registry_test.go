package realtime

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"ryde/internal/domain"
)

func TestGroupFor(t *testing.T) {
	assert.Equal(t, "driver:d1", GroupFor(domain.ActorTypeDriver, "d1"))
	assert.Equal(t, "driver:b1", GroupFor(domain.ActorTypeBodaRider, "b1"))
	assert.Equal(t, "customer:c1", GroupFor(domain.ActorTypeCustomer, "c1"))
}

func TestRegistry_EnrollIsIdempotent(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	h := newFakeHandle("s1")

	r.Enroll("driver:d1", h)
	r.Enroll("driver:d1", h)

	assert.Equal(t, 1, r.Count("driver:d1"))
}

func TestRegistry_RemovePrunesEmptyGroups(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	h := newFakeHandle("s1")

	r.Remove("driver:d1", h) // never enrolled
	r.Enroll("driver:d1", h)
	r.Remove("driver:d1", h)
	r.Remove("driver:d1", h)

	assert.Equal(t, 0, r.Count("driver:d1"))
	r.mu.RLock()
	_, exists := r.groups["driver:d1"]
	r.mu.RUnlock()
	assert.False(t, exists)
}

func TestRegistry_BroadcastToOfflineGroupIsNoop(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	assert.NotPanics(t, func() {
		r.Broadcast(context.Background(), "customer:nobody", RideTaken{RideID: "r1"})
	})
	assert.Equal(t, 0, r.Deliver("customer:nobody", KindRideTaken, []byte(`{}`)))
}

func TestRegistry_FailedSendDoesNotBlockOthers(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	full := &fakeHandle{id: "full", reject: true}
	ok1 := newFakeHandle("ok1")
	ok2 := newFakeHandle("ok2")
	r.Enroll("driver:d1", full)
	r.Enroll("driver:d1", ok1)
	r.Enroll("driver:d1", ok2)

	delivered := r.Deliver("driver:d1", KindRideTaken, []byte(`{"type":"ride_taken"}`))

	assert.Equal(t, 2, delivered)
	assert.Len(t, ok1.Frames(), 1)
	assert.Len(t, ok2.Frames(), 1)
}

func TestRegistry_AllSessionsOfAnActorReceive(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	phone := newFakeHandle("phone")
	tablet := newFakeHandle("tablet")
	other := newFakeHandle("other")
	r.Enroll("customer:c1", phone)
	r.Enroll("customer:c1", tablet)
	r.Enroll("customer:c2", other)

	r.Broadcast(context.Background(), "customer:c1", RideDeclined{RideID: "r1", DriverID: "d1"})

	for _, h := range []*fakeHandle{phone, tablet} {
		frames := h.Frames()
		if assert.Len(t, frames, 1) {
			kind, data := decodeFrame(t, frames[0])
			assert.Equal(t, "ride_declined", kind)
			assert.Equal(t, "d1", data["driver_id"])
		}
	}
	assert.Empty(t, other.Frames())
}

func TestRegistry_RemovedHandleStopsReceiving(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	h := newFakeHandle("s1")
	r.Enroll("driver:d1", h)
	r.Broadcast(context.Background(), "driver:d1", RideTaken{RideID: "r1"})
	r.Remove("driver:d1", h)
	r.Broadcast(context.Background(), "driver:d1", RideTaken{RideID: "r2"})

	assert.Len(t, h.Frames(), 1)
}

func TestRegistry_ConcurrentUse(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			group := fmt.Sprintf("driver:d%d", i%4)
			h := newFakeHandle(fmt.Sprintf("s%d", i))
			for j := 0; j < 50; j++ {
				r.Enroll(group, h)
				r.Broadcast(context.Background(), group, RideTaken{RideID: "r"})
				r.Remove(group, h)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		assert.Equal(t, 0, r.Count(fmt.Sprintf("driver:d%d", i)))
	}
}
