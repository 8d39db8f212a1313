package tests

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ryde/internal/domain"
	"ryde/internal/realtime"
	"ryde/internal/service"
)

func TestLifecycle_HappyPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addCustomer("cust-1")
	driver := h.addDriver("drv-1")
	h.addRide("ride-1", "cust-1", "", domain.RideStatusRequested)

	_, err := h.rideSvc.AcceptRide(ctx, "ride-1", driver)
	require.NoError(t, err)
	h.broadcaster.Reset()

	ride, err := h.rideSvc.UpdateStatus(ctx, "ride-1", driver, domain.RideStatusDriverArrived)
	require.NoError(t, err)
	assert.Equal(t, domain.RideStatusDriverArrived, ride.Status)

	toCustomer := h.broadcaster.To(realtime.CustomerGroup("cust-1"))
	require.Len(t, toCustomer, 2)
	update := toCustomer[0].(realtime.RideStatusUpdate)
	assert.Equal(t, "driver_arrived", update.Status)
	assert.Equal(t, "drv-1", update.UpdatedBy)
	arrived := toCustomer[1].(realtime.DriverArrived)
	assert.Equal(t, "drv-1", arrived.DriverID)
	assert.Equal(t, "Otieno Odhiambo", arrived.DriverName)

	ride, err = h.rideSvc.UpdateStatus(ctx, "ride-1", driver, domain.RideStatusInProgress)
	require.NoError(t, err)
	assert.False(t, ride.PickedUpAt.IsZero())
	assert.True(t, ride.DroppedOffAt.IsZero())

	ride, err = h.rideSvc.UpdateStatus(ctx, "ride-1", driver, domain.RideStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.RideStatusCompleted, ride.Status)
	assert.False(t, ride.DroppedOffAt.IsZero())

	statuses := []string{}
	for _, e := range h.broadcaster.To(realtime.CustomerGroup("cust-1")) {
		if u, ok := e.(realtime.RideStatusUpdate); ok {
			statuses = append(statuses, u.Status)
		}
	}
	assert.Equal(t, []string{"driver_arrived", "in_progress", "completed"}, statuses)
}

func TestLifecycle_IllegalTransitionsLeaveRideUnchanged(t *testing.T) {
	for _, from := range domain.AllRideStatuses() {
		for _, to := range domain.AllRideStatuses() {
			if domain.CanTransition(from, to) {
				continue
			}
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				h := newHarness(t)
				customer := h.addCustomer("cust-1")
				driverID := "drv-1"
				if from == domain.RideStatusRequested {
					driverID = ""
				}
				h.addRide("ride-1", "cust-1", driverID, from)

				_, err := h.rideSvc.UpdateStatus(context.Background(), "ride-1", customer, to)
				require.Error(t, err)
				assert.True(t, errors.Is(err, service.ErrInvalidTransition), "got %v", err)

				var terr *service.TransitionError
				require.True(t, errors.As(err, &terr))
				assert.Equal(t, from, terr.From)
				assert.Equal(t, to, terr.To)

				stored := h.rides.GetRide("ride-1")
				assert.Equal(t, from, stored.Status)
				assert.Equal(t, driverID, stored.DriverID)
				assert.Zero(t, h.broadcaster.Count())
			})
		}
	}
}

func TestLifecycle_AssignedDriverCannotReaccept(t *testing.T) {
	for _, from := range domain.AllRideStatuses() {
		if from == domain.RideStatusRequested {
			continue
		}
		t.Run(string(from), func(t *testing.T) {
			h := newHarness(t)
			driver := h.addDriver("drv-1")
			h.addRide("ride-1", "cust-1", "drv-1", from)

			_, err := h.rideSvc.UpdateStatus(context.Background(), "ride-1", driver, domain.RideStatusAccepted)
			require.Error(t, err)
			assert.ErrorIs(t, err, service.ErrInvalidTransition)
			assert.NotErrorIs(t, err, service.ErrRideAlreadyTaken)

			var terr *service.TransitionError
			require.True(t, errors.As(err, &terr))
			assert.Equal(t, from, terr.From)
			assert.Equal(t, domain.RideStatusAccepted, terr.To)

			assert.Equal(t, from, h.rides.GetRide("ride-1").Status)
			assert.Zero(t, h.rides.AssignDriverCallCount)
			assert.Zero(t, h.broadcaster.Count())
		})
	}
}

func TestLifecycle_StrangerCannotAcceptClosedRide(t *testing.T) {
	h := newHarness(t)
	stranger := h.addDriver("drv-other")
	h.addRide("ride-1", "cust-1", "drv-1", domain.RideStatusInProgress)

	_, err := h.rideSvc.UpdateStatus(context.Background(), "ride-1", stranger, domain.RideStatusAccepted)
	assert.ErrorIs(t, err, service.ErrUnauthorized)
	assert.False(t, errors.Is(err, service.ErrInvalidTransition))
}

func TestStateMachine_ApplyLeavesAcceptToAcceptService(t *testing.T) {
	h := newHarness(t)
	driver := h.addDriver("drv-1")
	h.addRide("ride-1", "cust-1", "", domain.RideStatusRequested)

	_, _, err := h.machine.Apply(context.Background(), "ride-1", domain.RideStatusAccepted, driver)
	assert.ErrorIs(t, err, service.ErrAcceptRequired)
	assert.Equal(t, domain.RideStatusRequested, h.rides.GetRide("ride-1").Status)

	h.addRide("ride-2", "cust-1", "drv-1", domain.RideStatusCompleted)
	_, _, err = h.machine.Apply(context.Background(), "ride-2", domain.RideStatusAccepted, driver)
	assert.ErrorIs(t, err, service.ErrInvalidTransition)
}

func TestLifecycle_DriverArrivedToCompletedIsRejected(t *testing.T) {
	h := newHarness(t)
	driver := h.addDriver("drv-1")
	h.addRide("ride-1", "cust-1", "drv-1", domain.RideStatusDriverArrived)

	_, err := h.rideSvc.UpdateStatus(context.Background(), "ride-1", driver, domain.RideStatusCompleted)
	assert.ErrorIs(t, err, service.ErrInvalidTransition)
	assert.Equal(t, domain.RideStatusDriverArrived, h.rides.GetRide("ride-1").Status)
}

func TestLifecycle_StrangerIsUnauthorizedBeforeLegality(t *testing.T) {
	h := newHarness(t)
	stranger := h.addDriver("drv-other")
	h.addRide("ride-1", "cust-1", "drv-1", domain.RideStatusDriverArrived)

	// Legal edge, wrong actor.
	_, err := h.rideSvc.UpdateStatus(context.Background(), "ride-1", stranger, domain.RideStatusInProgress)
	assert.ErrorIs(t, err, service.ErrUnauthorized)

	// Illegal edge, wrong actor: authorization is reported, not the transition.
	_, err = h.rideSvc.UpdateStatus(context.Background(), "ride-1", stranger, domain.RideStatusCompleted)
	assert.ErrorIs(t, err, service.ErrUnauthorized)
	assert.False(t, errors.Is(err, service.ErrInvalidTransition))

	assert.Equal(t, domain.RideStatusDriverArrived, h.rides.GetRide("ride-1").Status)
}

func TestLifecycle_CancelFromRequested(t *testing.T) {
	h := newHarness(t)
	customer := h.addCustomer("cust-1")
	h.addRide("ride-1", "cust-1", "", domain.RideStatusRequested)

	ride, err := h.rideSvc.CancelRide(context.Background(), "ride-1", customer)
	require.NoError(t, err)
	assert.Equal(t, domain.RideStatusCancelled, ride.Status)
	assert.Empty(t, ride.DriverID)
	assert.Zero(t, h.broadcaster.Count())
	assert.Contains(t, h.sink.Types(), string(service.NotificationRideCancelled))
}

func TestLifecycle_CancelByDriverNotifiesCustomer(t *testing.T) {
	h := newHarness(t)
	driver := h.addDriver("drv-1")
	h.addRide("ride-1", "cust-1", "drv-1", domain.RideStatusAccepted)

	_, err := h.rideSvc.CancelRide(context.Background(), "ride-1", driver)
	require.NoError(t, err)

	events := h.broadcaster.To(realtime.CustomerGroup("cust-1"))
	require.Len(t, events, 1)
	update := events[0].(realtime.RideStatusUpdate)
	assert.Equal(t, "cancelled", update.Status)
	assert.Equal(t, "drv-1", update.UpdatedBy)
}

func TestLifecycle_TerminalStatesAreFinal(t *testing.T) {
	h := newHarness(t)
	customer := h.addCustomer("cust-1")
	h.addRide("ride-1", "cust-1", "drv-1", domain.RideStatusCompleted)

	_, err := h.rideSvc.CancelRide(context.Background(), "ride-1", customer)
	assert.ErrorIs(t, err, service.ErrInvalidTransition)
	assert.Equal(t, domain.RideStatusCompleted, h.rides.GetRide("ride-1").Status)
}

func TestLifecycle_UnknownStatusAndRide(t *testing.T) {
	h := newHarness(t)
	customer := h.addCustomer("cust-1")
	h.addRide("ride-1", "cust-1", "", domain.RideStatusRequested)

	_, err := h.rideSvc.UpdateStatus(context.Background(), "ride-1", customer, domain.RideStatus("teleported"))
	assert.ErrorIs(t, err, service.ErrInvalidStatus)

	_, err = h.rideSvc.UpdateStatus(context.Background(), "missing", customer, domain.RideStatusCancelled)
	assert.Error(t, err)

	_, err = h.rideSvc.UpdateStatus(context.Background(), "", customer, domain.RideStatusCancelled)
	assert.ErrorIs(t, err, service.ErrInvalidRideID)
}

func TestLifecycle_ConcurrentCancelAndArrive(t *testing.T) {
	h := newHarness(t)
	customer := h.addCustomer("cust-1")
	driver := h.addDriver("drv-1")
	h.addRide("ride-1", "cust-1", "drv-1", domain.RideStatusAccepted)

	var cancelErr, arriveErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, cancelErr = h.rideSvc.CancelRide(context.Background(), "ride-1", customer)
	}()
	go func() {
		defer wg.Done()
		_, arriveErr = h.rideSvc.UpdateStatus(context.Background(), "ride-1", driver, domain.RideStatusDriverArrived)
	}()
	wg.Wait()

	// Cancel is legal from both accepted and driver_arrived, so it always lands.
	// Arrive either lands first or loses to the cancel.
	require.NoError(t, cancelErr)
	if arriveErr != nil {
		assert.ErrorIs(t, arriveErr, service.ErrInvalidTransition)
	}
	assert.Equal(t, domain.RideStatusCancelled, h.rides.GetRide("ride-1").Status)
}

func TestRideRepository_TimestampsAreStampedOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ride := h.addRide("ride-1", "cust-1", "drv-1", domain.RideStatusDriverArrived)
	first := ride.CreatedAt.Add(30 * time.Second)
	ride.PickedUpAt = first
	h.rides.AddRide(ride)

	updated, err := h.rides.UpdateStatus(ctx, "ride-1", domain.RideStatusDriverArrived, domain.RideStatusInProgress, time.Now())
	require.NoError(t, err)
	assert.True(t, updated.PickedUpAt.Equal(first))

	done := time.Now()
	updated, err = h.rides.UpdateStatus(ctx, "ride-1", domain.RideStatusInProgress, domain.RideStatusCompleted, done)
	require.NoError(t, err)
	assert.True(t, updated.DroppedOffAt.Equal(done))
	assert.True(t, updated.PickedUpAt.Equal(first))
}
