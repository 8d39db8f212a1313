package tests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ryde/internal/redis"
	"ryde/internal/repository"
)

func TestDirectory_CachesActiveActors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addCustomer("cust-1")

	first, err := h.directory.GetActor(ctx, "cust-1")
	require.NoError(t, err)
	second, err := h.directory.GetActor(ctx, "cust-1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Wanjiku Kamau", second.DisplayName())
	assert.Equal(t, int32(1), h.actors.GetByIDCallCount)
}

func TestDirectory_ReactivatedActorIsReread(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addDriver("drv-1")
	require.NoError(t, h.cache.SetActor(ctx, &redis.CachedActor{
		ID:         "drv-1",
		Type:       "driver",
		IsApproved: true,
		IsActive:   false,
	}))

	actor, err := h.directory.GetActor(ctx, "drv-1")
	require.NoError(t, err)
	assert.True(t, actor.IsActive)
	assert.Equal(t, int32(1), h.actors.GetByIDCallCount)

	cached, err := h.cache.GetActor(ctx, "drv-1")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.True(t, cached.IsActive)
}

func TestDirectory_UnknownActor(t *testing.T) {
	h := newHarness(t)

	_, err := h.directory.GetActor(context.Background(), "ghost")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
