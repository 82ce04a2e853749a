package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshfield/cleanbooking/internal/domain"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisCacheWithClient(client, time.Minute), mr
}

func TestRedisCache_ServicesRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	// Miss before anything is cached.
	services, err := c.GetServices(ctx)
	require.NoError(t, err)
	assert.Nil(t, services)

	want := []domain.Service{
		{ID: 1, Slug: "standard-cleaning", Name: "Standard Cleaning", UnitPriceCents: 2500, MinQuantity: 1, Active: true},
		{ID: 2, Slug: "deep-cleaning", Name: "Deep Cleaning", UnitPriceCents: 4500, MinQuantity: 1, Active: true},
	}
	require.NoError(t, c.SetServices(ctx, want))

	got, err := c.GetServices(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRedisCache_ServicesExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetServices(ctx, []domain.Service{{ID: 1, Slug: "standard-cleaning"}}))

	mr.FastForward(2 * time.Minute)

	got, err := c.GetServices(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisCache_ExtrasRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	want := []domain.Extra{{ID: 1, Slug: "inside-fridge", Kind: domain.ExtraKindCheckbox, FeeCents: 1500, Active: true}}
	require.NoError(t, c.SetExtras(ctx, want))

	got, err := c.GetExtras(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRedisCache_SlotHold(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	slot := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	ok, err := c.AcquireSlotHold(ctx, slot, "a@example.com", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// Same customer, same slot: still held.
	ok, err = c.AcquireSlotHold(ctx, slot, "a@example.com", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// Different customer does not collide.
	ok, err = c.AcquireSlotHold(ctx, slot, "b@example.com", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.ReleaseSlotHold(ctx, slot, "a@example.com"))
	ok, err = c.AcquireSlotHold(ctx, slot, "a@example.com", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// Holds expire on their own.
	mr.FastForward(2 * time.Minute)
	ok, err = c.AcquireSlotHold(ctx, slot, "b@example.com", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
