package redisreg

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noachFrank/DriverApp-sub001/core/model"
	"github.com/noachFrank/DriverApp-sub001/core/registry"
)

// Requires a running Redis, e.g. `docker run -p 6379:6379 redis:7`.
func testStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 9})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, rdb.Ping(ctx).Err())
	require.NoError(t, rdb.FlushDB(ctx).Err())
	t.Cleanup(func() { _ = rdb.Close() })
	return NewWithClient(rdb)
}

func TestStoreRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, registry.ErrNotFound)

	call := model.Call{
		ID:    "ride-1",
		State: model.CallOpen,
		Attributes: model.CallAttributes{
			PickupAddress: "12 Main St",
			PriceCents:    1800,
			ScheduledAt:   time.Now().Add(time.Hour).Truncate(time.Second).UTC(),
		},
		CreatedAt: time.Now().Truncate(time.Second).UTC(),
	}
	require.NoError(t, s.Put(ctx, call))

	got, err := s.Get(ctx, "ride-1")
	require.NoError(t, err)
	require.Equal(t, call, got)

	require.NoError(t, s.Delete(ctx, "ride-1"))
	_, err = s.Get(ctx, "ride-1")
	require.ErrorIs(t, err, registry.ErrNotFound)
	require.NoError(t, s.Delete(ctx, "ride-1"))
}

func TestStoreListOpenTracksState(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second).UTC()

	open := model.Call{ID: "ride-a", State: model.CallOpen,
		Attributes: model.CallAttributes{ScheduledAt: now.Add(2 * time.Hour)}}
	sooner := model.Call{ID: "ride-b", State: model.CallOpen,
		Attributes: model.CallAttributes{ScheduledAt: now.Add(time.Hour)}}
	assigned := model.Call{ID: "ride-c", State: model.CallAssigned, AssignedTo: "drv-1",
		Attributes: model.CallAttributes{ScheduledAt: now}}
	for _, c := range []model.Call{open, sooner, assigned} {
		require.NoError(t, s.Put(ctx, c))
	}

	calls, err := s.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, calls, 2)
	require.Equal(t, "ride-b", calls[0].ID)
	require.Equal(t, "ride-a", calls[1].ID)

	// Assigning removes the call from the open pool.
	sooner.State = model.CallAssigned
	sooner.AssignedTo = "drv-2"
	require.NoError(t, s.Put(ctx, sooner))
	calls, err = s.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	require.Equal(t, "ride-a", calls[0].ID)
}
