package simulator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/noachFrank/DriverApp-sub001/client"
	"github.com/noachFrank/DriverApp-sub001/core/arbiter"
	"github.com/noachFrank/DriverApp-sub001/core/model"
	"github.com/noachFrank/DriverApp-sub001/core/registry"
	"github.com/noachFrank/DriverApp-sub001/infra/logger"
	"github.com/noachFrank/DriverApp-sub001/infra/mqtt"
)

func TestEagerClaimAlwaysClaims(t *testing.T) {
	delay, claim := EagerClaim{}.Decide("ride-1")
	require.True(t, claim)
	require.Zero(t, delay)
}

func TestDelayedClaimKeepsDelay(t *testing.T) {
	delay, claim := DelayedClaim{Delay: 50 * time.Millisecond}.Decide("ride-1")
	require.True(t, claim)
	require.Equal(t, 50*time.Millisecond, delay)
}

func TestRandomClaimSkipRate(t *testing.T) {
	always := RandomClaim{SkipRate: 0}
	for i := 0; i < 10; i++ {
		_, claim := always.Decide("ride-1")
		require.True(t, claim)
	}
	never := RandomClaim{SkipRate: 1}
	for i := 0; i < 10; i++ {
		_, claim := never.Decide("ride-1")
		require.False(t, claim)
	}
	bounded := RandomClaim{MaxDelay: 20 * time.Millisecond}
	for i := 0; i < 10; i++ {
		delay, claim := bounded.Decide("ride-1")
		require.True(t, claim)
		require.Less(t, delay, 20*time.Millisecond)
	}
}

func TestRandomClaimConcurrentDecide(t *testing.T) {
	strategy := RandomClaim{MaxDelay: 10 * time.Millisecond, SkipRate: 0.5}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				strategy.Decide("ride-1")
			}
		}()
	}
	wg.Wait()
}

type relayHandler struct {
	mu sync.RWMutex
	h  mqtt.ClaimHandler
}

func (r *relayHandler) HandleClaim(ctx context.Context, req model.ClaimRequest) {
	r.mu.RLock()
	h := r.h
	r.mu.RUnlock()
	if h != nil {
		h.HandleClaim(ctx, req)
	}
}

type registryFetcher struct {
	store registry.Store
}

func (f registryFetcher) FetchOpenCalls(ctx context.Context, _ string) ([]model.Call, error) {
	return f.store.ListOpen(ctx)
}

func TestSimulatedDriverClaimsNewCall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	arbiter.ResetMetrics(prometheus.NewRegistry())
	store := registry.NewMemoryStore()
	broker := mqtt.NewMockBroker()
	t.Cleanup(broker.Drain)
	relay := &relayHandler{}
	conn := broker.Dispatcher(relay)
	arb, err := arbiter.New(store, conn, logger.NopLogger{}, nil)
	require.NoError(t, err)
	relay.mu.Lock()
	relay.h = arb
	relay.mu.Unlock()

	drvConn := broker.Driver("drv-1")
	drv, err := client.NewDriver("drv-1", drvConn, registryFetcher{store}, 2*time.Second, logger.NopLogger{})
	require.NoError(t, err)
	go func() { _ = drv.Run(ctx) }()
	defer func() { _ = drv.Close() }()

	sim := NewSimulatedDriver(drv, EagerClaim{})
	go sim.Run(ctx)

	_, err = arb.CreateCall(ctx, model.Call{
		ID:         "ride-1",
		Attributes: model.CallAttributes{ScheduledAt: time.Now().Add(time.Hour)},
	})
	require.NoError(t, err)

	deadline := time.After(3 * time.Second)
	for sim.Stats.Won.Load() == 0 {
		select {
		case <-deadline:
			t.Fatalf("simulated driver never won; claimed=%d", sim.Stats.Claimed.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
	require.Equal(t, int64(1), sim.Stats.Won.Load())

	stored, err := store.Get(ctx, "ride-1")
	require.NoError(t, err)
	require.Equal(t, "drv-1", stored.AssignedTo)
}
