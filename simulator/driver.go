package simulator

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/noachFrank/DriverApp-sub001/client"
	"github.com/noachFrank/DriverApp-sub001/core/model"
	"github.com/noachFrank/DriverApp-sub001/infra/logger"
)

// Stats counts claim outcomes observed by one simulated driver.
type Stats struct {
	Claimed atomic.Int64
	Won     atomic.Int64
	Lost    atomic.Int64
	Failed  atomic.Int64
}

// SimulatedDriver reacts to call events the way a driver app would: it watches
// the open pool and claims calls according to its strategy.
type SimulatedDriver struct {
	driver   *client.Driver
	strategy ClaimStrategy
	// Hold keeps the driver off the pool for a while after a win,
	// approximating the time spent on the ride.
	Hold time.Duration

	Stats Stats
	log   logger.Logger

	events    <-chan model.CallEvent
	busyUntil atomic.Int64
}

func NewSimulatedDriver(d *client.Driver, strategy ClaimStrategy) *SimulatedDriver {
	return &SimulatedDriver{
		driver:   d,
		strategy: strategy,
		log:      logger.New("sim_driver"),
		// Subscribe here so no event published between construction and
		// Run is missed.
		events: d.Events(),
	}
}

// Run drives the claim loop until ctx is done. The underlying client.Driver
// must be running already.
func (s *SimulatedDriver) Run(ctx context.Context) {
	for _, call := range s.driver.OpenCalls() {
		s.consider(ctx, call.ID)
	}
	for {
		select {
		case ev, ok := <-s.events:
			if !ok {
				return
			}
			s.onEvent(ctx, ev)
		case <-ctx.Done():
			return
		}
	}
}

func (s *SimulatedDriver) onEvent(ctx context.Context, ev model.CallEvent) {
	switch e := ev.(type) {
	case model.CallCreatedEvent:
		if e.Call.IsOpen() {
			s.consider(ctx, e.Call.ID)
		}
	case model.CallReleasedEvent:
		if e.Call.IsOpen() {
			s.consider(ctx, e.Call.ID)
		}
	}
}

func (s *SimulatedDriver) consider(ctx context.Context, rideID string) {
	if time.Now().UnixNano() < s.busyUntil.Load() {
		return
	}
	delay, claim := s.strategy.Decide(rideID)
	if !claim {
		return
	}
	go s.claimAfter(ctx, rideID, delay)
}

func (s *SimulatedDriver) claimAfter(ctx context.Context, rideID string, delay time.Duration) {
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
	future, err := s.driver.Claim(ctx, rideID)
	if err != nil {
		if !errors.Is(err, client.ErrClaimInProgress) {
			s.log.Warnf("%s: claim %s: %v", s.driver.ID(), rideID, err)
		}
		return
	}
	s.Stats.Claimed.Add(1)
	select {
	case res := <-future:
		switch res.Status {
		case client.ClaimWon:
			s.Stats.Won.Add(1)
			if s.Hold > 0 {
				s.busyUntil.Store(time.Now().Add(s.Hold).UnixNano())
			}
			s.log.Infof("%s won %s", s.driver.ID(), rideID)
		case client.ClaimLost:
			s.Stats.Lost.Add(1)
		default:
			s.Stats.Failed.Add(1)
		}
	case <-ctx.Done():
	}
}
