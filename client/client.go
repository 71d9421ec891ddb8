// Package client implements the driver side of the call-assignment protocol:
// a claim tracker guarding the single outstanding attempt, a reconciler
// keeping the local open-call cache consistent under redelivered and
// unordered events, and a Driver tying both to the transport.
package client

import (
	"context"
	"fmt"
	"time"

	corelogger "github.com/noachFrank/DriverApp-sub001/core/logger"
	"github.com/noachFrank/DriverApp-sub001/core/model"
	"github.com/noachFrank/DriverApp-sub001/internal/eventbus"
)

// Transport is the driver's view of the real-time channel. Events and Results
// deliver inbound messages; Reconnected signals that the underlying
// connection was re-established and local state may have missed events.
type Transport interface {
	SendClaim(ctx context.Context, req model.ClaimRequest) error
	Events() <-chan model.CallEvent
	Results() <-chan model.ClaimResult
	Reconnected() <-chan struct{}
	Close() error
}

// Fetcher pulls the authoritative open-call list, used for cold start and to
// correct the cache after wins and reconnects.
type Fetcher interface {
	FetchOpenCalls(ctx context.Context, driverID string) ([]model.Call, error)
}

// Driver is one connected driver client. Inbound transport traffic is
// processed by a single goroutine, so tracker and reconciler see events one
// at a time while claims stay non-blocking for the caller.
type Driver struct {
	id         string
	transport  Transport
	fetcher    Fetcher
	tracker    *Tracker
	reconciler *Reconciler
	bus        *eventbus.TypedBus[model.CallEvent]
	logger     corelogger.Logger
}

// NewDriver assembles a driver client. claimTimeout bounds each claim
// attempt; zero selects the tracker default.
func NewDriver(id string, transport Transport, fetcher Fetcher, claimTimeout time.Duration, log corelogger.Logger) (*Driver, error) {
	if id == "" || transport == nil || fetcher == nil || log == nil {
		return nil, fmt.Errorf("client: nil parameter provided to NewDriver")
	}
	tracker, err := NewTracker(id, transport, claimTimeout, log)
	if err != nil {
		return nil, err
	}
	return &Driver{
		id:         id,
		transport:  transport,
		fetcher:    fetcher,
		tracker:    tracker,
		reconciler: NewReconciler(id, log),
		bus:        eventbus.NewTyped[model.CallEvent](),
		logger:     log,
	}, nil
}

// Run populates the cache and processes inbound traffic until ctx is
// canceled or the transport closes its channels.
func (d *Driver) Run(ctx context.Context) error {
	// Observers block on bus channels; every exit must close them.
	defer d.bus.Close()
	if err := d.Refresh(ctx); err != nil {
		// not fatal: the cache fills as events arrive and the next
		// reconnect refresh retries the pull
		d.logger.Warnf("initial refresh: %v", err)
	}
	for {
		select {
		case ev, ok := <-d.transport.Events():
			if !ok {
				return nil
			}
			d.handleEvent(ctx, ev)
		case res, ok := <-d.transport.Results():
			if !ok {
				return nil
			}
			d.tracker.HandleResult(res)
		case <-d.transport.Reconnected():
			d.logger.Infof("transport reconnected, refreshing open calls")
			if err := d.Refresh(ctx); err != nil {
				d.logger.Errorf("refresh after reconnect: %v", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *Driver) handleEvent(ctx context.Context, ev model.CallEvent) {
	// cache upkeep and claim resolution are independent paths over the
	// same event stream
	d.reconciler.Apply(ev)
	if assigned, ok := ev.(model.CallAssignedEvent); ok {
		d.tracker.HandleAssigned(assigned)
	}
	d.bus.Publish(ev)
}

// Claim attempts to acquire the call. The returned channel delivers the
// terminal result exactly once; after a win the open-call cache is refreshed
// from the registry before the result is surfaced, absorbing any events
// missed or reordered around the assignment.
func (d *Driver) Claim(ctx context.Context, rideID string) (<-chan Result, error) {
	inner, err := d.tracker.Claim(ctx, rideID)
	if err != nil {
		return nil, err
	}
	out := make(chan Result, 1)
	go func() {
		res, ok := <-inner
		if !ok {
			close(out)
			return
		}
		if res.Status == ClaimWon {
			refreshCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := d.Refresh(refreshCtx); err != nil {
				d.logger.Errorf("refresh after win: %v", err)
			}
			cancel()
		}
		out <- res
	}()
	return out, nil
}

// Refresh replaces the local cache with the authoritative open-call list.
func (d *Driver) Refresh(ctx context.Context) error {
	calls, err := d.fetcher.FetchOpenCalls(ctx, d.id)
	if err != nil {
		return err
	}
	d.reconciler.Replace(calls)
	return nil
}

// OpenCalls returns the cached open calls ordered by schedule time.
func (d *Driver) OpenCalls() []model.Call {
	return d.reconciler.OpenCalls()
}

// Events exposes the inbound event stream for observers. Subscribers that
// stop draining miss events instead of blocking the client.
func (d *Driver) Events() <-chan model.CallEvent {
	return d.bus.Subscribe()
}

// ID returns the driver identity used on the transport.
func (d *Driver) ID() string { return d.id }

// Close shuts down the transport connection.
func (d *Driver) Close() error {
	return d.transport.Close()
}
