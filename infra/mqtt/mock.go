package mqtt

import (
	"context"
	"fmt"
	"sync"

	"github.com/noachFrank/DriverApp-sub001/core/model"
)

// MockBroker wires a dispatcher and any number of driver connections together
// in memory. It mirrors the real topic layout: claims reach the registered
// handler, broadcasts fan out to every driver, results reach one driver.
//
// DuplicateBroadcasts delivers every broadcast twice to exercise at-least-once
// redelivery without a real broker.
type MockBroker struct {
	mu                  sync.Mutex
	handler             ClaimHandler
	drivers             map[string]*MockDriverConn
	inflight            sync.WaitGroup
	DuplicateBroadcasts bool
}

func NewMockBroker() *MockBroker {
	return &MockBroker{drivers: make(map[string]*MockDriverConn)}
}

// Dispatcher registers the claim handler and returns the server-side
// connection. Call it before any driver sends a claim.
func (b *MockBroker) Dispatcher(handler ClaimHandler) *MockDispatcherConn {
	b.mu.Lock()
	b.handler = handler
	b.mu.Unlock()
	return &MockDispatcherConn{broker: b}
}

// Driver attaches a new driver connection to the broker.
func (b *MockBroker) Driver(driverID string) *MockDriverConn {
	c := &MockDriverConn{
		broker:      b,
		driverID:    driverID,
		events:      make(chan model.CallEvent, 64),
		results:     make(chan model.ClaimResult, 16),
		reconnected: make(chan struct{}, 1),
	}
	b.mu.Lock()
	b.drivers[driverID] = c
	b.mu.Unlock()
	return c
}

func (b *MockBroker) deliverClaim(ctx context.Context, req model.ClaimRequest) error {
	b.mu.Lock()
	handler := b.handler
	b.mu.Unlock()
	if handler == nil {
		return fmt.Errorf("no dispatcher attached")
	}
	// The real broker decouples publish from consumption.
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		handler.HandleClaim(ctx, req)
	}()
	return nil
}

// Drain blocks until every claim handed to the handler has been fully
// processed. Callers tearing down shared state wait on it first.
func (b *MockBroker) Drain() {
	b.inflight.Wait()
}

func (b *MockBroker) broadcast(ev model.CallEvent) {
	b.mu.Lock()
	conns := make([]*MockDriverConn, 0, len(b.drivers))
	for _, c := range b.drivers {
		conns = append(conns, c)
	}
	dup := b.DuplicateBroadcasts
	b.mu.Unlock()
	for _, c := range conns {
		c.pushEvent(ev)
		if dup {
			c.pushEvent(ev)
		}
	}
}

func (b *MockBroker) reply(driverID string, res model.ClaimResult) error {
	b.mu.Lock()
	c := b.drivers[driverID]
	b.mu.Unlock()
	if c == nil {
		return fmt.Errorf("unknown driver %s", driverID)
	}
	c.pushResult(res)
	return nil
}

// MockDispatcherConn implements the notifier surface of DispatcherConn.
type MockDispatcherConn struct {
	broker *MockBroker
}

func (d *MockDispatcherConn) Broadcast(_ context.Context, ev model.CallEvent) error {
	// Round-trip through the envelope so the wire format stays honest.
	payload, err := model.EncodeEvent(ev)
	if err != nil {
		return err
	}
	decoded, err := model.DecodeEvent(payload)
	if err != nil {
		return err
	}
	d.broker.broadcast(decoded)
	return nil
}

func (d *MockDispatcherConn) Reply(_ context.Context, driverID string, res model.ClaimResult) error {
	return d.broker.reply(driverID, res)
}

func (d *MockDispatcherConn) Close() error { return nil }

// MockDriverConn implements the driver transport against the in-memory broker.
type MockDriverConn struct {
	broker   *MockBroker
	driverID string

	mu          sync.Mutex
	offline     bool
	closed      bool
	events      chan model.CallEvent
	results     chan model.ClaimResult
	reconnected chan struct{}
}

func (c *MockDriverConn) SendClaim(ctx context.Context, req model.ClaimRequest) error {
	c.mu.Lock()
	offline := c.offline
	c.mu.Unlock()
	if offline {
		return fmt.Errorf("not connected")
	}
	return c.broker.deliverClaim(ctx, req)
}

func (c *MockDriverConn) Events() <-chan model.CallEvent    { return c.events }
func (c *MockDriverConn) Results() <-chan model.ClaimResult { return c.results }
func (c *MockDriverConn) Reconnected() <-chan struct{}      { return c.reconnected }

// SetOffline toggles event delivery. While offline the connection silently
// drops everything, simulating a network partition without session state.
func (c *MockDriverConn) SetOffline(offline bool) {
	c.mu.Lock()
	c.offline = offline
	c.mu.Unlock()
	if !offline {
		select {
		case c.reconnected <- struct{}{}:
		default:
		}
	}
}

func (c *MockDriverConn) pushEvent(ev model.CallEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.offline || c.closed {
		return
	}
	select {
	case c.events <- ev:
	default:
	}
}

func (c *MockDriverConn) pushResult(res model.ClaimResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.offline || c.closed {
		return
	}
	select {
	case c.results <- res:
	default:
	}
}

func (c *MockDriverConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.events)
	close(c.results)
	return nil
}
