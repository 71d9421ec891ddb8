package client

import (
	"context"
	"testing"
	"time"

	"github.com/noachFrank/DriverApp-sub001/core/model"
	"github.com/noachFrank/DriverApp-sub001/infra/logger"
)

type fakeTransport struct {
	events      chan model.CallEvent
	results     chan model.ClaimResult
	reconnected chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		events:      make(chan model.CallEvent, 8),
		results:     make(chan model.ClaimResult, 8),
		reconnected: make(chan struct{}, 1),
	}
}

func (f *fakeTransport) SendClaim(context.Context, model.ClaimRequest) error { return nil }
func (f *fakeTransport) Events() <-chan model.CallEvent                      { return f.events }
func (f *fakeTransport) Results() <-chan model.ClaimResult                   { return f.results }
func (f *fakeTransport) Reconnected() <-chan struct{}                        { return f.reconnected }

func (f *fakeTransport) Close() error {
	close(f.events)
	close(f.results)
	return nil
}

type emptyFetcher struct{}

func (emptyFetcher) FetchOpenCalls(context.Context, string) ([]model.Call, error) {
	return nil, nil
}

func TestDriverRunClosesBusWhenTransportCloses(t *testing.T) {
	tr := newFakeTransport()
	drv, err := NewDriver("d1", tr, emptyFetcher{}, time.Second, logger.NopLogger{})
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	sub := drv.Events()

	done := make(chan error, 1)
	go func() { done <- drv.Run(context.Background()) }()

	if err := tr.Close(); err != nil {
		t.Fatalf("close transport: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("run did not return after transport close")
	}
	select {
	case _, ok := <-sub:
		if ok {
			t.Fatalf("expected closed subscription, got event")
		}
	case <-time.After(time.Second):
		t.Fatalf("subscription still open after run returned")
	}
}

func TestDriverRunClosesBusOnCancel(t *testing.T) {
	tr := newFakeTransport()
	drv, err := NewDriver("d1", tr, emptyFetcher{}, time.Second, logger.NopLogger{})
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	sub := drv.Events()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- drv.Run(ctx) }()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("run did not return after cancel")
	}
	select {
	case _, ok := <-sub:
		if ok {
			t.Fatalf("expected closed subscription, got event")
		}
	case <-time.After(time.Second):
		t.Fatalf("subscription still open after run returned")
	}
}
