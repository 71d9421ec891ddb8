package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/noachFrank/DriverApp-sub001/core/model"
	"github.com/noachFrank/DriverApp-sub001/infra/logger"
)

type captureSender struct {
	mu   sync.Mutex
	reqs []model.ClaimRequest
	err  error
}

func (s *captureSender) SendClaim(_ context.Context, req model.ClaimRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.reqs = append(s.reqs, req)
	return nil
}

func (s *captureSender) last() model.ClaimRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reqs[len(s.reqs)-1]
}

func newTestTracker(t *testing.T, sender ClaimSender, timeout time.Duration) *Tracker {
	t.Helper()
	tr, err := NewTracker("d1", sender, timeout, logger.NopLogger{})
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	return tr
}

func TestTracker_DirectResultWins(t *testing.T) {
	sender := &captureSender{}
	tr := newTestTracker(t, sender, time.Second)
	done, err := tr.Claim(context.Background(), "42")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	req := sender.last()
	tr.HandleResult(model.ClaimResult{RequestID: req.RequestID, RideID: "42", Outcome: "won"})
	res := <-done
	if res.Status != ClaimWon || res.Outcome != model.OutcomeWon {
		t.Fatalf("unexpected result %#v", res)
	}
	if tr.Pending() {
		t.Fatal("tracker should be idle after resolution")
	}
}

func TestTracker_ExactlyOnceEitherOrder(t *testing.T) {
	orders := []string{"result-first", "broadcast-first"}
	for _, order := range orders {
		t.Run(order, func(t *testing.T) {
			sender := &captureSender{}
			tr := newTestTracker(t, sender, time.Second)
			done, err := tr.Claim(context.Background(), "42")
			if err != nil {
				t.Fatalf("claim: %v", err)
			}
			req := sender.last()
			result := model.ClaimResult{RequestID: req.RequestID, RideID: "42", Outcome: "won"}
			assigned := model.CallAssignedEvent{RideID: "42", AssignedTo: "d1"}
			if order == "result-first" {
				tr.HandleResult(result)
				tr.HandleAssigned(assigned)
			} else {
				tr.HandleAssigned(assigned)
				tr.HandleResult(result)
			}
			res := <-done
			if res.Status != ClaimWon {
				t.Fatalf("unexpected result %#v", res)
			}
			select {
			case extra := <-done:
				t.Fatalf("second resolution delivered: %#v", extra)
			case <-time.After(50 * time.Millisecond):
			}
		})
	}
}

func TestTracker_BroadcastNamingOtherDriverResolvesLost(t *testing.T) {
	sender := &captureSender{}
	tr := newTestTracker(t, sender, time.Minute) // long timeout: must not be what resolves
	done, err := tr.Claim(context.Background(), "42")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	tr.HandleAssigned(model.CallAssignedEvent{RideID: "42", AssignedTo: "d2"})
	select {
	case res := <-done:
		if res.Status != ClaimLost || res.Outcome != model.OutcomeAlreadyTaken {
			t.Fatalf("unexpected result %#v", res)
		}
	case <-time.After(time.Second):
		t.Fatal("lost broadcast did not resolve the claim")
	}
}

func TestTracker_TimeoutResolvesFailed(t *testing.T) {
	sender := &captureSender{}
	tr := newTestTracker(t, sender, 20*time.Millisecond)
	done, err := tr.Claim(context.Background(), "42")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	res := <-done
	if res.Status != ClaimFailed {
		t.Fatalf("expected failed, got %#v", res)
	}
	// a fresh claim can start immediately after the timeout
	if _, err := tr.Claim(context.Background(), "43"); err != nil {
		t.Fatalf("follow-up claim: %v", err)
	}
}

func TestTracker_SecondClaimWhilePending(t *testing.T) {
	sender := &captureSender{}
	tr := newTestTracker(t, sender, time.Minute)
	if _, err := tr.Claim(context.Background(), "42"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := tr.Claim(context.Background(), "43"); !errors.Is(err, ErrClaimInProgress) {
		t.Fatalf("expected ErrClaimInProgress, got %v", err)
	}
}

func TestTracker_StaleResultIgnored(t *testing.T) {
	sender := &captureSender{}
	tr := newTestTracker(t, sender, 20*time.Millisecond)
	done, err := tr.Claim(context.Background(), "42")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	staleReq := sender.last()
	<-done // timeout fired

	// new attempt on another ride
	done2, err := tr.Claim(context.Background(), "43")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	// the late reply for the abandoned attempt must not touch the new one
	tr.HandleResult(model.ClaimResult{RequestID: staleReq.RequestID, RideID: "42", Outcome: "won"})
	select {
	case res := <-done2:
		t.Fatalf("stale result corrupted current attempt: %#v", res)
	case <-time.After(10 * time.Millisecond):
	}
	if !tr.Pending() {
		t.Fatal("current attempt should still be pending")
	}
}

func TestTracker_UnrelatedBroadcastIgnored(t *testing.T) {
	sender := &captureSender{}
	tr := newTestTracker(t, sender, time.Minute)
	done, err := tr.Claim(context.Background(), "42")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	tr.HandleAssigned(model.CallAssignedEvent{RideID: "99", AssignedTo: "d2"})
	select {
	case res := <-done:
		t.Fatalf("unrelated broadcast resolved the claim: %#v", res)
	case <-time.After(10 * time.Millisecond):
	}
}

func TestTracker_SendFailureClearsPending(t *testing.T) {
	sender := &captureSender{err: fmt.Errorf("broker gone")}
	tr := newTestTracker(t, sender, time.Minute)
	if _, err := tr.Claim(context.Background(), "42"); err == nil {
		t.Fatal("expected send error")
	}
	if tr.Pending() {
		t.Fatal("failed send left tracker pending")
	}
}
