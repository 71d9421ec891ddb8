package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	corelogger "github.com/noachFrank/DriverApp-sub001/core/logger"
	"github.com/noachFrank/DriverApp-sub001/core/model"
)

// ErrClaimInProgress is returned when a claim is requested while another is
// still pending. A driver holds at most one outstanding claim.
var ErrClaimInProgress = errors.New("claim already in progress")

// ClaimStatus is the driver-side view of a claim attempt.
type ClaimStatus int

const (
	ClaimPending ClaimStatus = iota
	ClaimWon
	ClaimLost
	ClaimFailed
)

// String returns a human-readable representation of the status.
func (s ClaimStatus) String() string {
	switch s {
	case ClaimPending:
		return "pending"
	case ClaimWon:
		return "won"
	case ClaimLost:
		return "lost"
	case ClaimFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the terminal outcome of one claim attempt. Outcome carries the
// arbiter's answer when one was received; a ClaimFailed result means no
// answer arrived at all, which is a connectivity problem rather than a lost
// race, and the two must not be presented the same way.
type Result struct {
	RideID  string
	Status  ClaimStatus
	Outcome model.Outcome
}

// ClaimSender sends a claim request over the real-time transport.
type ClaimSender interface {
	SendClaim(ctx context.Context, req model.ClaimRequest) error
}

// Tracker guards the single outstanding claim attempt of one driver and
// correlates its resolution. Two independent signals can resolve a pending
// claim: the direct ClaimResult reply, and a broadcast assignment naming the
// claimed ride. Whichever arrives first wins; the other is suppressed.
type Tracker struct {
	driverID string
	sender   ClaimSender
	timeout  time.Duration
	logger   corelogger.Logger

	mu      sync.Mutex
	pending *pendingClaim
}

type pendingClaim struct {
	requestID string
	rideID    string
	timer     *time.Timer
	done      chan Result
}

// NewTracker creates a Tracker. timeout bounds how long a claim may stay
// pending before it resolves to ClaimFailed; zero selects a default of five
// seconds.
func NewTracker(driverID string, sender ClaimSender, timeout time.Duration, log corelogger.Logger) (*Tracker, error) {
	if driverID == "" || sender == nil || log == nil {
		return nil, fmt.Errorf("client: nil parameter provided to NewTracker")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Tracker{driverID: driverID, sender: sender, timeout: timeout, logger: log}, nil
}

// Claim starts a claim attempt for rideID and returns a channel that delivers
// the terminal Result exactly once. It fails immediately with
// ErrClaimInProgress while another attempt is pending. By the time the result
// is delivered the tracker is already idle again, so the caller may issue a
// follow-up claim from the receiving goroutine.
func (t *Tracker) Claim(ctx context.Context, rideID string) (<-chan Result, error) {
	t.mu.Lock()
	if t.pending != nil {
		t.mu.Unlock()
		return nil, ErrClaimInProgress
	}
	p := &pendingClaim{
		requestID: uuid.NewString(),
		rideID:    rideID,
		done:      make(chan Result, 1),
	}
	// Arm the timer before the request leaves, so a reply racing the send
	// never observes a half-initialized attempt.
	p.timer = time.AfterFunc(t.timeout, func() {
		t.resolve(p.requestID, Result{RideID: rideID, Status: ClaimFailed})
	})
	t.pending = p
	t.mu.Unlock()

	req := model.ClaimRequest{
		RequestID:   p.requestID,
		RideID:      rideID,
		DriverID:    t.driverID,
		RequestedAt: time.Now().UTC(),
	}
	if err := t.sender.SendClaim(ctx, req); err != nil {
		t.mu.Lock()
		if t.pending == p {
			p.timer.Stop()
			t.pending = nil
		}
		t.mu.Unlock()
		return nil, fmt.Errorf("send claim: %w", err)
	}
	t.logger.Debugw("claim sent", map[string]any{"ride_id": rideID, "request_id": p.requestID})
	return p.done, nil
}

// Pending reports whether a claim attempt is currently in flight.
func (t *Tracker) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}

// HandleResult feeds a direct ClaimResult reply into the tracker. Replies
// whose request id does not match the current attempt are dropped: they
// belong to an attempt that already resolved ahead of them.
func (t *Tracker) HandleResult(res model.ClaimResult) {
	outcome, ok := model.ParseOutcome(res.Outcome)
	if !ok {
		t.logger.Warnf("claim result with unknown outcome %q for %s", res.Outcome, res.RideID)
		return
	}
	status := ClaimLost
	if outcome == model.OutcomeWon {
		status = ClaimWon
	}
	t.resolve(res.RequestID, Result{RideID: res.RideID, Status: status, Outcome: outcome})
}

// HandleAssigned feeds a broadcast assignment into the tracker. If it names
// the pending ride it resolves the attempt: a win when this driver is the
// assignee, a loss otherwise. There is no point waiting for a direct reply
// that will never name this driver as the winner.
func (t *Tracker) HandleAssigned(ev model.CallAssignedEvent) {
	t.mu.Lock()
	p := t.pending
	t.mu.Unlock()
	if p == nil || p.rideID != ev.RideID {
		return
	}
	if ev.AssignedTo == t.driverID {
		t.resolve(p.requestID, Result{RideID: ev.RideID, Status: ClaimWon, Outcome: model.OutcomeWon})
		return
	}
	t.resolve(p.requestID, Result{RideID: ev.RideID, Status: ClaimLost, Outcome: model.OutcomeAlreadyTaken})
}

// resolve completes the attempt identified by requestID. Every resolution
// path funnels through here; the id comparison makes late or duplicate
// signals a no-op, so the attempt resolves exactly once.
func (t *Tracker) resolve(requestID string, res Result) {
	t.mu.Lock()
	p := t.pending
	if p == nil || p.requestID != requestID {
		t.mu.Unlock()
		return
	}
	p.timer.Stop()
	t.pending = nil // back to idle before the outcome is surfaced
	t.mu.Unlock()

	t.logger.Infof("claim %s resolved: %s", res.RideID, res.Status)
	p.done <- res
}
