package arbiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noachFrank/DriverApp-sub001/core/arbiter/logging"
	corelogger "github.com/noachFrank/DriverApp-sub001/core/logger"
	coremetrics "github.com/noachFrank/DriverApp-sub001/core/metrics"
	"github.com/noachFrank/DriverApp-sub001/core/model"
	"github.com/noachFrank/DriverApp-sub001/core/registry"
)

// ErrCallExists is returned when creating a call whose id is already registered.
var ErrCallExists = errors.New("call already exists")

// Notifier fans out call state changes. Broadcast reaches every connected
// driver; Reply reaches only the requester. The two deliveries are not ordered
// relative to each other.
type Notifier interface {
	Broadcast(ctx context.Context, ev model.CallEvent) error
	Reply(ctx context.Context, driverID string, res model.ClaimResult) error
}

// Arbiter is the sole authority transitioning calls between states. Claims for
// the same call are serialized by a per-call lock; claims for different calls
// proceed in parallel.
type Arbiter struct {
	store    registry.Store
	notifier Notifier
	locks    *callLocks
	logger   corelogger.Logger
	metrics  coremetrics.MetricsSink
	logStore logging.Store
}

// New creates an Arbiter. sink may be nil when no metrics are recorded.
func New(store registry.Store, notifier Notifier, log corelogger.Logger, sink coremetrics.MetricsSink) (*Arbiter, error) {
	if store == nil || notifier == nil || log == nil {
		return nil, fmt.Errorf("arbiter: nil parameter provided to New")
	}
	return &Arbiter{
		store:    store,
		notifier: notifier,
		locks:    newCallLocks(),
		logger:   log,
		metrics:  sink,
	}, nil
}

// SetLogStore configures the store used to persist claim decisions.
func (a *Arbiter) SetLogStore(store logging.Store) {
	a.logStore = store
}

// Close releases resources held by the arbiter.
func (a *Arbiter) Close() error {
	if a.logStore != nil {
		return a.logStore.Close()
	}
	return nil
}

// ClaimCall decides a claim attempt atomically. The per-call lock is held
// across the registry read and write, so of two simultaneous claims for the
// same id exactly one observes the call still open. A registry error is
// returned as-is and leaves the call untouched; no notification has been
// emitted at that point.
func (a *Arbiter) ClaimCall(ctx context.Context, rideID, driverID string) (model.Outcome, error) {
	unlock := a.locks.lock(rideID)
	defer unlock()

	call, err := a.store.Get(ctx, rideID)
	if errors.Is(err, registry.ErrNotFound) {
		return model.OutcomeNotFound, nil
	}
	if err != nil {
		return 0, fmt.Errorf("registry read: %w", err)
	}
	if call.State != model.CallOpen {
		// Assigned to anyone, including the same driver on a retry.
		return model.OutcomeAlreadyTaken, nil
	}
	call.State = model.CallAssigned
	call.AssignedTo = driverID
	if err := a.store.Put(ctx, call); err != nil {
		return 0, fmt.Errorf("registry write: %w", err)
	}
	return model.OutcomeWon, nil
}

// HandleClaim is the transport entry point for claim requests. It decides the
// claim, replies to the requester and, on a win, broadcasts the assignment.
// On a registry failure nothing is sent: the requester's timeout surfaces the
// attempt as a transport failure and the driver retries with a fresh claim.
func (a *Arbiter) HandleClaim(ctx context.Context, req model.ClaimRequest) {
	start := time.Now()
	outcome, err := a.ClaimCall(ctx, req.RideID, req.DriverID)
	if err != nil {
		a.logger.Errorf("claim %s by %s failed: %v", req.RideID, req.DriverID, err)
		return
	}
	latency := time.Since(start)
	claimsDecided.WithLabelValues(outcome.String()).Inc()
	a.logger.Infof("claim %s by %s: %s", req.RideID, req.DriverID, outcome)

	res := model.ClaimResult{RequestID: req.RequestID, RideID: req.RideID, Outcome: outcome.String()}
	if err := a.notifier.Reply(ctx, req.DriverID, res); err != nil {
		notifyFailure.Inc()
		a.logger.Errorf("reply to %s: %v", req.DriverID, err)
	} else {
		notifySuccess.Inc()
	}
	if outcome == model.OutcomeWon {
		a.broadcast(ctx, model.CallAssignedEvent{RideID: req.RideID, AssignedTo: req.DriverID})
		a.refreshOpenGauge(ctx)
	}
	a.record(ctx, req, outcome, latency)
}

// CreateCall registers a new call and broadcasts its creation. An empty id is
// replaced by a generated one; a non-empty AssignedTo creates the call
// pre-assigned, outside the open pool.
func (a *Arbiter) CreateCall(ctx context.Context, call model.Call) (model.Call, error) {
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now().UTC()
	}
	if call.AssignedTo != "" {
		call.State = model.CallAssigned
	} else {
		call.State = model.CallOpen
	}

	unlock := a.locks.lock(call.ID)
	defer unlock()

	if _, err := a.store.Get(ctx, call.ID); err == nil {
		return model.Call{}, ErrCallExists
	} else if !errors.Is(err, registry.ErrNotFound) {
		return model.Call{}, fmt.Errorf("registry read: %w", err)
	}
	if err := a.store.Put(ctx, call); err != nil {
		return model.Call{}, fmt.Errorf("registry write: %w", err)
	}
	a.broadcast(ctx, model.CallCreatedEvent{Call: call})
	a.refreshOpenGauge(ctx)
	return call, nil
}

// CancelCall withdraws a call entirely. Later claims for the id observe
// NotFound.
func (a *Arbiter) CancelCall(ctx context.Context, rideID string) error {
	unlock := a.locks.lock(rideID)
	defer unlock()

	if _, err := a.store.Get(ctx, rideID); err != nil {
		return err
	}
	if err := a.store.Delete(ctx, rideID); err != nil {
		return fmt.Errorf("registry delete: %w", err)
	}
	a.broadcast(ctx, model.CallCanceledEvent{RideID: rideID})
	a.refreshOpenGauge(ctx)
	return nil
}

// ReleaseCall returns an assigned call to the open pool. The result is a
// brand-new open instance carrying the same id and attributes; clients treat
// it as a fresh eligible call, not a state reversal.
func (a *Arbiter) ReleaseCall(ctx context.Context, rideID string) (model.Call, error) {
	unlock := a.locks.lock(rideID)
	defer unlock()

	prev, err := a.store.Get(ctx, rideID)
	if err != nil {
		return model.Call{}, err
	}
	fresh := model.Call{
		ID:         prev.ID,
		State:      model.CallOpen,
		Attributes: prev.Attributes,
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.store.Put(ctx, fresh); err != nil {
		return model.Call{}, fmt.Errorf("registry write: %w", err)
	}
	a.broadcast(ctx, model.CallReleasedEvent{Call: fresh})
	a.refreshOpenGauge(ctx)
	return fresh, nil
}

// OpenCalls returns the current open pool, sorted by schedule time. It backs
// the pull endpoint drivers use for cold start and post-win refresh.
func (a *Arbiter) OpenCalls(ctx context.Context) ([]model.Call, error) {
	calls, err := a.store.ListOpen(ctx)
	if err != nil {
		return nil, err
	}
	openCalls.Set(float64(len(calls)))
	return calls, nil
}

// ClaimLog queries the audit log, if one is configured.
func (a *Arbiter) ClaimLog(ctx context.Context, q logging.Query) ([]logging.Record, error) {
	if a.logStore == nil {
		return nil, nil
	}
	return a.logStore.Query(ctx, q)
}

func (a *Arbiter) broadcast(ctx context.Context, ev model.CallEvent) {
	broadcastsSent.WithLabelValues(ev.Kind()).Inc()
	if err := a.notifier.Broadcast(ctx, ev); err != nil {
		notifyFailure.Inc()
		a.logger.Errorf("broadcast %s: %v", ev.Kind(), err)
		return
	}
	notifySuccess.Inc()
	if a.metrics != nil {
		if rec, ok := a.metrics.(coremetrics.BroadcastRecorder); ok {
			if err := rec.RecordBroadcast(coremetrics.BroadcastRecord{Type: ev.Kind(), Time: time.Now()}); err != nil {
				a.logger.Errorf("metrics error: %v", err)
			}
		}
	}
}

func (a *Arbiter) refreshOpenGauge(ctx context.Context) {
	calls, err := a.store.ListOpen(ctx)
	if err != nil {
		return
	}
	openCalls.Set(float64(len(calls)))
	if a.metrics != nil {
		if rec, ok := a.metrics.(coremetrics.OpenCallsRecorder); ok {
			if err := rec.RecordOpenCalls(len(calls)); err != nil {
				a.logger.Errorf("metrics error: %v", err)
			}
		}
	}
}

func (a *Arbiter) record(ctx context.Context, req model.ClaimRequest, outcome model.Outcome, latency time.Duration) {
	if a.logStore != nil {
		err := a.logStore.Append(ctx, logging.Record{
			Timestamp: time.Now().UTC(),
			RideID:    req.RideID,
			DriverID:  req.DriverID,
			RequestID: req.RequestID,
			Outcome:   outcome.String(),
			Latency:   latency,
		})
		if err != nil {
			a.logger.Errorf("claim log append: %v", err)
		}
	}
	if a.metrics != nil {
		err := a.metrics.RecordClaims([]coremetrics.ClaimRecord{{
			RideID:    req.RideID,
			DriverID:  req.DriverID,
			RequestID: req.RequestID,
			Outcome:   outcome,
			Latency:   latency,
			DecidedAt: time.Now(),
		}})
		if err != nil {
			a.logger.Errorf("metrics error: %v", err)
		}
	}
}
