package client

import (
	"sort"
	"sync"

	corelogger "github.com/noachFrank/DriverApp-sub001/core/logger"
	"github.com/noachFrank/DriverApp-sub001/core/model"
)

// Reconciler maintains the driver's local cache of open calls by applying
// inbound broadcast events. The transport may redeliver events after a
// reconnect, so every handler is idempotent: applying the same event twice
// leaves the cache exactly as applying it once.
type Reconciler struct {
	driverID string
	logger   corelogger.Logger

	mu    sync.RWMutex
	cache map[string]model.Call
}

// NewReconciler creates an empty Reconciler for the given driver.
func NewReconciler(driverID string, log corelogger.Logger) *Reconciler {
	return &Reconciler{
		driverID: driverID,
		logger:   log,
		cache:    make(map[string]model.Call),
	}
}

// Apply folds one broadcast event into the cache.
func (r *Reconciler) Apply(ev model.CallEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch e := ev.(type) {
	case model.CallAssignedEvent:
		// gone from the open pool no matter who won; absent key is a no-op
		delete(r.cache, e.RideID)
	case model.CallCanceledEvent:
		delete(r.cache, e.RideID)
	case model.CallReleasedEvent:
		// a redelivered release must not clobber a row that later events
		// already refreshed
		if _, ok := r.cache[e.Call.ID]; !ok && e.Call.IsOpen() {
			r.cache[e.Call.ID] = e.Call
		}
	case model.CallCreatedEvent:
		// pre-assigned calls belong to a different view and never enter
		// the open cache
		if e.Call.IsOpen() {
			r.cache[e.Call.ID] = e.Call
		}
	default:
		// closed variant set; reaching this means a protocol extension the
		// client does not understand yet
		r.logger.Warnf("unhandled call event %q", ev.Kind())
	}
}

// Replace swaps the entire cache for the authoritative snapshot from a pull.
func (r *Reconciler) Replace(calls []model.Call) {
	next := make(map[string]model.Call, len(calls))
	for _, c := range calls {
		if c.IsOpen() {
			next[c.ID] = c
		}
	}
	r.mu.Lock()
	r.cache = next
	r.mu.Unlock()
}

// OpenCalls returns the cached open calls ordered by schedule time.
func (r *Reconciler) OpenCalls() []model.Call {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]model.Call, 0, len(r.cache))
	for _, c := range r.cache {
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Attributes.ScheduledAt.Before(res[j].Attributes.ScheduledAt)
	})
	return res
}

// Contains reports whether the cache holds the given call id.
func (r *Reconciler) Contains(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.cache[id]
	return ok
}

// Len returns the number of cached open calls.
func (r *Reconciler) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}
