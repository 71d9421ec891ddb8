package registry

import (
	"context"
	"errors"

	"github.com/noachFrank/DriverApp-sub001/core/model"
)

// ErrNotFound is returned when no call with the requested id exists.
var ErrNotFound = errors.New("call not found")

// Store is the authoritative registry of calls in state Open or Assigned.
// Canceled calls are deleted; a later lookup of their id returns ErrNotFound.
//
// Store implementations do not serialize concurrent claims themselves; the
// arbiter holds a per-call critical section across the Get/Put pair.
type Store interface {
	// Get returns the call with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (model.Call, error)
	// Put inserts or replaces the call.
	Put(ctx context.Context, call model.Call) error
	// Delete removes the call. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error
	// ListOpen returns all calls currently in state Open.
	ListOpen(ctx context.Context) ([]model.Call, error)
}
