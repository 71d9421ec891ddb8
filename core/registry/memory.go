package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/noachFrank/DriverApp-sub001/core/model"
)

// MemoryStore keeps the registry in process memory. It is the default backend
// for a single dispatch instance.
type MemoryStore struct {
	mu    sync.RWMutex
	calls map[string]model.Call
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{calls: make(map[string]model.Call)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	call, ok := s.calls[id]
	if !ok {
		return model.Call{}, ErrNotFound
	}
	return call, nil
}

func (s *MemoryStore) Put(_ context.Context, call model.Call) error {
	s.mu.Lock()
	s.calls[call.ID] = call
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.calls, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListOpen(_ context.Context) ([]model.Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.Call, 0, len(s.calls))
	for _, c := range s.calls {
		if c.IsOpen() {
			res = append(res, c)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Attributes.ScheduledAt.Before(res[j].Attributes.ScheduledAt)
	})
	return res, nil
}
