package arbiter

import "sync"

// callLocks hands out one mutex per call id so claims for the same call are
// serialized while claims for different calls run in parallel. Entries are
// refcounted and dropped as soon as the last holder releases, which keeps the
// map bounded even when call ids churn.
type callLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newCallLocks() *callLocks {
	return &callLocks{entries: make(map[string]*lockEntry)}
}

// lock acquires the per-id mutex and returns the release function.
func (l *callLocks) lock(id string) func() {
	l.mu.Lock()
	e, ok := l.entries[id]
	if !ok {
		e = &lockEntry{}
		l.entries[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, id)
		}
		l.mu.Unlock()
	}
}

// size reports the number of live entries. Used in tests to verify reclamation.
func (l *callLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
