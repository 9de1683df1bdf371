package service

import "sync"

// appLocks serialises work per application id. Votes and window expiry for
// one application run inside the same critical section; different
// applications proceed in parallel.
type appLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newAppLocks() *appLocks {
	return &appLocks{entries: make(map[string]*lockEntry)}
}

// Acquire blocks until the application's lock is held and returns the
// release function.
func (l *appLocks) Acquire(id string) func() {
	l.mu.Lock()
	entry, ok := l.entries[id]
	if !ok {
		entry = &lockEntry{}
		l.entries[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, id)
		}
		l.mu.Unlock()
	}
}
