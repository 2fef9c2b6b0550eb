// Package locks provides an in-process lock manager keyed by resource id.
// Lock lifecycle is tied to the owning service instance, not the process.
package locks

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewManager() *Manager {
	return &Manager{entries: make(map[string]*entry)}
}

// Lock blocks until the key is held and returns the matching unlock func.
// Entries are dropped once the last holder releases, so the map stays
// proportional to the number of keys currently contended.
func (m *Manager) Lock(key string) func() {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		m.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(m.entries, key)
		}
		m.mu.Unlock()
	}
}
