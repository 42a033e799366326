package store

import (
	"sync"
	"sync/atomic"
)

// MemoryStore is an in-memory implementation of [Store].
//
// Dispatch is serialized: at most one action is reduced and delivered at a
// time, and listeners are called synchronously from the dispatching
// goroutine. Listeners must therefore return promptly and must not call
// Dispatch or Subscribe themselves.
//
// Delivery iterates over a snapshot of the listener set, so a listener may
// unsubscribe itself (or another listener) while a notification pass is in
// progress. A listener that has been unsubscribed is skipped for the rest of
// that pass. The active check and the call are not atomic, so an unsubscribe
// from another goroutine can overlap one delivery; see [Store.Subscribe].
type MemoryStore struct {
	// dispatchMu is held while reducing and while delivering, so a new
	// subscriber's init snapshot can never interleave with an action.
	dispatchMu sync.Mutex
	state      atomic.Pointer[State]

	subMu       sync.RWMutex
	subscribers map[*subscription]struct{}
}

type subscription struct {
	listener Listener
	active   atomic.Bool
}

// NewMemoryStore creates a new in-memory [Store] holding an empty list.
//
// The store is immediately ready for use. No cleanup is required when done.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		subscribers: make(map[*subscription]struct{}),
	}
	m.state.Store(EmptyState())
	return m
}

// State returns the current snapshot.
func (m *MemoryStore) State() *State {
	return m.state.Load()
}

// Dispatch reduces action against the current state and, if the state
// changed, notifies every active listener.
func (m *MemoryStore) Dispatch(action Action) bool {
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	current := m.state.Load()
	next := Reduce(current, action)
	if next == current {
		return false
	}
	m.state.Store(next)

	for _, sub := range m.snapshot() {
		if sub.active.Load() {
			sub.listener(action)
		}
	}
	return true
}

// Subscribe registers listener and synchronously delivers an init action
// carrying the current state.
func (m *MemoryStore) Subscribe(listener Listener) (unsubscribe func()) {
	sub := &subscription{listener: listener}
	sub.active.Store(true)

	m.deliverInit(sub)

	return func() {
		if !sub.active.CompareAndSwap(true, false) {
			return
		}
		m.subMu.Lock()
		delete(m.subscribers, sub)
		m.subMu.Unlock()
	}
}

func (m *MemoryStore) deliverInit(sub *subscription) {
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	m.subMu.Lock()
	m.subscribers[sub] = struct{}{}
	m.subMu.Unlock()
	sub.listener(Init(m.state.Load()))
}

// ListenerCount returns the number of active subscriptions.
func (m *MemoryStore) ListenerCount() int {
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	return len(m.subscribers)
}

func (m *MemoryStore) snapshot() []*subscription {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	subs := make([]*subscription, 0, len(m.subscribers))
	for sub := range m.subscribers {
		subs = append(subs, sub)
	}
	return subs
}
