// Package store is the synchronous state primitive behind a container: it
// holds the current state and reducer, serializes dispatches and notifies
// listeners when the state reference changes.
package store

import (
	"sync"

	"github.com/aretw0/tessera/pkg/domain"
)

// Listener is notified after a dispatch changed the state.
type Listener func()

// Creator builds a store. Enhancers wrap it.
type Creator func(reducer domain.ReducerFunc, state any) *Store

// Enhancer decorates store creation (for example to wrap the reducer or
// pre-load state).
type Enhancer func(next Creator) Creator

// Store holds the live state.
type Store struct {
	mu      sync.Mutex // serializes dispatch and reducer swaps
	state   any
	reducer domain.ReducerFunc

	listenersMu sync.Mutex
	nextID      uint64
	listeners   map[uint64]Listener
	order       []uint64
}

// New creates a store and dispatches domain.ActionInit through reducer.
// A non-nil enhancer decides how the store is actually built.
func New(reducer domain.ReducerFunc, state any, enhancer Enhancer) *Store {
	if enhancer != nil {
		return enhancer(create)(reducer, state)
	}
	return create(reducer, state)
}

func create(reducer domain.ReducerFunc, state any) *Store {
	s := &Store{
		state:     state,
		reducer:   reducer,
		listeners: make(map[uint64]Listener),
	}
	s.state = reducer(state, domain.Action{Type: domain.ActionInit})
	return s
}

// GetState returns the current state.
func (s *Store) GetState() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies action. Listeners run after the swap, outside the lock,
// and only when the state reference changed. It reports whether it did.
// Reducers must not dispatch.
func (s *Store) Dispatch(action domain.Action) bool {
	s.mu.Lock()
	prev := s.state
	next := s.reducer(prev, action)
	s.state = next
	s.mu.Unlock()

	if domain.Same(prev, next) {
		return false
	}
	s.Notify()
	return true
}

// Notify calls every listener.
func (s *Store) Notify() {
	for _, l := range s.snapshot() {
		l()
	}
}

// Subscribe registers a listener and returns the function removing it.
// Listeners are called in subscription order.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.order = append(s.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			defer s.listenersMu.Unlock()
			delete(s.listeners, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

// ReplaceReducer swaps the reducer and dispatches domain.ActionReplace.
// It reports whether the state changed.
func (s *Store) ReplaceReducer(reducer domain.ReducerFunc) bool {
	if !s.SwapReducer(reducer) {
		return false
	}
	s.Notify()
	return true
}

// SwapReducer is ReplaceReducer without notifying listeners. Callers that
// hold their own locks use it and call Notify once they released them.
func (s *Store) SwapReducer(reducer domain.ReducerFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reducer = reducer
	prev := s.state
	s.state = reducer(prev, domain.Action{Type: domain.ActionReplace})
	return !domain.Same(prev, s.state)
}

func (s *Store) snapshot() []Listener {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	out := make([]Listener, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.listeners[id])
	}
	return out
}
