package http

import (
	"slices"
	"sync"
)

// StreamManager fans state diffs out to SSE clients.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan []byte][]string // channel -> watched namespaces (nil: all)
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[chan []byte][]string),
	}
}

// Subscribe registers a client interested in watch (every namespace when
// empty). The returned function unregisters it and closes the channel.
func (sm *StreamManager) Subscribe(watch []string) (<-chan []byte, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan []byte, 10)
	sm.subscribers[ch] = watch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			delete(sm.subscribers, ch)
			close(ch)
		})
	}
}

// Broadcast sends msg to every client watching one of namespaces.
// Slow clients drop messages instead of blocking the dispatcher.
func (sm *StreamManager) Broadcast(msg []byte, namespaces []string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch, watch := range sm.subscribers {
		if len(watch) > 0 && !overlaps(watch, namespaces) {
			continue
		}
		select {
		case ch <- msg:
		default:
		}
	}
}

// Len returns the number of subscribed clients.
func (sm *StreamManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers)
}

func overlaps(a, b []string) bool {
	for _, v := range a {
		if slices.Contains(b, v) {
			return true
		}
	}
	return false
}
