package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventDispatch       EventType = "dispatch"
	EventSegmentLoading EventType = "segment_loading"
	EventSegmentLoaded  EventType = "segment_loaded"
	EventSegmentFailed  EventType = "segment_failed"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp   time.Time `json:"timestamp"`
	Type        EventType `json:"type"`
	ContainerID string    `json:"container_id,omitempty"`
}

// DispatchEvent describes one applied action.
type DispatchEvent struct {
	EventBase
	ActionType string        `json:"action_type"`
	Changed    bool          `json:"changed"`
	Duration   time.Duration `json:"duration"`
}

// SegmentEvent describes a segment lifecycle transition.
type SegmentEvent struct {
	EventBase
	SegmentID string        `json:"segment_id"`
	Duration  time.Duration `json:"duration,omitempty"`
	Err       error         `json:"-"`
}

// LifecycleHooks defines callbacks for container observability.
// Nil hooks are skipped.
type LifecycleHooks struct {
	OnDispatch       func(context.Context, *DispatchEvent)
	OnSegmentLoading func(context.Context, *SegmentEvent)
	OnSegmentLoaded  func(context.Context, *SegmentEvent)
	OnSegmentFailed  func(context.Context, *SegmentEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnDispatch:       chain(h.OnDispatch, other.OnDispatch),
		OnSegmentLoading: chain(h.OnSegmentLoading, other.OnSegmentLoading),
		OnSegmentLoaded:  chain(h.OnSegmentLoaded, other.OnSegmentLoaded),
		OnSegmentFailed:  chain(h.OnSegmentFailed, other.OnSegmentFailed),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
