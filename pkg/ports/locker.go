package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker defines the interface for cross-process concurrency control.
// The segment registry holds it around a loader call, so replicas sharing a
// backend do not run the same loader at once.
type DistributedLocker interface {
	// Lock acquires the lock for key (a segment id).
	// It blocks until the lock is acquired or the context is canceled.
	// Returns an UnlockFunc that MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
