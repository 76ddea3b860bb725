package tessera

import (
	"log/slog"
	"time"

	"github.com/aretw0/tessera/pkg/domain"
	"github.com/aretw0/tessera/pkg/ports"
)

// Option defines a functional option for configuring the Container.
type Option func(*Container)

// WithLogger sets a custom structured logger for the container.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Container) {
		c.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Container) {
		c.hooks = hooks
	}
}

// WithLocker guards segment loaders with a distributed lock, so replicas
// sharing a backend do not run the same loader concurrently.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(c *Container) {
		c.locker = locker
	}
}

// WithLockTTL sets the TTL of segment locks (default segment.DefaultLockTTL).
func WithLockTTL(ttl time.Duration) Option {
	return func(c *Container) {
		c.lockTTL = ttl
	}
}

// WithID overrides the generated container id.
func WithID(id string) Option {
	return func(c *Container) {
		c.id = id
	}
}
