package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/tessera/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

const (
	// DefaultPrefix namespaces lock keys.
	DefaultPrefix = "tessera:"
	// DefaultPollInterval is how often Lock retries a held key.
	DefaultPollInterval = 100 * time.Millisecond
)

// ErrLockNotHeld is returned by an UnlockFunc when the key expired or was
// taken over by another holder.
var ErrLockNotHeld = errors.New("distributed lock not held")

// releaseScript deletes the key only when it still carries our token.
var releaseScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Locker implements ports.DistributedLocker using Redis SET NX PX.
type Locker struct {
	client       backend.UniversalClient
	prefix       string
	pollInterval time.Duration
}

// Option configures the Locker.
type Option func(*Locker)

// WithPrefix sets the key prefix. Keys are "<prefix>lock:<segment id>".
func WithPrefix(prefix string) Option {
	return func(l *Locker) {
		l.prefix = prefix
	}
}

// WithPollInterval sets the retry interval while a key is held elsewhere.
func WithPollInterval(d time.Duration) Option {
	return func(l *Locker) {
		if d > 0 {
			l.pollInterval = d
		}
	}
}

// NewLocker creates a locker on an existing client.
func NewLocker(client backend.UniversalClient, opts ...Option) *Locker {
	l := &Locker{
		client:       client,
		prefix:       DefaultPrefix,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewLockerFromAddr dials addr and checks connectivity.
func NewLockerFromAddr(ctx context.Context, addr string, opts ...Option) (*Locker, error) {
	client := backend.NewClient(&backend.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return NewLocker(client, opts...), nil
}

// Close closes the underlying client.
func (l *Locker) Close() error {
	return l.client.Close()
}

// Key returns the redis key used for a lock.
func (l *Locker) Key(key string) string {
	return l.prefix + "lock:" + key
}

// Lock blocks until key is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey := l.Key(key)
	token := uuid.NewString()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis error acquiring lock %q: %w", lockKey, err)
		}
		if ok {
			return l.unlockFunc(lockKey, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *Locker) unlockFunc(lockKey, token string) ports.UnlockFunc {
	return func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.client, []string{lockKey}, token).Int()
		if err != nil {
			return fmt.Errorf("redis error releasing lock %q: %w", lockKey, err)
		}
		if n == 0 {
			return ErrLockNotHeld
		}
		return nil
	}
}

var _ ports.DistributedLocker = (*Locker)(nil)
