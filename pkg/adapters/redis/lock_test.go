package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/tessera/pkg/adapters/redis"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T, opts ...redis.Option) (*redis.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewLocker(client, opts...), mr
}

func TestLocker_LockUnlock(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "tasks", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("tessera:lock:tasks"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("tessera:lock:tasks"))
}

func TestLocker_BlocksWhileHeld(t *testing.T) {
	locker, _ := newLocker(t, redis.WithPollInterval(10*time.Millisecond))
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "tasks", time.Minute)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(waitCtx, "tasks", time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(ctx))

	unlock2, err := locker.Lock(ctx, "tasks", time.Minute)
	require.NoError(t, err)
	assert.NoError(t, unlock2(ctx))
}

func TestLocker_IndependentKeys(t *testing.T) {
	locker, _ := newLocker(t)
	ctx := context.Background()

	unlockA, err := locker.Lock(ctx, "a", time.Minute)
	require.NoError(t, err)
	unlockB, err := locker.Lock(ctx, "b", time.Minute)
	require.NoError(t, err)

	assert.NoError(t, unlockA(ctx))
	assert.NoError(t, unlockB(ctx))
}

func TestLocker_ExpiredLockIsNotReleasedTwice(t *testing.T) {
	locker, mr := newLocker(t, redis.WithPrefix("app:"))
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "tasks", time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("app:lock:tasks"))

	mr.FastForward(2 * time.Second)
	assert.False(t, mr.Exists("app:lock:tasks"))

	// Another holder takes the key; the stale unlock must not remove it.
	unlockOther, err := locker.Lock(ctx, "tasks", time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, unlock(ctx), redis.ErrLockNotHeld)
	assert.True(t, mr.Exists("app:lock:tasks"))
	assert.NoError(t, unlockOther(ctx))
}

func TestNewLockerFromAddr(t *testing.T) {
	mr := miniredis.RunT(t)

	locker, err := redis.NewLockerFromAddr(context.Background(), mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = locker.Close() })
	assert.Equal(t, "tessera:lock:x", locker.Key("x"))

	_, err = redis.NewLockerFromAddr(context.Background(), "127.0.0.1:1")
	assert.Error(t, err)
}
