package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T, ttl time.Duration) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client, ttl), mr
}

func TestLockerExcludesSecondCaller(t *testing.T) {
	locker, mr := newTestLocker(t, time.Minute)
	ctx := context.Background()
	key := ConvertLockKey(uuid.New())

	release, err := locker.Acquire(ctx, key)
	require.NoError(t, err)
	assert.True(t, mr.Exists(key))

	_, err = locker.Acquire(ctx, key)
	require.ErrorIs(t, err, ErrLockHeld)
	require.ErrorIs(t, err, ErrConflict)

	release(ctx)
	assert.False(t, mr.Exists(key))

	again, err := locker.Acquire(ctx, key)
	require.NoError(t, err)
	again(ctx)
}

func TestLockerExpires(t *testing.T) {
	locker, mr := newTestLocker(t, 2*time.Second)
	ctx := context.Background()
	key := ConvertLockKey(uuid.New())

	_, err := locker.Acquire(ctx, key)
	require.NoError(t, err)

	mr.FastForward(3 * time.Second)

	_, err = locker.Acquire(ctx, key)
	require.NoError(t, err)
}

func TestLockerReleaseKeepsForeignLock(t *testing.T) {
	locker, mr := newTestLocker(t, time.Second)
	ctx := context.Background()
	key := ConvertLockKey(uuid.New())

	stale, err := locker.Acquire(ctx, key)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	_, err = locker.Acquire(ctx, key)
	require.NoError(t, err)

	stale(ctx)
	assert.True(t, mr.Exists(key))
}

func TestNilLockerGrants(t *testing.T) {
	var locker *Locker
	release, err := locker.Acquire(context.Background(), "any")
	require.NoError(t, err)
	release(context.Background())
}
