package scheduler

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real server when REDIS_ADDR is set.
func newTestRedisLocker(t *testing.T) *RedisLocker {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	l, err := DialRedisLocker(context.Background(), addr, os.Getenv("REDIS_PASSWORD"), 0, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRedisLocker_MutualExclusion(t *testing.T) {
	l := newTestRedisLocker(t)
	ctx := context.Background()
	key := "conceptgraph:test:" + uuid.NewString()

	unlock, err := l.Lock(ctx, key)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	_, err = l.Lock(waitCtx, key)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(ctx))
	assert.ErrorIs(t, unlock(ctx), ErrLockNotHeld)

	unlock2, err := l.Lock(ctx, key)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestRedisLocker_Expiry(t *testing.T) {
	l := newTestRedisLocker(t)
	ctx := context.Background()
	key := "conceptgraph:test:" + uuid.NewString()

	stale, err := l.Lock(ctx, key)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	fresh, err := l.Lock(waitCtx, key)
	require.NoError(t, err)

	assert.ErrorIs(t, stale(ctx), ErrLockNotHeld)
	require.NoError(t, fresh(ctx))
}

func TestNewRedisLocker_Defaults(t *testing.T) {
	l := NewRedisLocker(nil, 0)
	assert.Equal(t, 10*time.Minute, l.ttl)
}
