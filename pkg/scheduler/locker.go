package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Unlock releases a lock acquired with Locker.Lock.
type Unlock func(ctx context.Context) error

// Locker provides mutual exclusion on a key, possibly across processes.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// ErrLockNotHeld is returned when releasing a lock that expired or was taken over.
var ErrLockNotHeld = errors.New("lock not held")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX and a compare-and-delete release.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
}

// NewRedisLocker wraps an existing client. ttl bounds how long a crashed
// holder can block other workers.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		retry:  100 * time.Millisecond,
	}
}

// DialRedisLocker connects to addr and verifies the connection.
func DialRedisLocker(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisLocker, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisLocker(rdb, ttl), nil
}

// Lock blocks until key is acquired or ctx ends.
func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	token := uuid.NewString()
	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			return func(ctx context.Context) error {
				n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
				if err != nil {
					return fmt.Errorf("redis unlock %s: %w", key, err)
				}
				if n == 0 {
					return ErrLockNotHeld
				}
				return nil
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close closes the underlying client.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
