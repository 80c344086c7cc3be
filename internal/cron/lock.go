package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fensho/marketplace-backend/pkg/redis"
)

const defaultLockTTL = 5 * time.Minute

// Lock coordinates exclusive cron runs.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// RedisLock implements Lock with a redislock lease so that only one
// cron-worker replica runs a cycle at a time.
type RedisLock struct {
	locker redis.Locker
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	lease redis.Lease
}

// NewRedisLock constructs a Redis-backed lock.
func NewRedisLock(locker redis.Locker, name string, ttl time.Duration) (*RedisLock, error) {
	if locker == nil {
		return nil, errors.New("redis locker required for lock")
	}
	if name == "" {
		return nil, errors.New("lock name is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{locker: locker, key: locker.LockKey("cron", name), ttl: ttl}, nil
}

// Acquire tries to own the lock for the configured TTL.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	lease, err := l.locker.Obtain(ctx, l.key, l.ttl)
	if err != nil {
		if errors.Is(err, redis.ErrLockNotObtained) {
			return false, nil
		}
		return false, fmt.Errorf("obtain %s: %w", l.key, err)
	}
	l.mu.Lock()
	l.lease = lease
	l.mu.Unlock()
	return true, nil
}

// Release frees the lease if this instance holds one.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	lease := l.lease
	l.lease = nil
	l.mu.Unlock()
	if lease == nil {
		return nil
	}
	if err := lease.Release(ctx); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
