package cron

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fensho/marketplace-backend/pkg/redis"
)

type fakeLease struct{ released *int }

func (l fakeLease) Release(context.Context) error {
	*l.released++
	return nil
}

type fakeLocker struct {
	held     bool
	err      error
	released int
	ttl      time.Duration
}

func (f *fakeLocker) Obtain(_ context.Context, _ string, ttl time.Duration) (redis.Lease, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.held {
		return nil, redis.ErrLockNotObtained
	}
	f.ttl = ttl
	return fakeLease{released: &f.released}, nil
}

func (f *fakeLocker) LockKey(parts ...string) string { return "lock:" + strings.Join(parts, ":") }

func TestRedisLockAcquireRelease(t *testing.T) {
	locker := &fakeLocker{}
	lock, err := NewRedisLock(locker, "cron-worker", 0)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	if lock.key != "lock:cron:cron-worker" {
		t.Fatalf("unexpected key %q", lock.key)
	}

	ok, err := lock.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected lock, got %v %v", ok, err)
	}
	if locker.ttl != defaultLockTTL {
		t.Fatalf("expected default ttl, got %s", locker.ttl)
	}
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if locker.released != 1 {
		t.Fatalf("expected one release, got %d", locker.released)
	}
}

func TestRedisLockContention(t *testing.T) {
	locker := &fakeLocker{held: true}
	lock, _ := NewRedisLock(locker, "cron-worker", time.Minute)
	ok, err := lock.Acquire(context.Background())
	if err != nil || ok {
		t.Fatalf("expected contention to report false, got %v %v", ok, err)
	}

	locker.err = errors.New("connection refused")
	if _, err := lock.Acquire(context.Background()); err == nil {
		t.Fatal("expected redis failure to surface")
	}
}
