package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, "test:", time.Second), mr
}

func TestRedisLockerExcludesSecondHolder(t *testing.T) {
	locker, mr := newRedisLocker(t)

	release, err := locker.Acquire(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if !mr.Exists("test:session-1") {
		t.Fatal("expected lock key in redis")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	if _, err := locker.Acquire(ctx, "session-1"); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}

	release()
	if mr.Exists("test:session-1") {
		t.Fatal("expected key removed after release")
	}

	release2, err := locker.Acquire(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	release2()
}

func TestRedisLockerReleaseKeepsForeignToken(t *testing.T) {
	locker, mr := newRedisLocker(t)

	release, err := locker.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	// Simulate expiry followed by another holder taking the key.
	if err := mr.Set("test:k", "someone-else"); err != nil {
		t.Fatalf("set: %v", err)
	}

	release()
	if got, _ := mr.Get("test:k"); got != "someone-else" {
		t.Fatalf("release deleted a lock it no longer owned, value=%q", got)
	}
}

func TestLocalLockerSerializes(t *testing.T) {
	locker := NewLocalLocker()
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(context.Background(), "same")
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			n := inside.Add(1)
			if n > maxInside.Load() {
				maxInside.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()

	if maxInside.Load() != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxInside.Load())
	}
	if len(locker.keys) != 0 {
		t.Fatalf("expected entries to be cleaned up, got %d", len(locker.keys))
	}
}

func TestLocalLockerHonoursContext(t *testing.T) {
	locker := NewLocalLocker()
	release, _ := locker.Acquire(context.Background(), "k")
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := locker.Acquire(ctx, "k"); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}
}

func TestNewRedisClientPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0", false)
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	defer client.Close()

	if _, err := NewRedisClient(context.Background(), "not a url", false); err == nil {
		t.Fatal("expected parse error")
	}

	mr.Close()
	if _, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0", false); err == nil {
		t.Fatal("expected ping error once the server is gone")
	}
}
