package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (Locker, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisScopeLocker(client, 2*time.Second), client
}

func TestWithScopeLockRunsCriticalSection(t *testing.T) {
	locker, _ := newTestLocker(t)

	ran := false
	err := locker.WithScopeLock(context.Background(), "doc-1:2026-03-02", func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestWithScopeLockBlocksConcurrentHolder(t *testing.T) {
	locker, client := newTestLocker(t)
	ctx := context.Background()

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = locker.WithScopeLock(ctx, "doc-1:2026-03-02", func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := locker.WithScopeLock(ctx, "doc-1:2026-03-02", func(ctx context.Context) error {
		t.Fatal("second holder must not enter the critical section")
		return nil
	})
	require.ErrorIs(t, err, ErrLockNotAcquired)

	// a different scope is independent
	err = locker.WithScopeLock(ctx, "doc-2:2026-03-02", func(ctx context.Context) error { return nil })
	require.NoError(t, err)

	close(release)

	// released lock key is gone
	require.Eventually(t, func() bool {
		n, err := client.Exists(ctx, "lock:queue:doc-1:2026-03-02").Result()
		return err == nil && n == 0
	}, time.Second, 10*time.Millisecond)
}

func TestWithScopeLockReleasesAfterError(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx := context.Background()

	sentinel := errors.New("boom")
	err := locker.WithScopeLock(ctx, "doc-1:2026-03-02", func(ctx context.Context) error {
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	// the scope can be re-acquired immediately
	err = locker.WithScopeLock(ctx, "doc-1:2026-03-02", func(ctx context.Context) error { return nil })
	require.NoError(t, err)
}
