package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockerAcquireRelease(t *testing.T) {
	locker := NewMemoryLocker(time.Millisecond)
	ctx := context.Background()

	held, err := locker.Acquire(ctx, "refresh", "account-1", 1)
	require.NoError(t, err)

	// Same key is taken, a different key is not.
	_, err = locker.Acquire(ctx, "refresh", "account-1", 1)
	require.ErrorIs(t, err, ErrAttemptsExhausted)

	other, err := locker.Acquire(ctx, "refresh", "account-2", 1)
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, held.Release(ctx))
	reacquired, err := locker.Acquire(ctx, "refresh", "account-1", 1)
	require.NoError(t, err)
	require.NoError(t, reacquired.Release(ctx))
}

func TestMemoryLockerDomainsAreIndependent(t *testing.T) {
	locker := NewMemoryLocker(time.Millisecond)
	ctx := context.Background()

	a, err := locker.Acquire(ctx, "refresh", "key", 1)
	require.NoError(t, err)
	defer func() { _ = a.Release(ctx) }()

	b, err := locker.Acquire(ctx, "maintenance", "key", 1)
	require.NoError(t, err)
	require.NoError(t, b.Release(ctx))
}

func TestMemoryLockerRetriesUntilReleased(t *testing.T) {
	locker := NewMemoryLocker(time.Millisecond)
	ctx := context.Background()

	held, err := locker.Acquire(ctx, "refresh", "contended", 1)
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = held.Release(ctx)
	}()

	// Plenty of attempt budget: the waiter wins once the holder lets go.
	waited, err := locker.Acquire(ctx, "refresh", "contended", 100)
	require.NoError(t, err)
	require.NoError(t, waited.Release(ctx))
}

func TestMemoryLockerAcquireHonorsContext(t *testing.T) {
	locker := NewMemoryLocker(50 * time.Millisecond)
	ctx := context.Background()

	held, err := locker.Acquire(ctx, "refresh", "key", 1)
	require.NoError(t, err)
	defer func() { _ = held.Release(ctx) }()

	cancelled, cancel := context.WithTimeout(ctx, 5*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(cancelled, "refresh", "key", 100)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryLockerMutualExclusion(t *testing.T) {
	locker := NewMemoryLocker(time.Millisecond)
	ctx := context.Background()

	var running int32
	var overlapped atomic.Bool
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			held, err := locker.Acquire(ctx, "refresh", "shared", 1000)
			if err != nil {
				t.Error(err)
				return
			}
			if atomic.AddInt32(&running, 1) > 1 {
				overlapped.Store(true)
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			_ = held.Release(ctx)
		}()
	}
	wg.Wait()

	assert.False(t, overlapped.Load(), "critical sections must not overlap")
}

func TestLockKey(t *testing.T) {
	assert.Equal(t, "lock:analytics-refresh:abc", LockKey("analytics-refresh", "abc"))
}
