package lock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryLocker is an in-process Locker for tests and single-node development
// runs. It honors the same attempt budget semantics as the Redis locker.
type MemoryLocker struct {
	mu         sync.Mutex
	held       map[string]struct{}
	retryDelay time.Duration
}

// NewMemoryLocker returns a locker waiting retryDelay between attempts.
func NewMemoryLocker(retryDelay time.Duration) *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{}), retryDelay: retryDelay}
}

func (l *MemoryLocker) Acquire(ctx context.Context, domain, key string, maxAttempts int) (Lock, error) {
	lockKey := LockKey(domain, key)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if l.tryAcquire(lockKey) {
			return &memoryLock{locker: l, key: lockKey}, nil
		}
		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}
	return nil, fmt.Errorf("lock %s after %d attempts: %w", lockKey, maxAttempts, ErrAttemptsExhausted)
}

func (l *MemoryLocker) tryAcquire(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[key]; taken {
		return false
	}
	l.held[key] = struct{}{}
	return true
}

func (l *MemoryLocker) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
}

type memoryLock struct {
	locker *MemoryLocker
	key    string
}

func (l *memoryLock) Release(_ context.Context) error {
	l.locker.release(l.key)
	return nil
}
