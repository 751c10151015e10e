package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only if it still holds our token, so an
// expired-and-reacquired lock is never released by its previous holder.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker on a shared Redis instance using SET NX with
// a TTL. The TTL bounds how long a crashed holder can wedge an account; a
// live holder always releases explicitly.
type RedisLocker struct {
	client     *redis.Client
	ttl        time.Duration
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewRedisLocker creates a locker holding keys for ttl and waiting retryDelay
// between acquisition attempts.
func NewRedisLocker(client *redis.Client, ttl, retryDelay time.Duration, logger *slog.Logger) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, retryDelay: retryDelay, logger: logger}
}

func (l *RedisLocker) Acquire(ctx context.Context, domain, key string, maxAttempts int) (Lock, error) {
	lockKey := LockKey(domain, key)
	token := uuid.NewString()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquiring lock %s: %w", lockKey, err)
		}
		if ok {
			return &redisLock{client: l.client, key: lockKey, token: token}, nil
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

	l.logger.Warn("gave up acquiring lock", "key", lockKey, "attempts", maxAttempts)
	return nil, fmt.Errorf("lock %s after %d attempts: %w", lockKey, maxAttempts, ErrAttemptsExhausted)
}

// LockKey builds the Redis key for a lock in the given domain.
func LockKey(domain, key string) string {
	return "lock:" + domain + ":" + key
}

type redisLock struct {
	client *redis.Client
	key    string
	token  string
}

func (l *redisLock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("releasing lock %s: %w", l.key, err)
	}
	return nil
}
