// Package lock provides the account-scoped mutual exclusion used around
// refresh dispatch: at most one holder per account across the whole fleet of
// processes sharing the lock backend.
package lock

import (
	"context"
	"errors"
)

// ErrAttemptsExhausted is returned when a lock could not be acquired within
// the configured attempt budget.
var ErrAttemptsExhausted = errors.New("lock acquisition attempts exhausted")

// Lock is a held lock. Release must be called exactly once, on every exit
// path of the protected section.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker hands out named locks with bounded retry. The key is scoped by a
// domain name so unrelated subsystems sharing the backend cannot collide.
type Locker interface {
	Acquire(ctx context.Context, domain, key string, maxAttempts int) (Lock, error)
}
