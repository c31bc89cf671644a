// Package mutex is the distributed mutex (C3): a Redis-backed advisory lock
// keyed by resource name, used to serialize the transaction runner's
// critical sections and the payment reconciler's idempotency window across
// every process sharing the same Redis instance.
package mutex

import (
	"context"
	"time"
)

// Lock represents a held mutex lease. Release is idempotent: calling it
// after the lease has already expired is a safe no-op, not an error.
type Lock interface {
	// Release gives up the lease early. Releasing a lease that had already
	// expired or been stolen before this call is a no-op and returns nil.
	Release(ctx context.Context) error

	// Extend pushes the lease's expiry forward by ttl, provided this holder
	// still owns it. Returns errs.KindMutexLost otherwise.
	Extend(ctx context.Context, ttl time.Duration) error
}

// Mutex is the distributed locking surface. Acquire blocks (subject to
// ctx's deadline) until the lease is obtained or the context is done.
type Mutex interface {
	Acquire(ctx context.Context, resource string, ttl time.Duration) (Lock, error)

	// TryAcquire attempts a single non-blocking acquire, returning
	// (nil, errs.KindConflict) immediately if the resource is already held.
	TryAcquire(ctx context.Context, resource string, ttl time.Duration) (Lock, error)
}

// WithLock acquires resource, runs fn, and releases the lock afterward
// regardless of fn's outcome. This is the shape every caller in this core
// uses rather than manipulating Lock directly.
func WithLock(ctx context.Context, m Mutex, resource string, ttl time.Duration, fn func(ctx context.Context) error) error {
	lock, err := m.Acquire(ctx, resource, ttl)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release(context.WithoutCancel(ctx)) }()

	return fn(ctx)
}
