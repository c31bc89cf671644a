package mutex

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vellumapp/platform/internal/errs"
)

type memoryLease struct {
	token  string
	expiry time.Time
}

// MemoryMutex is an in-process Mutex for tests, holding leases in a map
// guarded by a single mutex rather than Redis. Each lease carries a random
// token so a holder can only Release/Extend the lease it actually owns,
// mirroring the fencing RedisMutex gets from its Lua scripts: a lock that
// expired and was reacquired by someone else can't be stolen back.
type MemoryMutex struct {
	mu    sync.Mutex
	held  map[string]memoryLease
	retry time.Duration
}

func NewMemoryMutex() *MemoryMutex {
	return &MemoryMutex{held: make(map[string]memoryLease), retry: 5 * time.Millisecond}
}

func (m *MemoryMutex) TryAcquire(ctx context.Context, resource string, ttl time.Duration) (Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lease, ok := m.held[resource]; ok && lease.expiry.After(time.Now()) {
		return nil, errs.New(errs.KindConflict, "resource is already locked")
	}
	token := uuid.NewString()
	m.held[resource] = memoryLease{token: token, expiry: time.Now().Add(ttl)}
	return &memoryLock{m: m, resource: resource, token: token}, nil
}

func (m *MemoryMutex) Acquire(ctx context.Context, resource string, ttl time.Duration) (Lock, error) {
	ticker := time.NewTicker(m.retry)
	defer ticker.Stop()

	for {
		lock, err := m.TryAcquire(ctx, resource, ttl)
		if err == nil {
			return lock, nil
		}
		if errs.KindOf(err) != errs.KindConflict {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, errs.Wrap(errs.KindMutexLost, "acquire distributed lock", ctx.Err())
		case <-ticker.C:
		}
	}
}

type memoryLock struct {
	m        *MemoryMutex
	resource string
	token    string
}

func (l *memoryLock) Release(ctx context.Context) error {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	if lease, ok := l.m.held[l.resource]; ok && lease.token == l.token {
		delete(l.m.held, l.resource)
	}
	return nil
}

func (l *memoryLock) Extend(ctx context.Context, ttl time.Duration) error {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	lease, ok := l.m.held[l.resource]
	if !ok || lease.token != l.token {
		return errs.New(errs.KindMutexLost, "lock was already released or stolen")
	}
	l.m.held[l.resource] = memoryLease{token: l.token, expiry: time.Now().Add(ttl)}
	return nil
}
