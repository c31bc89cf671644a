package mutex

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vellumapp/platform/internal/errs"
)

// releaseScript only deletes the key if it still holds this token, so a
// holder can never release a lease another process has since acquired
// after this one's TTL expired.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// extendScript pushes the TTL forward only if this token still owns the key.
const extendScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`

// RedisMutex implements Mutex with SET NX PX for acquisition and a
// token-checked Lua script for release/extend, so a lease can never be
// released or renewed by anyone but the process that acquired it.
type RedisMutex struct {
	client     *redis.Client
	retryDelay time.Duration
}

func NewRedisMutex(client *redis.Client, retryDelay time.Duration) *RedisMutex {
	if retryDelay <= 0 {
		retryDelay = 50 * time.Millisecond
	}
	return &RedisMutex{client: client, retryDelay: retryDelay}
}

func (m *RedisMutex) TryAcquire(ctx context.Context, resource string, ttl time.Duration) (Lock, error) {
	token := uuid.NewString()
	key := lockKey(resource)

	ok, err := m.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, errs.Wrap(errs.KindTransientStore, "acquire distributed lock", err)
	}
	if !ok {
		return nil, errs.New(errs.KindConflict, "resource is already locked")
	}

	return &redisLock{client: m.client, key: key, token: token}, nil
}

func (m *RedisMutex) Acquire(ctx context.Context, resource string, ttl time.Duration) (Lock, error) {
	ticker := time.NewTicker(m.retryDelay)
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

func lockKey(resource string) string {
	return "platform:mutex:" + resource
}

type redisLock struct {
	client *redis.Client
	key    string
	token  string
}

func (l *redisLock) Release(ctx context.Context) error {
	// A zero result means the lease already expired or was taken over; an
	// idempotent Release treats that as done, not as an error.
	if err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Err(); err != nil {
		return errs.Wrap(errs.KindTransientStore, "release distributed lock", err)
	}
	return nil
}

func (l *redisLock) Extend(ctx context.Context, ttl time.Duration) error {
	n, err := l.client.Eval(ctx, extendScript, []string{l.key}, l.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return errs.Wrap(errs.KindTransientStore, "extend distributed lock", err)
	}
	if n == 0 {
		return errs.New(errs.KindMutexLost, "lock was already released or stolen")
	}
	return nil
}
