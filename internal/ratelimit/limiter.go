// Package ratelimit is the rate-limit core (C7): a per-(resource, identity)
// token bucket enforced by a single scripted atomic call to the shared
// key-value store, so concurrent requests against the same bucket never
// race a read-then-write.
package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vellumapp/platform/internal/config"
	"github.com/vellumapp/platform/internal/errs"
	"github.com/vellumapp/platform/internal/metrics"
)

// bucketScript implements §4.7's four-step atomic primitive in one round
// trip: read count/window, reset if the window expired, reject (and
// penalize on overuse) if the ticket would exceed the limit, otherwise
// increment and return the remaining count and seconds to reset.
//
// KEYS[1] = bucket key
// ARGV[1] = limit
// ARGV[2] = interval_seconds
// ARGV[3] = ticket_count
// ARGV[4] = overuse_threshold
// ARGV[5] = penalty_ttl_seconds
//
// returns {remaining, reset_seconds} where remaining = -1 signals rejection.
const bucketScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
local tickets = tonumber(ARGV[3])
local overuse_threshold = tonumber(ARGV[4])
local penalty_ttl = tonumber(ARGV[5])

local count = tonumber(redis.call("HGET", key, "count"))
local ttl = redis.call("TTL", key)

if count == nil or ttl < 0 then
	count = 0
	redis.call("HSET", key, "count", 0)
	redis.call("EXPIRE", key, interval)
	ttl = interval
end

if count + tickets > limit then
	local overage = count + tickets - limit
	if overage >= overuse_threshold and penalty_ttl > 0 then
		redis.call("EXPIRE", key, penalty_ttl)
	end
	return {-1, ttl}
end

count = redis.call("HINCRBY", key, "count", tickets)
return {limit - count, ttl}
`

// Result is the outcome of a single Allow call.
type Result struct {
	Allowed       bool
	Remaining     int64
	ResetSeconds  int64
}

// Limiter enforces the per-resource token buckets configured in
// RateLimitConfig against a shared Redis instance.
type Limiter struct {
	client  *redis.Client
	cfg     config.RateLimitConfig
	metrics *metrics.Metrics
}

func New(client *redis.Client, cfg config.RateLimitConfig, m *metrics.Metrics) *Limiter {
	return &Limiter{client: client, cfg: cfg, metrics: m}
}

// Allow checks out ticketCount tokens from the (resource, identity) bucket.
// exempt identities (admin bypass) always pass and never touch the store.
func (l *Limiter) Allow(ctx context.Context, resource, identity string, ticketCount int64, exempt bool) (Result, error) {
	if exempt {
		return Result{Allowed: true, Remaining: -1}, nil
	}

	bucket, ok := l.cfg.Resources[resource]
	if !ok {
		return Result{Allowed: true, Remaining: -1}, nil
	}

	key := bucketKey(resource, identity)
	raw, err := l.client.Eval(ctx, bucketScript, []string{key},
		bucket.Limit, bucket.IntervalSeconds, ticketCount,
		bucket.OveruseThreshold, int64(bucket.PenaltyTTL.Seconds()),
	).Result()
	if err != nil {
		return Result{}, errs.Wrap(errs.KindTransientStore, "evaluate rate limit script", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return Result{}, errs.New(errs.KindFatal, "unexpected rate limit script result shape")
	}
	remaining := toInt64(values[0])
	resetSeconds := toInt64(values[1])

	allowed := remaining >= 0
	if l.metrics != nil {
		l.metrics.ObserveRateLimit(resource, !allowed)
	}

	if !allowed {
		return Result{Allowed: false, Remaining: 0, ResetSeconds: resetSeconds},
			errs.New(errs.KindRateLimitExceeded, fmt.Sprintf("rate limit exceeded for %s", resource)).
				WithDetails(map[string]any{"retry_after_seconds": resetSeconds})
	}
	return Result{Allowed: true, Remaining: remaining, ResetSeconds: resetSeconds}, nil
}

func bucketKey(resource, identity string) string {
	return "platform:ratelimit:" + resource + ":" + identity
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
