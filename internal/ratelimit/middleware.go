package ratelimit

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vellumapp/platform/internal/errs"
)

// IdentityFunc extracts the per-request identity a bucket is keyed on (a
// user id, an API key id, or a remote address fallback).
type IdentityFunc func(*http.Request) string

// ExemptFunc reports whether a request carries an admin bypass flag that
// skips the rate limit check entirely, per §4.7.
type ExemptFunc func(*http.Request) bool

type rateLimitResponse struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	RetryAfterSeconds int64  `json:"retry_after_seconds"`
}

// Middleware builds an http.Handler wrapper that checks one ticket out of
// the named resource's bucket for every request, keyed by identity.
func Middleware(l *Limiter, resource string, identity IdentityFunc, exempt ExemptFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := "unknown"
			if identity != nil {
				if v := identity(r); v != "" {
					id = v
				}
			}
			isExempt := exempt != nil && exempt(r)

			result, err := l.Allow(r.Context(), resource, id, 1, isExempt)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}
			if errs.KindOf(err) != errs.KindRateLimitExceeded {
				// The rate limit store is unavailable; fail open rather than
				// block every request behind a down dependency.
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", result.ResetSeconds))
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(rateLimitResponse{
				Error:             "rate_limit_exceeded",
				Message:           fmt.Sprintf("rate limit exceeded for %s", resource),
				RetryAfterSeconds: result.ResetSeconds,
			})
		})
	}
}
