package errs

import (
	"errors"
	"fmt"
)

// CoreError is the error type returned by every core component. It carries
// a Kind so callers (most importantly the transaction runner's retry loop)
// can branch on classification with errors.As instead of string matching.
type CoreError struct {
	Kind    Kind
	Message string
	Details map[string]any
	cause   error
}

func (e *CoreError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error {
	return e.cause
}

// Is supports errors.Is(err, errs.New(KindNotFound, "")) style kind checks.
func (e *CoreError) Is(target error) bool {
	var other *CoreError
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// New constructs a CoreError of the given kind.
func New(kind Kind, message string) *CoreError {
	return &CoreError{Kind: kind, Message: message}
}

// Wrap constructs a CoreError of the given kind wrapping a lower-level cause.
func Wrap(kind Kind, message string, cause error) *CoreError {
	return &CoreError{Kind: kind, Message: message, cause: cause}
}

// WithDetails attaches structured details (e.g. the field that failed
// validation) and returns the same error for chaining.
func (e *CoreError) WithDetails(details map[string]any) *CoreError {
	e.Details = details
	return e
}

// Transient wraps cause as a KindTransientStore error.
func Transient(cause error) *CoreError {
	return Wrap(KindTransientStore, "transient store error, retry", cause)
}

// UnknownCommit wraps cause as a KindUnknownCommit error.
func UnknownCommit(cause error) *CoreError {
	return Wrap(KindUnknownCommit, "commit outcome unknown, retry commit", cause)
}

// NotFound constructs a KindNotFound error.
func NotFound(message string) *CoreError {
	return New(KindNotFound, message)
}

// Conflict constructs a KindConflict error.
func Conflict(message string) *CoreError {
	return New(KindConflict, message)
}

// BadRequest constructs a KindBadRequest error.
func BadRequest(message string) *CoreError {
	return New(KindBadRequest, message)
}

// Forbidden constructs a KindForbidden error.
func Forbidden(message string) *CoreError {
	return New(KindForbidden, message)
}

// MutexLost constructs a KindMutexLost error.
func MutexLost(message string) *CoreError {
	return New(KindMutexLost, message)
}

// ExternalProvider wraps a provider-originated failure (Stripe, PayPal,
// image processor).
func ExternalProvider(provider string, cause error) *CoreError {
	return Wrap(KindExternalProvider, fmt.Sprintf("%s request failed", provider), cause)
}

// Fatal constructs a KindFatal error for poisoned-state/serialization bugs.
func Fatal(message string, cause error) *CoreError {
	return Wrap(KindFatal, message, cause)
}

// KindOf extracts the Kind from err if it is (or wraps) a *CoreError,
// defaulting to KindFatal for errors the core did not originate.
func KindOf(err error) Kind {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindFatal
}

// IsRetryable reports whether err should cause the transaction runner to
// retry its closure or commit step.
func IsRetryable(err error) bool {
	return KindOf(err).Retryable()
}
