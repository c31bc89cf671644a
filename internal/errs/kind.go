// Package errs defines the error taxonomy shared by every core component:
// a machine-readable Kind, HTTP status mapping, and retry classification,
// following the same two-method shape the platform's other services use
// for their own error codes.
package errs

// Kind is a machine-readable error classification.
type Kind string

const (
	KindTransientStore      Kind = "transient_store"
	KindUnknownCommit       Kind = "unknown_commit"
	KindMutexLost           Kind = "mutex_lost"
	KindWebhookReplay       Kind = "webhook_replay"
	KindSignatureInvalid    Kind = "signature_invalid"
	KindRateLimitExceeded   Kind = "rate_limit_exceeded"
	KindNotFound            Kind = "not_found"
	KindForbidden           Kind = "forbidden"
	KindConflict            Kind = "conflict"
	KindBadRequest          Kind = "bad_request"
	KindExternalProvider    Kind = "external_provider_error"
	KindFatal               Kind = "fatal"
)

// Retryable reports whether an error of this kind should be retried by the
// caller (the transaction runner's closure-retry, the commit-retry loop) as
// opposed to surfaced to the caller.
func (k Kind) Retryable() bool {
	switch k {
	case KindTransientStore, KindUnknownCommit:
		return true
	default:
		return false
	}
}

// HTTPStatus maps a Kind to the HTTP status a webhook or admin handler
// would report it as, for the kinds that are user-visible at all.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindBadRequest, KindSignatureInvalid:
		return 400
	case KindForbidden, KindMutexLost:
		return 409
	case KindNotFound:
		return 404
	case KindConflict:
		return 409
	case KindRateLimitExceeded:
		return 429
	case KindExternalProvider:
		return 502
	case KindFatal:
		return 500
	default:
		return 500
	}
}

// UserVisible reports whether this kind of error is meant to be reported to
// an external caller at all, versus handled internally (retried or logged).
func (k Kind) UserVisible() bool {
	switch k {
	case KindTransientStore, KindUnknownCommit, KindWebhookReplay:
		return false
	default:
		return true
	}
}
