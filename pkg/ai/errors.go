package ai

import "errors"

var (
	// ErrRateLimited is the provider's throttling signal (HTTP 429).
	ErrRateLimited = errors.New("ai provider rate limited")
	// ErrUnavailable covers server-side transient failures (HTTP 500/503).
	ErrUnavailable = errors.New("ai provider unavailable")
	// ErrUnauthorized is a permanent auth failure; never retried.
	ErrUnauthorized = errors.New("ai provider unauthorized")
	// ErrEmptyResponse means the model returned nothing usable.
	ErrEmptyResponse = errors.New("ai returned an empty response")
)

// IsTransient reports whether err is worth retrying with backoff. Everything
// else is permanent and fails immediately.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable)
}
