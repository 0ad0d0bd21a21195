package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"scamwatch/internal/domain"
)

// ErrorKind classifies adapter failures.
type ErrorKind string

const (
	// Transient: retry with backoff, then skip to the next cycle.
	KindRateLimited ErrorKind = "RATE_LIMITED"
	KindTimeout     ErrorKind = "TIMEOUT"
	KindUnavailable ErrorKind = "UNAVAILABLE" // 5xx-class upstream failure

	// Permanent: degrade the adapter until a recovery probe succeeds.
	KindAuthError         ErrorKind = "AUTH_ERROR"
	KindMalformedResponse ErrorKind = "MALFORMED_RESPONSE"
)

// Error is a classified adapter failure.
type Error struct {
	Kind   ErrorKind
	Source domain.Source
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure is worth retrying within the cycle.
func (e *Error) Transient() bool {
	switch e.Kind {
	case KindRateLimited, KindTimeout, KindUnavailable:
		return true
	}
	return false
}

// NewError wraps err with a classification.
func NewError(kind ErrorKind, src domain.Source, err error) *Error {
	return &Error{Kind: kind, Source: src, Err: err}
}

// Errorf is NewError with a formatted message.
func Errorf(kind ErrorKind, src domain.Source, format string, args ...any) *Error {
	return &Error{Kind: kind, Source: src, Err: fmt.Errorf(format, args...)}
}

// IsTransient reports whether err is a transient source error. Unclassified
// errors default to transient so a flaky adapter is retried rather than
// degraded.
func IsTransient(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Transient()
	}
	return true
}

// ClassifyHTTPStatus maps an HTTP status code to an error kind.
func ClassifyHTTPStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuthError
	case status >= 500:
		return KindUnavailable
	default:
		return KindMalformedResponse
	}
}

// FromFetchErr classifies a generic fetch error: context deadline becomes
// Timeout, everything else Unavailable.
func FromFetchErr(src domain.Source, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindTimeout, src, err)
	}
	return NewError(KindUnavailable, src, err)
}
