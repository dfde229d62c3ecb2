package source

import (
	"errors"
	"fmt"
	"time"
)

// Kind distinguishes "rate limited, retry" from "unavailable" and "permanently broken".
type Kind int

const (
	// KindRateLimited is an HTTP 429; retry after a delay.
	KindRateLimited Kind = iota + 1
	// KindUnavailable covers transport errors, 5xx and an open breaker; retry, then fall back.
	KindUnavailable
	// KindPermanent covers other non-200 statuses and undecodable payloads; do not retry.
	KindPermanent
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindUnavailable:
		return "unavailable"
	case KindPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// UpstreamError is returned for every failed upstream call.
type UpstreamError struct {
	Kind       Kind
	StatusCode int
	// RetryAfter is the minimum wait before the next attempt, when the upstream gave one
	RetryAfter time.Duration
	Endpoint   string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s %s (status %d): %v", e.Endpoint, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %s %s: %v", e.Endpoint, e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// KindOf returns the upstream kind of err, or 0 if err is not an UpstreamError.
func KindOf(err error) Kind {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return 0
}

// IsRateLimited reports whether err is an upstream 429.
func IsRateLimited(err error) bool {
	return KindOf(err) == KindRateLimited
}

// RetryAfter returns the wait the upstream asked for: a 429's Retry-After or the
// time left on an open circuit breaker. Zero when there is none.
func RetryAfter(err error) time.Duration {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.RetryAfter
	}
	return 0
}

// IsRetryable reports whether another attempt could succeed.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimited, KindUnavailable:
		return true
	default:
		return false
	}
}
