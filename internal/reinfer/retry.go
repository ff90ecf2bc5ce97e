package reinfer

import (
	"math/rand"
	"time"
)

const (
	// DefaultMaxAttempts is the default number of attempts per request.
	DefaultMaxAttempts = 5
	// DefaultBaseDelay is the delay before the first retry.
	DefaultBaseDelay = 100 * time.Millisecond
	// DefaultMaxDelay caps the exponential backoff.
	DefaultMaxDelay = 5 * time.Second
	// JitterFactor is the ±percentage of jitter applied to delays.
	JitterFactor = 0.2 // ±20%
)

// retryableStatuses are transient server-side conditions worth retrying.
var retryableStatuses = map[int]bool{
	408: true, // Request Timeout
	429: true, // Too Many Requests
	500: true, // Internal Server Error
	502: true, // Bad Gateway
	503: true, // Service Unavailable
	504: true, // Gateway Timeout
}

// RetryPolicy controls retry behavior for failed requests. Transport errors
// and retryable statuses are retried; everything else fails immediately.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetry retries transient failures with capped exponential backoff.
var DefaultRetry = RetryPolicy{
	MaxAttempts: DefaultMaxAttempts,
	BaseDelay:   DefaultBaseDelay,
	MaxDelay:    DefaultMaxDelay,
}

// NoRetry performs exactly one attempt per request.
var NoRetry = RetryPolicy{MaxAttempts: 1}

// Retryable reports whether a response status should be retried.
func (p RetryPolicy) Retryable(status int) bool {
	return retryableStatuses[status]
}

// Delay calculates the backoff delay with jitter for a retry.
// attemptCount is 0-indexed (after the first failed attempt, attemptCount = 0).
func (p RetryPolicy) Delay(attemptCount int) time.Duration {
	if attemptCount < 0 {
		attemptCount = 0
	}

	base := p.BaseDelay << uint(attemptCount)
	if p.MaxDelay > 0 && base > p.MaxDelay {
		base = p.MaxDelay
	}

	// Add ±20% jitter to prevent thundering herd
	jitterRange := float64(base) * JitterFactor
	jitter := (rand.Float64()*2 - 1) * jitterRange

	return time.Duration(float64(base) + jitter)
}
