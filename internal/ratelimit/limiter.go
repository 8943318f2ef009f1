// Package ratelimit implements fixed-window attempt counting per client key.
package ratelimit

import (
	"context"
	"time"
)

// Config sets the threshold and window length.
type Config struct {
	// MaxAttempts is the number of attempts allowed inside one window.
	MaxAttempts int
	// Window is the length of a counting window.
	Window time.Duration
}

// Result describes the outcome of one attempt.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long until the current window resets.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if d := r.ResetAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Limiter counts an attempt for key and reports whether it is within the threshold.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

func remaining(max, attempts int) int {
	if attempts >= max {
		return 0
	}
	return max - attempts
}
