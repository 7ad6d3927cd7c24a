package worker

import (
	"math"
	"time"
)

// Queue-wide retry defaults. A zero-value RetryPolicy resolves to these, so
// callers only set the knobs they want to change.
const (
	defaultMaxRetries    = 5
	defaultInitialDelay  = 2 * time.Second
	defaultMaxDelay      = time.Minute
	defaultBackoffFactor = 2.0

	// minRetryDelay keeps a rescheduled task out of the very next DB poll.
	minRetryDelay = time.Second
)

// RetryPolicy controls how failed sync tasks are rescheduled.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// withDefaults fills unset or nonsensical fields with the queue defaults.
func (r RetryPolicy) withDefaults() RetryPolicy {
	if r.MaxRetries <= 0 {
		r.MaxRetries = defaultMaxRetries
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = defaultInitialDelay
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = defaultMaxDelay
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = defaultBackoffFactor
	}
	return r
}

// Exhausted reports whether a task that just failed its attempt-th try
// (1-based) is out of retries.
func (r RetryPolicy) Exhausted(attempt int) bool {
	return attempt >= r.withDefaults().MaxRetries
}

// NextDelay returns the wait before the given attempt (1-based), growing
// geometrically from InitialDelay and clamped to [minRetryDelay, MaxDelay].
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	r = r.withDefaults()
	if attempt < 1 {
		attempt = 1
	}

	d := time.Duration(float64(r.InitialDelay) * math.Pow(r.BackoffFactor, float64(attempt-1)))
	switch {
	case d <= 0 || d > r.MaxDelay:
		// Non-positive means the float math overflowed.
		d = r.MaxDelay
	case d < minRetryDelay:
		d = minRetryDelay
	}
	return d
}
