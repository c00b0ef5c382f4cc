package jobs

import "time"

// backoffSchedule is the delay before each continuation attempt, 1-indexed.
// Attempts past the end of the schedule reuse the final (capped) delay.
var backoffSchedule = []time.Duration{
	15 * time.Minute,
	1 * time.Hour,
	4 * time.Hour,
	12 * time.Hour,
	24 * time.Hour,
}

// Backoff computes the reschedule delay for rate-limit continuations.
type Backoff struct {
	schedule    []time.Duration
	maxAttempts int
}

// NewBackoff creates a Backoff with the default schedule and the given
// maximum attempt count.
func NewBackoff(maxAttempts int) *Backoff {
	return &Backoff{
		schedule:    backoffSchedule,
		maxAttempts: maxAttempts,
	}
}

// Delay returns the delay before the given attempt (1-based). The delay is
// non-decreasing in attempt. The second return is false once attempt exceeds
// the maximum, meaning no continuation may be scheduled and the remainder is
// recorded as permanently failed.
func (b *Backoff) Delay(attempt int) (time.Duration, bool) {
	if attempt < 1 || attempt > b.maxAttempts {
		return 0, false
	}

	if attempt > len(b.schedule) {
		return b.schedule[len(b.schedule)-1], true
	}

	return b.schedule[attempt-1], true
}

// MaxAttempts returns the configured attempt ceiling.
func (b *Backoff) MaxAttempts() int {
	return b.maxAttempts
}
