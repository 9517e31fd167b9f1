package connection

import "time"

// Backoff returns the wait before retry number attempt (1-based):
// min * 2^(attempt-1), capped at max.
func Backoff(attempt int, min, max time.Duration) time.Duration {
	if attempt <= 1 {
		return min
	}
	// 2^30 * min is past any sane ceiling
	if attempt > 30 {
		return max
	}

	d := min * time.Duration(1<<(attempt-1))
	if d > max || d <= 0 {
		return max
	}
	return d
}
