package connection

import "time"

// Backoff returns the wait before reconnect attempt n (n >= 1):
// min(base * 2^n, max). A non-positive max means no cap.
func Backoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	wait := base
	for i := 0; i < attempt; i++ {
		wait *= 2
		if max > 0 && wait >= max {
			return max
		}
		if wait <= 0 {
			// Overflowed with no cap
			return time.Duration(1<<63 - 1)
		}
	}
	if max > 0 && wait > max {
		return max
	}
	return wait
}
