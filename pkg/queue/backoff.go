package queue

import "time"

// BackoffTable is the retry delay after the n-th failed attempt (1-based).
// Attempts past the end reuse the last entry.
var BackoffTable = [...]time.Duration{
	30 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
}

// Backoff returns the delay before retrying after attempt failed attempts.
func Backoff(attempt int) time.Duration {
	idx := min(max(attempt, 1), len(BackoffTable)) - 1
	return BackoffTable[idx]
}
