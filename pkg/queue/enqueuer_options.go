package queue

import (
	"log/slog"
	"time"
)

// EnqueuerOption configures an Enqueuer.
type EnqueuerOption func(*enqueuerOptions)

type enqueuerOptions struct {
	defaultMaxAttempts int
	idempotent         bool
	now                func() time.Time
	logger             *slog.Logger
}

// WithIdempotentIDs derives entry ids from (notification, recipient) so a
// repeated enqueue of the same pair is a no-op instead of a duplicate.
func WithIdempotentIDs() EnqueuerOption {
	return func(o *enqueuerOptions) { o.idempotent = true }
}

// WithDefaultMaxAttempts sets the attempt limit of entries enqueued without
// WithMaxAttempts.
func WithDefaultMaxAttempts(n int) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if n > 0 && n <= maxAttemptsCap {
			o.defaultMaxAttempts = n
		}
	}
}

// WithEnqueuerClock overrides the time source.
func WithEnqueuerClock(now func() time.Time) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithEnqueuerLogger sets the logger.
func WithEnqueuerLogger(l *slog.Logger) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// EnqueueOption configures a single Enqueue call.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	maxAttempts  int
	delay        time.Duration
	scheduledFor *time.Time
}

// maxAttemptsCap bounds retries of a single entry.
const maxAttemptsCap = 10

// WithMaxAttempts sets the attempt limit (1-10).
func WithMaxAttempts(n int) EnqueueOption {
	return func(o *enqueueOptions) {
		if n > 0 && n <= maxAttemptsCap {
			o.maxAttempts = n
		}
	}
}

// WithDelay postpones the first attempt.
func WithDelay(d time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if d > 0 {
			o.delay = d
		}
	}
}

// WithScheduledFor sets the exact time of the first attempt. It wins over WithDelay.
func WithScheduledFor(t time.Time) EnqueueOption {
	return func(o *enqueueOptions) {
		if !t.IsZero() {
			o.scheduledFor = &t
		}
	}
}
