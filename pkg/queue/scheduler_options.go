package queue

import (
	"log/slog"
	"time"
)

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*schedulerOptions)

type schedulerOptions struct {
	resolution time.Duration
	location   *time.Location
	now        func() time.Time
	logger     *slog.Logger
}

// WithResolution sets how often the scheduler checks for due jobs.
func WithResolution(d time.Duration) SchedulerOption {
	return func(o *schedulerOptions) {
		if d > 0 {
			o.resolution = d
		}
	}
}

// WithLocation sets the time zone daily schedules are evaluated in.
func WithLocation(loc *time.Location) SchedulerOption {
	return func(o *schedulerOptions) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithSchedulerClock overrides the time source.
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(o *schedulerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithSchedulerLogger sets the logger.
func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(o *schedulerOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// JobOption configures a registered job.
type JobOption func(*job)

// WithRunOnStart runs the job once as soon as the scheduler starts.
func WithRunOnStart() JobOption {
	return func(j *job) { j.runOnStart = true }
}

// WithJobTimeout bounds a single run of the job.
func WithJobTimeout(d time.Duration) JobOption {
	return func(j *job) {
		if d > 0 {
			j.timeout = d
		}
	}
}
