package queue

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/courier/pkg/logger"
)

// JobFunc is one run of a periodic job.
type JobFunc func(ctx context.Context) error

type job struct {
	name       string
	schedule   Schedule
	fn         JobFunc
	runOnStart bool
	timeout    time.Duration

	next    time.Time
	running atomic.Bool
}

// Scheduler runs registered jobs on their schedules. A job never overlaps
// itself: a run that is due while the previous one is still going is skipped.
type Scheduler struct {
	mu   sync.Mutex
	jobs map[string]*job
	wg   sync.WaitGroup
	opts schedulerOptions
}

// NewScheduler creates an empty scheduler.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	o := schedulerOptions{
		resolution: time.Second,
		location:   time.Local,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Scheduler{jobs: make(map[string]*job), opts: o}
}

// AddJob registers fn under name.
func (s *Scheduler) AddJob(name string, schedule Schedule, fn JobFunc, opts ...JobOption) error {
	if name == "" || schedule == nil || fn == nil {
		return fmt.Errorf("queue: invalid job %q", name)
	}

	j := &job{name: name, schedule: schedule, fn: fn}
	for _, opt := range opts {
		opt(j)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return ErrJobAlreadyRegistered
	}
	s.jobs[name] = j

	s.opts.logger.Info("registered periodic job",
		slog.String("job", name),
		slog.String("schedule", schedule.String()))
	return nil
}

// Jobs returns the registered job names, sorted.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Start blocks running jobs until ctx is cancelled, then waits for running
// jobs to return.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if len(s.jobs) == 0 {
		s.mu.Unlock()
		return ErrSchedulerNotConfigured
	}
	now := s.now()
	jobs := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if j.runOnStart {
			j.next = now
		} else {
			j.next = j.schedule.Next(now)
		}
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	ticker := time.NewTicker(s.opts.resolution)
	defer ticker.Stop()

	s.tick(ctx, jobs)
	for {
		select {
		case <-ctx.Done():
			s.opts.logger.Info("scheduler shutting down, waiting for running jobs")
			s.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx, jobs)
		}
	}
}

// Run adapts Start for errgroup; cancellation is not reported as an error.
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		if err := s.Start(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}
}

func (s *Scheduler) now() time.Time {
	return s.opts.now().In(s.opts.location)
}

// tick starts every due job. Only the ticking goroutine touches job.next.
func (s *Scheduler) tick(ctx context.Context, jobs []*job) {
	now := s.now()
	for _, j := range jobs {
		if j.next.After(now) {
			continue
		}
		scheduled := j.next
		for !j.next.After(now) {
			j.next = j.schedule.Next(j.next)
		}

		if !j.running.CompareAndSwap(false, true) {
			s.opts.logger.WarnContext(ctx, "job still running, skipping run",
				slog.String("job", j.name),
				slog.Time("scheduled_for", scheduled))
			continue
		}

		s.wg.Add(1)
		go s.run(ctx, j)
	}
}

func (s *Scheduler) run(ctx context.Context, j *job) {
	defer s.wg.Done()
	defer j.running.Store(false)

	start := time.Now()
	log := s.opts.logger.With(slog.String("job", j.name))

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "job panicked", slog.Any("panic", r))
		}
	}()

	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	if err := j.fn(ctx); err != nil {
		log.ErrorContext(ctx, "job failed", logger.Error(err), logger.Duration(time.Since(start)))
		return
	}
	log.DebugContext(ctx, "job finished", logger.Duration(time.Since(start)))
}
