package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/courier/pkg/delivery"
	"github.com/dmitrymomot/courier/pkg/logger"
	"github.com/dmitrymomot/courier/pkg/metrics"
)

// DefaultLeaseKey names the lease that serialises ticks across instances.
const DefaultLeaseKey = "courier:queue:process"

// Dispatcher delivers one entry. It reports failures in the result.
type Dispatcher interface {
	Dispatch(ctx context.Context, notificationID, recipientID string, payload delivery.Payload) delivery.DispatchResult
}

// Processor claims due entries, dispatches them and applies the retry policy.
type Processor struct {
	repo       ProcessorRepository
	dispatcher Dispatcher
	opts       processorOptions
}

// NewProcessor creates a processor.
func NewProcessor(repo ProcessorRepository, dispatcher Dispatcher, opts ...ProcessorOption) (*Processor, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}
	if dispatcher == nil {
		return nil, ErrDispatcherNil
	}

	o := processorOptions{
		batchSize:    10,
		concurrency:  5,
		entryTimeout: 2 * time.Minute,
		staleAfter:   15 * time.Minute,
		leaseKey:     DefaultLeaseKey,
		leaseTTL:     5 * time.Minute,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Processor{repo: repo, dispatcher: dispatcher, opts: o}, nil
}

// ProcessDue runs one tick. The error is non-nil only when the tick could
// not start; per-entry failures are reflected in Stats and the entries.
func (p *Processor) ProcessDue(ctx context.Context) (Stats, error) {
	var stats Stats
	start := time.Now()
	log := p.opts.logger.With(logger.Component("queue_processor"))

	if p.opts.locker != nil {
		release, ok, err := p.opts.locker.TryLock(ctx, p.opts.leaseKey, p.opts.leaseTTL)
		if err != nil {
			return stats, errors.Join(ErrFailedToAcquireLease, err)
		}
		if !ok {
			log.DebugContext(ctx, "processing lease held by another instance")
			return stats, nil
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.WarnContext(ctx, "failed to release processing lease", logger.Error(err))
			}
		}()
	}

	now := p.opts.now()

	if p.opts.staleAfter > 0 {
		released, err := p.repo.ReleaseStale(ctx, now.Add(-p.opts.staleAfter), now)
		if err != nil {
			log.ErrorContext(ctx, "failed to release stale entries", logger.Error(err))
		}
		stats.Released = released
	}

	entries, err := p.repo.ListDue(ctx, now, p.opts.batchSize)
	if err != nil {
		return stats, errors.Join(ErrFailedToListDue, err)
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(p.opts.concurrency)
	for _, entry := range entries {
		g.Go(func() error {
			outcome := p.process(ctx, log, entry)
			mu.Lock()
			stats.add(outcome)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	metrics.ObserveQueueTick(time.Since(start))
	metrics.AddQueueEntries("completed", stats.Completed)
	metrics.AddQueueEntries("retried", stats.Retried)
	metrics.AddQueueEntries("failed", stats.Failed)
	metrics.AddQueueEntries("skipped", stats.Skipped)

	log.InfoContext(ctx, "queue tick finished",
		slog.Int("due", len(entries)),
		slog.Int("claimed", stats.Claimed),
		slog.Int("completed", stats.Completed),
		slog.Int("retried", stats.Retried),
		slog.Int("failed", stats.Failed),
		slog.Int("skipped", stats.Skipped),
		slog.Int("released", stats.Released),
		logger.Duration(time.Since(start)))

	return stats, nil
}

type entryOutcome int

const (
	outcomeSkipped entryOutcome = iota
	outcomeCompleted
	outcomeRetried
	outcomeFailed
	outcomeError
)

func (s *Stats) add(o entryOutcome) {
	if o != outcomeSkipped {
		s.Claimed++
	}
	switch o {
	case outcomeSkipped:
		s.Skipped++
	case outcomeCompleted:
		s.Completed++
	case outcomeRetried:
		s.Retried++
	case outcomeFailed:
		s.Failed++
	case outcomeError:
		s.Errored++
	}
}

// process handles one entry from claim to outcome.
func (p *Processor) process(parent context.Context, log *slog.Logger, entry Entry) entryOutcome {
	// Entries already claimed finish even when the tick is being shut down.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), p.opts.entryTimeout)
	defer cancel()

	log = log.With(logger.EntryID(entry.ID.String()),
		logger.NotificationID(entry.NotificationID),
		logger.RecipientID(entry.RecipientID))

	claimed, err := p.repo.ClaimEntry(ctx, entry.ID, p.opts.now())
	if err != nil {
		log.ErrorContext(ctx, "failed to claim entry", logger.Error(err))
		return outcomeSkipped
	}
	if !claimed {
		log.DebugContext(ctx, "entry claimed elsewhere")
		return outcomeSkipped
	}

	result, dispatchErr := p.dispatch(ctx, entry)
	now := p.opts.now()

	if dispatchErr == nil && result.Succeeded() {
		if err := p.repo.CompleteEntry(ctx, entry.ID, result, now); err != nil {
			log.ErrorContext(ctx, "failed to complete entry", logger.Error(err))
			return outcomeError
		}
		log.InfoContext(ctx, "entry completed")
		return outcomeCompleted
	}

	maxAttempts := max(entry.MaxAttempts, 1)
	retry := Retry{Attempts: min(entry.Attempts+1, maxAttempts)}
	if dispatchErr != nil {
		retry.LastError = dispatchErr.Error()
	} else {
		retry.LastError = result.FailureSummary()
		retry.Result = &result
	}

	log = log.With(logger.Attempt(retry.Attempts, maxAttempts))
	if retry.Attempts >= maxAttempts {
		if err := p.repo.FailEntry(ctx, entry.ID, retry, now); err != nil {
			log.ErrorContext(ctx, "failed to mark entry failed", logger.Error(err))
			return outcomeError
		}
		log.WarnContext(ctx, "entry failed permanently", slog.String("last_error", retry.LastError))
		return outcomeFailed
	}

	retry.ScheduledFor = now.Add(Backoff(retry.Attempts))
	if err := p.repo.RetryEntry(ctx, entry.ID, retry, now); err != nil {
		log.ErrorContext(ctx, "failed to reschedule entry", logger.Error(err))
		return outcomeError
	}
	log.InfoContext(ctx, "entry scheduled for retry",
		slog.Time("scheduled_for", retry.ScheduledFor),
		slog.String("last_error", retry.LastError))
	return outcomeRetried
}

// dispatch calls the dispatcher and turns a panic into an error.
func (p *Processor) dispatch(ctx context.Context, entry Entry) (res delivery.DispatchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in dispatch: %v", r)
		}
	}()
	return p.dispatcher.Dispatch(ctx, entry.NotificationID, entry.RecipientID, entry.Payload), nil
}
