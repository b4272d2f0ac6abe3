package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/courier/pkg/logger"
	"github.com/dmitrymomot/courier/pkg/metrics"
)

// SweepStats counts rows removed by one sweep.
type SweepStats struct {
	Notifications int `json:"notifications"`
	Records       int `json:"records"`
	Entries       int `json:"entries"`
}

// Sweeper deletes expired notifications, old delivery records and old
// terminal queue entries in capped batches.
type Sweeper struct {
	notifications NotificationExpirer
	records       RecordSweeper
	entries       EntrySweeper

	recordRetention time.Duration
	entryRetention  time.Duration
	batchSize       int
	maxBatches      int
	now             func() time.Time
	logger          *slog.Logger
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithRetention sets how long delivery records and terminal entries are kept.
func WithRetention(records, entries time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if records > 0 {
			s.recordRetention = records
		}
		if entries > 0 {
			s.entryRetention = entries
		}
	}
}

// WithSweepBatches sets the batch size and the maximum batches per collection and run.
func WithSweepBatches(size, maxBatches int) SweeperOption {
	return func(s *Sweeper) {
		if size > 0 {
			s.batchSize = size
		}
		if maxBatches > 0 {
			s.maxBatches = maxBatches
		}
	}
}

// WithSweeperClock overrides the time source.
func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSweeperLogger sets the logger.
func WithSweeperLogger(l *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSweeperConfig applies the retention fields of cfg.
func WithSweeperConfig(cfg Config) SweeperOption {
	return func(s *Sweeper) {
		WithRetention(cfg.RecordRetention, cfg.EntryRetention)(s)
		WithSweepBatches(cfg.SweepBatchSize, cfg.SweepMaxBatches)(s)
	}
}

// NewSweeper creates a sweeper. Nil collaborators are skipped.
func NewSweeper(notifications NotificationExpirer, records RecordSweeper, entries EntrySweeper, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		notifications:   notifications,
		records:         records,
		entries:         entries,
		recordRetention: 30 * 24 * time.Hour,
		entryRetention:  7 * 24 * time.Hour,
		batchSize:       500,
		maxBatches:      20,
		now:             time.Now,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep runs one retention pass. A failing collection does not stop the
// others; all errors are joined.
func (s *Sweeper) Sweep(ctx context.Context) (SweepStats, error) {
	var (
		stats SweepStats
		errs  []error
	)
	now := s.now().UTC()

	if s.notifications != nil {
		n, err := s.drain(ctx, func(ctx context.Context) (int, error) {
			return s.notifications.DeleteExpiredNotifications(ctx, now, s.batchSize)
		})
		stats.Notifications = n
		errs = appendErr(errs, "notifications", err)
	}
	if s.records != nil {
		cutoff := now.Add(-s.recordRetention)
		n, err := s.drain(ctx, func(ctx context.Context) (int, error) {
			return s.records.DeleteRecordsCreatedBefore(ctx, cutoff, s.batchSize)
		})
		stats.Records = n
		errs = appendErr(errs, "delivery records", err)
	}
	if s.entries != nil {
		cutoff := now.Add(-s.entryRetention)
		n, err := s.drain(ctx, func(ctx context.Context) (int, error) {
			return s.entries.DeleteTerminalEntriesBefore(ctx, cutoff, s.batchSize)
		})
		stats.Entries = n
		errs = appendErr(errs, "queue entries", err)
	}

	metrics.AddSwept("notifications", stats.Notifications)
	metrics.AddSwept("delivery_records", stats.Records)
	metrics.AddSwept("queue_entries", stats.Entries)

	err := errors.Join(errs...)
	log := s.logger.With(logger.Component("retention_sweep"),
		slog.Int("notifications", stats.Notifications),
		slog.Int("records", stats.Records),
		slog.Int("entries", stats.Entries))
	if err != nil {
		log.ErrorContext(ctx, "retention sweep finished with errors", logger.Error(err))
	} else {
		log.InfoContext(ctx, "retention sweep finished")
	}
	return stats, err
}

// drain calls del until a batch comes back short or maxBatches is reached.
func (s *Sweeper) drain(ctx context.Context, del func(context.Context) (int, error)) (int, error) {
	total := 0
	for range s.maxBatches {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := del(ctx)
		total += n
		if err != nil {
			return total, err
		}
		if n < s.batchSize {
			break
		}
	}
	return total, nil
}

func appendErr(errs []error, what string, err error) []error {
	if err == nil {
		return errs
	}
	return append(errs, fmt.Errorf("sweep %s: %w", what, err))
}
