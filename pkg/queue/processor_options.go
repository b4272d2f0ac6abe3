package queue

import (
	"log/slog"
	"time"
)

// ProcessorOption configures a Processor.
type ProcessorOption func(*processorOptions)

type processorOptions struct {
	batchSize    int
	concurrency  int
	entryTimeout time.Duration
	staleAfter   time.Duration
	locker       Locker
	leaseKey     string
	leaseTTL     time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// WithBatchSize sets how many due entries one tick picks up.
func WithBatchSize(n int) ProcessorOption {
	return func(o *processorOptions) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithConcurrency bounds how many entries are dispatched in parallel.
func WithConcurrency(n int) ProcessorOption {
	return func(o *processorOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithEntryTimeout bounds the dispatch of a single entry.
func WithEntryTimeout(d time.Duration) ProcessorOption {
	return func(o *processorOptions) {
		if d > 0 {
			o.entryTimeout = d
		}
	}
}

// WithStaleAfter sets how long an entry may stay in processing before a
// tick puts it back to pending. Zero disables the check.
func WithStaleAfter(d time.Duration) ProcessorOption {
	return func(o *processorOptions) {
		if d >= 0 {
			o.staleAfter = d
		}
	}
}

// WithLocker guards every tick with a distributed lease.
func WithLocker(l Locker, key string, ttl time.Duration) ProcessorOption {
	return func(o *processorOptions) {
		if l == nil {
			return
		}
		o.locker = l
		if key != "" {
			o.leaseKey = key
		}
		if ttl > 0 {
			o.leaseTTL = ttl
		}
	}
}

// WithProcessorClock overrides the time source.
func WithProcessorClock(now func() time.Time) ProcessorOption {
	return func(o *processorOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithProcessorLogger sets the logger.
func WithProcessorLogger(l *slog.Logger) ProcessorOption {
	return func(o *processorOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithProcessorConfig applies the processor fields of cfg.
func WithProcessorConfig(cfg Config) ProcessorOption {
	return func(o *processorOptions) {
		WithBatchSize(cfg.BatchSize)(o)
		WithConcurrency(cfg.Concurrency)(o)
		WithEntryTimeout(cfg.EntryTimeout)(o)
		WithStaleAfter(cfg.StaleAfter)(o)
		if cfg.LeaseTTL > 0 {
			o.leaseTTL = cfg.LeaseTTL
		}
	}
}
