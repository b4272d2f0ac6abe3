package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/courier/pkg/delivery"
)

// EnqueuerRepository stores new entries.
type EnqueuerRepository interface {
	CreateEntry(ctx context.Context, entry *Entry) error
}

// ProcessorRepository is the persistence the processor needs. Every write is
// conditional on the entry's current status so concurrent processors never
// apply an outcome twice.
type ProcessorRepository interface {
	// ListDue returns up to limit pending entries with ScheduledFor <= now,
	// oldest-due first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]Entry, error)

	// ClaimEntry moves a pending entry to processing. It reports false when
	// the entry is no longer pending.
	ClaimEntry(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)

	// CompleteEntry marks a processing entry completed with the dispatch snapshot.
	CompleteEntry(ctx context.Context, id uuid.UUID, result delivery.DispatchResult, now time.Time) error

	// RetryEntry puts a processing entry back to pending.
	RetryEntry(ctx context.Context, id uuid.UUID, retry Retry, now time.Time) error

	// FailEntry marks a processing entry failed for good.
	FailEntry(ctx context.Context, id uuid.UUID, retry Retry, now time.Time) error

	// ReleaseStale returns entries stuck in processing since before cutoff to pending.
	ReleaseStale(ctx context.Context, cutoff time.Time, now time.Time) (int, error)
}

// EntrySweeper deletes terminal entries.
type EntrySweeper interface {
	// DeleteTerminalEntriesBefore removes up to limit completed or failed
	// entries last updated before cutoff.
	DeleteTerminalEntriesBefore(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// RecordSweeper deletes old delivery records.
type RecordSweeper interface {
	DeleteRecordsCreatedBefore(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// NotificationExpirer deletes notifications whose expiry has passed.
type NotificationExpirer interface {
	DeleteExpiredNotifications(ctx context.Context, now time.Time, limit int) (int, error)
}
