package pgstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/courier/pkg/delivery"
	"github.com/dmitrymomot/courier/pkg/pg"
	"github.com/dmitrymomot/courier/pkg/queue"
)

const entryColumns = `id, notification_id, recipient_id, payload, status, attempts, max_attempts,
	scheduled_for, processing_started_at, last_error, result, created_at, updated_at`

// CreateEntry implements queue.EnqueuerRepository.
func (s *Store) CreateEntry(ctx context.Context, e *queue.Entry) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO notification_queue (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		e.ID, e.NotificationID, e.RecipientID, e.Payload, e.Status, e.Attempts, e.MaxAttempts,
		e.ScheduledFor, e.ProcessingStartedAt, e.LastError, e.Result, e.CreatedAt, e.UpdatedAt,
	)
	if pg.IsDuplicateKeyError(err) {
		return queue.ErrEntryExists
	}
	return err
}

// ListDue implements queue.ProcessorRepository.
func (s *Store) ListDue(ctx context.Context, now time.Time, limit int) ([]queue.Entry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+entryColumns+`
		FROM notification_queue
		WHERE status = 'pending' AND scheduled_for <= $1
		ORDER BY scheduled_for, created_at
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanEntry)
}

// ClaimEntry implements queue.ProcessorRepository.
func (s *Store) ClaimEntry(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE notification_queue
		SET status = 'processing', processing_started_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'pending'`, id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CompleteEntry implements queue.ProcessorRepository.
func (s *Store) CompleteEntry(ctx context.Context, id uuid.UUID, result delivery.DispatchResult, now time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE notification_queue
		SET status = 'completed', result = $2, processing_started_at = NULL, updated_at = $3
		WHERE id = $1 AND status = 'processing'`, id, result, now)
	return processingOutcome(tag.RowsAffected(), err)
}

// RetryEntry implements queue.ProcessorRepository.
func (s *Store) RetryEntry(ctx context.Context, id uuid.UUID, r queue.Retry, now time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE notification_queue
		SET status = 'pending', attempts = $2, scheduled_for = $3, last_error = $4, result = $5,
			processing_started_at = NULL, updated_at = $6
		WHERE id = $1 AND status = 'processing'`,
		id, r.Attempts, r.ScheduledFor, r.LastError, r.Result, now)
	return processingOutcome(tag.RowsAffected(), err)
}

// FailEntry implements queue.ProcessorRepository.
func (s *Store) FailEntry(ctx context.Context, id uuid.UUID, r queue.Retry, now time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE notification_queue
		SET status = 'failed', attempts = $2, last_error = $3, result = $4,
			processing_started_at = NULL, updated_at = $5
		WHERE id = $1 AND status = 'processing'`,
		id, r.Attempts, r.LastError, r.Result, now)
	return processingOutcome(tag.RowsAffected(), err)
}

// ReleaseStale implements queue.ProcessorRepository.
func (s *Store) ReleaseStale(ctx context.Context, cutoff, now time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE notification_queue
		SET status = 'pending', last_error = $2, processing_started_at = NULL, updated_at = $3
		WHERE status = 'processing'
			AND (processing_started_at IS NULL OR processing_started_at < $1)`,
		cutoff, queue.StaleError, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// DeleteTerminalEntriesBefore implements queue.EntrySweeper.
func (s *Store) DeleteTerminalEntriesBefore(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM notification_queue
		WHERE id IN (
			SELECT id FROM notification_queue
			WHERE status IN ('completed', 'failed') AND updated_at < $1
			ORDER BY updated_at
			LIMIT $2
		)`, cutoff, limit)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// DeleteExpiredNotifications implements queue.NotificationExpirer.
func (s *Store) DeleteExpiredNotifications(ctx context.Context, now time.Time, limit int) (int, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM notifications
		WHERE id IN (
			SELECT id FROM notifications
			WHERE expires_at IS NOT NULL AND expires_at < $1
			LIMIT $2
		)`, now, limit)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// GetEntry returns the entry with id.
func (s *Store) GetEntry(ctx context.Context, id uuid.UUID) (*queue.Entry, error) {
	rows, err := s.db.Query(ctx, `SELECT `+entryColumns+` FROM notification_queue WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	e, err := pgx.CollectExactlyOneRow(rows, scanEntry)
	if pg.IsNotFoundError(err) {
		return nil, queue.ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanEntry(row pgx.CollectableRow) (queue.Entry, error) {
	var e queue.Entry
	err := row.Scan(
		&e.ID, &e.NotificationID, &e.RecipientID, &e.Payload, &e.Status, &e.Attempts, &e.MaxAttempts,
		&e.ScheduledFor, &e.ProcessingStartedAt, &e.LastError, &e.Result, &e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

// processingOutcome maps a conditional update on a processing entry. A
// missing entry is reported as not processing.
func processingOutcome(affected int64, err error) error {
	if err != nil {
		return err
	}
	if affected == 0 {
		return queue.ErrEntryNotProcessing
	}
	return nil
}
