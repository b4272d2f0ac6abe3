package pgstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/courier/pkg/delivery"
	"github.com/dmitrymomot/courier/pkg/pg"
)

const recordColumns = `id, notification_id, recipient_id, channel, status, retry_count, tracking_id,
	metadata, failure_reason, created_at, sent_at, delivered_at, updated_at`

// CreateRecord implements delivery.RecordRepository.
func (s *Store) CreateRecord(ctx context.Context, r *delivery.Record) error {
	metadata := r.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO delivery_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.ID, r.NotificationID, r.RecipientID, r.Channel, r.Status, r.RetryCount, r.TrackingID,
		metadata, r.FailureReason, r.CreatedAt, r.SentAt, r.DeliveredAt, r.UpdatedAt,
	)
	if pg.IsDuplicateKeyError(err) {
		return delivery.ErrRecordExists
	}
	return err
}

// UpdateRecord implements delivery.RecordRepository. Only the fields set on
// the patch are written; metadata keys are merged into the stored document.
func (s *Store) UpdateRecord(ctx context.Context, id uuid.UUID, p delivery.Patch) error {
	args := []any{id, p.UpdatedAt}
	sets := []string{"updated_at = $2"}
	set := func(expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if p.Status != nil {
		set("status = $%d", *p.Status)
	}
	if p.FailureReason != nil {
		set("failure_reason = $%d", *p.FailureReason)
	}
	if p.RetryCount != nil {
		set("retry_count = $%d", *p.RetryCount)
	}
	if len(p.Metadata) > 0 {
		set("metadata = metadata || $%d::jsonb", p.Metadata)
	}
	if p.SentAt != nil {
		set("sent_at = $%d", *p.SentAt)
	}
	if p.DeliveredAt != nil {
		set("delivered_at = $%d", *p.DeliveredAt)
	}

	tag, err := s.db.Exec(ctx,
		"UPDATE delivery_records SET "+strings.Join(sets, ", ")+" WHERE id = $1", args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return delivery.ErrRecordNotFound
	}
	return nil
}

// FindRecordByTrackingID implements delivery.RecordRepository. The oldest
// matching record wins.
func (s *Store) FindRecordByTrackingID(ctx context.Context, trackingID string, ch delivery.Channel) (*delivery.Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+recordColumns+`
		FROM delivery_records
		WHERE tracking_id = $1 AND channel = $2
		ORDER BY created_at
		LIMIT 1`, trackingID, ch)
	if err != nil {
		return nil, err
	}
	r, err := pgx.CollectExactlyOneRow(rows, scanRecord)
	if pg.IsNotFoundError(err) {
		return nil, delivery.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteRecordsCreatedBefore implements queue.RecordSweeper.
func (s *Store) DeleteRecordsCreatedBefore(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM delivery_records
		WHERE id IN (
			SELECT id FROM delivery_records
			WHERE created_at < $1
			ORDER BY created_at
			LIMIT $2
		)`, cutoff, limit)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanRecord(row pgx.CollectableRow) (delivery.Record, error) {
	var r delivery.Record
	err := row.Scan(
		&r.ID, &r.NotificationID, &r.RecipientID, &r.Channel, &r.Status, &r.RetryCount, &r.TrackingID,
		&r.Metadata, &r.FailureReason, &r.CreatedAt, &r.SentAt, &r.DeliveredAt, &r.UpdatedAt,
	)
	return r, err
}
