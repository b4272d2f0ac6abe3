package mongostore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/courier/pkg/delivery"
	"github.com/dmitrymomot/courier/pkg/queue"
)

// CreateEntry implements queue.EnqueuerRepository.
func (s *Store) CreateEntry(ctx context.Context, e *queue.Entry) error {
	_, err := s.entries.InsertOne(ctx, fromEntry(e))
	if mongo.IsDuplicateKeyError(err) {
		return queue.ErrEntryExists
	}
	return err
}

// ListDue implements queue.ProcessorRepository.
func (s *Store) ListDue(ctx context.Context, now time.Time, limit int) ([]queue.Entry, error) {
	cur, err := s.entries.Find(ctx,
		bson.D{
			{Key: "status", Value: string(queue.StatusPending)},
			{Key: "scheduled_for", Value: bson.D{{Key: "$lte", Value: now}}},
		},
		options.Find().
			SetSort(bson.D{{Key: "scheduled_for", Value: 1}, {Key: "created_at", Value: 1}}).
			SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, err
	}
	var docs []entryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]queue.Entry, 0, len(docs))
	for _, d := range docs {
		e, err := d.toEntry()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// ClaimEntry implements queue.ProcessorRepository.
func (s *Store) ClaimEntry(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res, err := s.entries.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id.String()}, {Key: "status", Value: string(queue.StatusPending)}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: string(queue.StatusProcessing)},
			{Key: "processing_started_at", Value: now},
			{Key: "updated_at", Value: now},
		}}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// CompleteEntry implements queue.ProcessorRepository.
func (s *Store) CompleteEntry(ctx context.Context, id uuid.UUID, result delivery.DispatchResult, now time.Time) error {
	return s.finish(ctx, id, bson.D{
		{Key: "status", Value: string(queue.StatusCompleted)},
		{Key: "result", Value: result},
		{Key: "processing_started_at", Value: nil},
		{Key: "updated_at", Value: now},
	})
}

// RetryEntry implements queue.ProcessorRepository.
func (s *Store) RetryEntry(ctx context.Context, id uuid.UUID, r queue.Retry, now time.Time) error {
	return s.finish(ctx, id, bson.D{
		{Key: "status", Value: string(queue.StatusPending)},
		{Key: "attempts", Value: r.Attempts},
		{Key: "scheduled_for", Value: r.ScheduledFor},
		{Key: "last_error", Value: r.LastError},
		{Key: "result", Value: r.Result},
		{Key: "processing_started_at", Value: nil},
		{Key: "updated_at", Value: now},
	})
}

// FailEntry implements queue.ProcessorRepository.
func (s *Store) FailEntry(ctx context.Context, id uuid.UUID, r queue.Retry, now time.Time) error {
	return s.finish(ctx, id, bson.D{
		{Key: "status", Value: string(queue.StatusFailed)},
		{Key: "attempts", Value: r.Attempts},
		{Key: "last_error", Value: r.LastError},
		{Key: "result", Value: r.Result},
		{Key: "processing_started_at", Value: nil},
		{Key: "updated_at", Value: now},
	})
}

// finish applies set to a processing entry.
func (s *Store) finish(ctx context.Context, id uuid.UUID, set bson.D) error {
	res, err := s.entries.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id.String()}, {Key: "status", Value: string(queue.StatusProcessing)}},
		bson.D{{Key: "$set", Value: set}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return queue.ErrEntryNotProcessing
	}
	return nil
}

// ReleaseStale implements queue.ProcessorRepository.
func (s *Store) ReleaseStale(ctx context.Context, cutoff, now time.Time) (int, error) {
	res, err := s.entries.UpdateMany(ctx,
		bson.D{
			{Key: "status", Value: string(queue.StatusProcessing)},
			{Key: "$or", Value: bson.A{
				bson.D{{Key: "processing_started_at", Value: nil}},
				bson.D{{Key: "processing_started_at", Value: bson.D{{Key: "$lt", Value: cutoff}}}},
			}},
		},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: string(queue.StatusPending)},
			{Key: "last_error", Value: queue.StaleError},
			{Key: "processing_started_at", Value: nil},
			{Key: "updated_at", Value: now},
		}}},
	)
	if err != nil {
		return 0, err
	}
	return int(res.ModifiedCount), nil
}

// DeleteTerminalEntriesBefore implements queue.EntrySweeper.
func (s *Store) DeleteTerminalEntriesBefore(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	return deleteBatch(ctx, s.entries, bson.D{
		{Key: "status", Value: bson.D{{Key: "$in", Value: bson.A{string(queue.StatusCompleted), string(queue.StatusFailed)}}}},
		{Key: "updated_at", Value: bson.D{{Key: "$lt", Value: cutoff}}},
	}, bson.D{{Key: "updated_at", Value: 1}}, limit)
}

// GetEntry returns the entry with id.
func (s *Store) GetEntry(ctx context.Context, id uuid.UUID) (*queue.Entry, error) {
	var d entryDoc
	err := s.entries.FindOne(ctx, bson.D{{Key: "_id", Value: id.String()}}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, queue.ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	e, err := d.toEntry()
	if err != nil {
		return nil, err
	}
	return &e, nil
}
