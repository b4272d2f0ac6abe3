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
)

// CreateRecord implements delivery.RecordRepository.
func (s *Store) CreateRecord(ctx context.Context, r *delivery.Record) error {
	_, err := s.records.InsertOne(ctx, fromRecord(r))
	if mongo.IsDuplicateKeyError(err) {
		return delivery.ErrRecordExists
	}
	return err
}

// UpdateRecord implements delivery.RecordRepository. Metadata keys are set
// individually so existing keys survive.
func (s *Store) UpdateRecord(ctx context.Context, id uuid.UUID, p delivery.Patch) error {
	set := bson.D{{Key: "updated_at", Value: p.UpdatedAt}}
	if p.Status != nil {
		set = append(set, bson.E{Key: "status", Value: string(*p.Status)})
	}
	if p.FailureReason != nil {
		set = append(set, bson.E{Key: "failure_reason", Value: *p.FailureReason})
	}
	if p.RetryCount != nil {
		set = append(set, bson.E{Key: "retry_count", Value: *p.RetryCount})
	}
	for k, v := range p.Metadata {
		set = append(set, bson.E{Key: "metadata." + k, Value: v})
	}
	if p.SentAt != nil {
		set = append(set, bson.E{Key: "sent_at", Value: *p.SentAt})
	}
	if p.DeliveredAt != nil {
		set = append(set, bson.E{Key: "delivered_at", Value: *p.DeliveredAt})
	}

	res, err := s.records.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id.String()}},
		bson.D{{Key: "$set", Value: set}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return delivery.ErrRecordNotFound
	}
	return nil
}

// FindRecordByTrackingID implements delivery.RecordRepository. The oldest
// matching record wins.
func (s *Store) FindRecordByTrackingID(ctx context.Context, trackingID string, ch delivery.Channel) (*delivery.Record, error) {
	var d recordDoc
	err := s.records.FindOne(ctx,
		bson.D{{Key: "tracking_id", Value: trackingID}, {Key: "channel", Value: string(ch)}},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, delivery.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	r, err := d.toRecord()
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteRecordsCreatedBefore implements queue.RecordSweeper.
func (s *Store) DeleteRecordsCreatedBefore(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	return deleteBatch(ctx, s.records,
		bson.D{{Key: "created_at", Value: bson.D{{Key: "$lt", Value: cutoff}}}},
		bson.D{{Key: "created_at", Value: 1}}, limit)
}
