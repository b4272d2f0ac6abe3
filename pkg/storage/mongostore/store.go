package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	queueCollection         = "notification_queue"
	recordsCollection       = "delivery_records"
	recipientsCollection    = "recipients"
	settingsCollection      = "notification_settings"
	notificationsCollection = "notifications"
)

// Store is a MongoDB-backed implementation of the queue and delivery
// repositories.
type Store struct {
	entries       *mongo.Collection
	records       *mongo.Collection
	recipients    *mongo.Collection
	settings      *mongo.Collection
	notifications *mongo.Collection
}

// New creates a Store on db.
func New(db *mongo.Database) *Store {
	return &Store{
		entries:       db.Collection(queueCollection),
		records:       db.Collection(recordsCollection),
		recipients:    db.Collection(recipientsCollection),
		settings:      db.Collection(settingsCollection),
		notifications: db.Collection(notificationsCollection),
	}
}

// EnsureIndexes creates the indexes the queries rely on. It is idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.entries.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduled_for", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: 1}}},
	})
	if err != nil {
		return errors.Join(ErrFailedToCreateIndexes, err)
	}
	_, err = s.records.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tracking_id", Value: 1}, {Key: "channel", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return errors.Join(ErrFailedToCreateIndexes, err)
	}
	_, err = s.notifications.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "expires_at", Value: 1}},
	})
	if err != nil {
		return errors.Join(ErrFailedToCreateIndexes, err)
	}
	return nil
}

// SaveNotification stores or refreshes a notification's expiry so the
// retention sweep can remove it later.
func (s *Store) SaveNotification(ctx context.Context, id, title string, expiresAt *time.Time) error {
	_, err := s.notifications.ReplaceOne(ctx, bson.D{{Key: "_id", Value: id}},
		notificationDoc{ID: id, Title: title, ExpiresAt: expiresAt},
		options.Replace().SetUpsert(true))
	return err
}

// DeleteExpiredNotifications implements queue.NotificationExpirer.
func (s *Store) DeleteExpiredNotifications(ctx context.Context, now time.Time, limit int) (int, error) {
	return deleteBatch(ctx, s.notifications, bson.D{
		{Key: "expires_at", Value: bson.D{{Key: "$ne", Value: nil}, {Key: "$lt", Value: now}}},
	}, bson.D{{Key: "expires_at", Value: 1}}, limit)
}

// deleteBatch removes up to limit documents matching filter, in sort order.
func deleteBatch(ctx context.Context, coll *mongo.Collection, filter, sort bson.D, limit int) (int, error) {
	cur, err := coll.Find(ctx, filter, options.Find().
		SetSort(sort).
		SetLimit(int64(limit)).
		SetProjection(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return 0, err
	}
	var ids []struct {
		ID any `bson:"_id"`
	}
	if err := cur.All(ctx, &ids); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	in := make(bson.A, len(ids))
	for i, d := range ids {
		in[i] = d.ID
	}
	res, err := coll.DeleteMany(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: in}}}})
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}
