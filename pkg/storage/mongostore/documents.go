package mongostore

import (
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/courier/pkg/delivery"
	"github.com/dmitrymomot/courier/pkg/queue"
)

type entryDoc struct {
	ID                  string                   `bson:"_id"`
	NotificationID      string                   `bson:"notification_id"`
	RecipientID         string                   `bson:"recipient_id"`
	Payload             delivery.Payload         `bson:"payload"`
	Status              string                   `bson:"status"`
	Attempts            int                      `bson:"attempts"`
	MaxAttempts         int                      `bson:"max_attempts"`
	ScheduledFor        time.Time                `bson:"scheduled_for"`
	ProcessingStartedAt *time.Time               `bson:"processing_started_at"`
	LastError           *string                  `bson:"last_error"`
	Result              *delivery.DispatchResult `bson:"result"`
	CreatedAt           time.Time                `bson:"created_at"`
	UpdatedAt           time.Time                `bson:"updated_at"`
}

func fromEntry(e *queue.Entry) entryDoc {
	return entryDoc{
		ID:                  e.ID.String(),
		NotificationID:      e.NotificationID,
		RecipientID:         e.RecipientID,
		Payload:             e.Payload,
		Status:              string(e.Status),
		Attempts:            e.Attempts,
		MaxAttempts:         e.MaxAttempts,
		ScheduledFor:        e.ScheduledFor.UTC(),
		ProcessingStartedAt: e.ProcessingStartedAt,
		LastError:           e.LastError,
		Result:              e.Result,
		CreatedAt:           e.CreatedAt.UTC(),
		UpdatedAt:           e.UpdatedAt.UTC(),
	}
}

func (d entryDoc) toEntry() (queue.Entry, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return queue.Entry{}, err
	}
	return queue.Entry{
		ID:                  id,
		NotificationID:      d.NotificationID,
		RecipientID:         d.RecipientID,
		Payload:             d.Payload,
		Status:              queue.Status(d.Status),
		Attempts:            d.Attempts,
		MaxAttempts:         d.MaxAttempts,
		ScheduledFor:        d.ScheduledFor,
		ProcessingStartedAt: d.ProcessingStartedAt,
		LastError:           d.LastError,
		Result:              d.Result,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}, nil
}

type recordDoc struct {
	ID             string         `bson:"_id"`
	NotificationID string         `bson:"notification_id"`
	RecipientID    string         `bson:"recipient_id"`
	Channel        string         `bson:"channel"`
	Status         string         `bson:"status"`
	RetryCount     int            `bson:"retry_count"`
	TrackingID     string         `bson:"tracking_id"`
	Metadata       map[string]any `bson:"metadata"`
	FailureReason  *string        `bson:"failure_reason"`
	CreatedAt      time.Time      `bson:"created_at"`
	SentAt         *time.Time     `bson:"sent_at"`
	DeliveredAt    *time.Time     `bson:"delivered_at"`
	UpdatedAt      time.Time      `bson:"updated_at"`
}

func fromRecord(r *delivery.Record) recordDoc {
	metadata := r.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return recordDoc{
		ID:             r.ID.String(),
		NotificationID: r.NotificationID,
		RecipientID:    r.RecipientID,
		Channel:        string(r.Channel),
		Status:         string(r.Status),
		RetryCount:     r.RetryCount,
		TrackingID:     r.TrackingID,
		Metadata:       metadata,
		FailureReason:  r.FailureReason,
		CreatedAt:      r.CreatedAt.UTC(),
		SentAt:         r.SentAt,
		DeliveredAt:    r.DeliveredAt,
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

func (d recordDoc) toRecord() (delivery.Record, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return delivery.Record{}, err
	}
	metadata := make(map[string]any, len(d.Metadata))
	for k, v := range d.Metadata {
		metadata[k] = plain(v)
	}
	return delivery.Record{
		ID:             id,
		NotificationID: d.NotificationID,
		RecipientID:    d.RecipientID,
		Channel:        delivery.Channel(d.Channel),
		Status:         delivery.Status(d.Status),
		RetryCount:     d.RetryCount,
		TrackingID:     d.TrackingID,
		Metadata:       metadata,
		FailureReason:  d.FailureReason,
		CreatedAt:      d.CreatedAt,
		SentAt:         d.SentAt,
		DeliveredAt:    d.DeliveredAt,
		UpdatedAt:      d.UpdatedAt,
	}, nil
}

type recipientDoc struct {
	ID          string `bson:"_id"`
	DisplayName string `bson:"display_name"`
	Email       string `bson:"email"`
	Phone       string `bson:"phone"`
	PushTokens  any    `bson:"push_tokens"`
}

type settingsDoc struct {
	RecipientID        string               `bson:"_id"`
	EmailNotifications bool                 `bson:"email_notifications"`
	SMSNotifications   bool                 `bson:"sms_notifications"`
	PushNotifications  bool                 `bson:"push_notifications"`
	Categories         map[string]bool      `bson:"categories,omitempty"`
	Priority           string               `bson:"priority,omitempty"`
	QuietHours         *delivery.QuietHours `bson:"quiet_hours,omitempty"`
}

type notificationDoc struct {
	ID        string     `bson:"_id"`
	Title     string     `bson:"title"`
	ExpiresAt *time.Time `bson:"expires_at"`
}

// plain converts driver container types to the generic Go types the
// delivery package expects.
func plain(v any) any {
	switch t := v.(type) {
	case bson.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plain(item)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = plain(e.Value)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = plain(item)
		}
		return out
	case bson.DateTime:
		return t.Time().UTC()
	default:
		return v
	}
}
