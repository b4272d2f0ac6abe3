package delivery

import (
	"time"

	"github.com/google/uuid"
)

// Channel is one delivery medium.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
	ChannelApp   Channel = "app"
)

// Status is the lifecycle state of a delivery record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// Metadata keys written by the dispatcher and reconciler.
const (
	MetaTrackingID   = "trackingId"
	MetaMessageID    = "messageId"
	MetaEmail        = "email"
	MetaPhone        = "phone"
	MetaTokens       = "tokens"
	MetaSuccessCount = "successCount"
	MetaFailureCount = "failureCount"
	MetaErrors       = "errors"
	MetaOpened       = "opened"
	MetaOpenedAt     = "openedAt"
	MetaClicked      = "clicked"
	MetaClickedAt    = "clickedAt"
	MetaClickedURL   = "clickedUrl"
)

// Payload is the notification content carried by a queue entry.
type Payload struct {
	Title       string `json:"title" bson:"title" validate:"required,max=255"`
	Message     string `json:"message" bson:"message" validate:"required"`
	Type        string `json:"type" bson:"type" validate:"required,max=64"`
	ActionURL   string `json:"action_url,omitempty" bson:"action_url,omitempty" validate:"omitempty,url"`
	ActionLabel string `json:"action_label,omitempty" bson:"action_label,omitempty" validate:"omitempty,max=64"`
}

// Record is the audit row for one channel attempt.
type Record struct {
	ID             uuid.UUID      `json:"id"`
	NotificationID string         `json:"notification_id"`
	RecipientID    string         `json:"recipient_id"`
	Channel        Channel        `json:"channel"`
	Status         Status         `json:"status"`
	RetryCount     int            `json:"retry_count"`
	TrackingID     string         `json:"tracking_id"`
	Metadata       map[string]any `json:"metadata"`
	FailureReason  *string        `json:"failure_reason,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Patch is a partial update of a record. Nil fields are left untouched and
// Metadata keys are merged into the stored metadata.
type Patch struct {
	Status        *Status
	FailureReason *string
	RetryCount    *int
	Metadata      map[string]any
	SentAt        *time.Time
	DeliveredAt   *time.Time
	UpdatedAt     time.Time
}

// Profile is the raw directory entry of a recipient. PushTokens holds the
// stored value as decoded from the store and may be of any shape.
type Profile struct {
	ID          string
	DisplayName string
	Email       string
	Phone       string
	PushTokens  any
}

// ContactInfo is the validated set of destinations of a recipient.
type ContactInfo struct {
	Email       string
	Phone       string
	PushTokens  []string
	DisplayName string
}

// QuietHours is stored with settings but not enforced.
type QuietHours struct {
	Start    string `json:"start" bson:"start"`
	End      string `json:"end" bson:"end"`
	Timezone string `json:"timezone,omitempty" bson:"timezone,omitempty"`
}

// Settings are per-recipient channel preferences. Only the channel flags
// affect dispatch.
type Settings struct {
	EmailNotifications bool
	SMSNotifications   bool
	PushNotifications  bool
	Categories         map[string]bool
	Priority           string
	QuietHours         *QuietHours
}

// DefaultSettings applies when a recipient has no stored settings.
func DefaultSettings() Settings {
	return Settings{
		EmailNotifications: true,
		SMSNotifications:   false,
		PushNotifications:  true,
	}
}

// Enabled reports whether ch is switched on.
func (s Settings) Enabled(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return s.EmailNotifications
	case ChannelSMS:
		return s.SMSNotifications
	case ChannelPush:
		return s.PushNotifications
	default:
		return false
	}
}
