package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/courier/pkg/delivery"
)

// Status is the lifecycle state of a queue entry.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further processing will happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// DefaultMaxAttempts applies when an entry is enqueued without an explicit limit.
const DefaultMaxAttempts = 3

// Entry is one notification awaiting delivery to one recipient.
type Entry struct {
	ID                  uuid.UUID                `json:"id"`
	NotificationID      string                   `json:"notification_id"`
	RecipientID         string                   `json:"recipient_id"`
	Payload             delivery.Payload         `json:"payload"`
	Status              Status                   `json:"status"`
	Attempts            int                      `json:"attempts"`
	MaxAttempts         int                      `json:"max_attempts"`
	ScheduledFor        time.Time                `json:"scheduled_for"`
	ProcessingStartedAt *time.Time               `json:"processing_started_at,omitempty"`
	LastError           *string                  `json:"last_error,omitempty"`
	Result              *delivery.DispatchResult `json:"result,omitempty"`
	CreatedAt           time.Time                `json:"created_at"`
	UpdatedAt           time.Time                `json:"updated_at"`
}

// Due reports whether the entry may be picked up at now.
func (e Entry) Due(now time.Time) bool {
	return e.Status == StatusPending && !e.ScheduledFor.After(now)
}

// Retry describes the outcome of an unsuccessful attempt.
type Retry struct {
	Attempts     int
	ScheduledFor time.Time
	LastError    string
	Result       *delivery.DispatchResult
}

// Stats summarises one processor tick.
type Stats struct {
	Released  int `json:"released"`
	Claimed   int `json:"claimed"`
	Completed int `json:"completed"`
	Retried   int `json:"retried"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	// Errored counts claimed entries whose outcome could not be stored.
	Errored int `json:"errored"`
}
