package intake

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrymomot/courier/pkg/delivery"
	"github.com/dmitrymomot/courier/pkg/logger"
	"github.com/dmitrymomot/courier/pkg/queue"
)

// Message is a notification.created event.
type Message struct {
	NotificationID string           `json:"notification_id" validate:"required"`
	RecipientIDs   []string         `json:"recipient_ids" validate:"required,min=1,dive,required"`
	Payload        delivery.Payload `json:"payload"`
	MaxAttempts    int              `json:"max_attempts,omitempty" validate:"gte=0,lte=10"`
	DelaySeconds   int              `json:"delay_seconds,omitempty" validate:"gte=0"`
	ExpiresAt      *time.Time       `json:"expires_at,omitempty"`
}

// Enqueuer stores queue entries.
type Enqueuer interface {
	EnqueueBatch(ctx context.Context, notificationID string, recipientIDs []string, payload delivery.Payload, opts ...queue.EnqueueOption) ([]queue.Entry, error)
}

// NotificationSaver records a notification's expiry for the retention sweep.
type NotificationSaver interface {
	SaveNotification(ctx context.Context, id, title string, expiresAt *time.Time) error
}

// Handler turns a message body into queue entries.
type Handler struct {
	enqueuer      Enqueuer
	notifications NotificationSaver
	validate      *validator.Validate
	logger        *slog.Logger
}

// NewHandler creates a Handler. notifications may be nil.
func NewHandler(enqueuer Enqueuer, notifications NotificationSaver, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		enqueuer:      enqueuer,
		notifications: notifications,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		logger:        log,
	}
}

// Handle processes one message body. Errors wrapping ErrInvalidMessage are
// permanent; any other error is worth a redelivery.
func (h *Handler) Handle(ctx context.Context, body []byte) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return errors.Join(ErrInvalidMessage, err)
	}
	if err := h.validate.Struct(msg); err != nil {
		return errors.Join(ErrInvalidMessage, err)
	}

	if h.notifications != nil {
		if err := h.notifications.SaveNotification(ctx, msg.NotificationID, msg.Payload.Title, msg.ExpiresAt); err != nil {
			return err
		}
	}

	var opts []queue.EnqueueOption
	if msg.MaxAttempts > 0 {
		opts = append(opts, queue.WithMaxAttempts(msg.MaxAttempts))
	}
	if msg.DelaySeconds > 0 {
		opts = append(opts, queue.WithDelay(time.Duration(msg.DelaySeconds)*time.Second))
	}

	entries, err := h.enqueuer.EnqueueBatch(ctx, msg.NotificationID, msg.RecipientIDs, msg.Payload, opts...)
	if err != nil {
		if isPermanent(err) {
			return errors.Join(ErrInvalidMessage, err)
		}
		return err
	}

	h.logger.InfoContext(ctx, "notification accepted",
		logger.NotificationID(msg.NotificationID),
		slog.Int("recipients", len(msg.RecipientIDs)),
		slog.Int("enqueued", len(entries)))
	return nil
}

func isPermanent(err error) bool {
	return errors.Is(err, queue.ErrInvalidPayload) ||
		errors.Is(err, queue.ErrMissingNotificationID) ||
		errors.Is(err, queue.ErrNoRecipients)
}
