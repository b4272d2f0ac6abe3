package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dmitrymomot/courier/pkg/delivery"
	"github.com/dmitrymomot/courier/pkg/logger"
)

// Enqueuer creates pending entries for upstream notification flows.
type Enqueuer struct {
	repo     EnqueuerRepository
	validate *validator.Validate
	opts     enqueuerOptions
}

// NewEnqueuer creates an Enqueuer.
func NewEnqueuer(repo EnqueuerRepository, opts ...EnqueuerOption) (*Enqueuer, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	o := enqueuerOptions{
		defaultMaxAttempts: DefaultMaxAttempts,
		now:                time.Now,
		logger:             slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Enqueuer{
		repo:     repo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		opts:     o,
	}, nil
}

// Enqueue stores one pending entry for (notificationID, recipientID). With
// WithIdempotentIDs a pair that is already stored yields ErrEntryExists.
func (e *Enqueuer) Enqueue(ctx context.Context, notificationID, recipientID string, payload delivery.Payload, opts ...EnqueueOption) (*Entry, error) {
	entries, err := e.EnqueueBatch(ctx, notificationID, []string{recipientID}, payload, opts...)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrEntryExists
	}
	return &entries[0], nil
}

// EnqueueBatch stores one entry per distinct non-empty recipient. It stops at
// the first storage error and returns the entries stored so far.
func (e *Enqueuer) EnqueueBatch(ctx context.Context, notificationID string, recipientIDs []string, payload delivery.Payload, opts ...EnqueueOption) ([]Entry, error) {
	if notificationID == "" {
		return nil, ErrMissingNotificationID
	}
	if err := e.validate.Struct(payload); err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}

	recipients := make([]string, 0, len(recipientIDs))
	for _, id := range recipientIDs {
		if id != "" && !slices.Contains(recipients, id) {
			recipients = append(recipients, id)
		}
	}
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	o := enqueueOptions{maxAttempts: e.opts.defaultMaxAttempts}
	for _, opt := range opts {
		opt(&o)
	}

	now := e.opts.now().UTC()
	scheduledFor := now.Add(o.delay)
	if o.scheduledFor != nil {
		scheduledFor = o.scheduledFor.UTC()
	}

	out := make([]Entry, 0, len(recipients))
	for _, recipientID := range recipients {
		entry := Entry{
			ID:             e.entryID(notificationID, recipientID),
			NotificationID: notificationID,
			RecipientID:    recipientID,
			Payload:        payload,
			Status:         StatusPending,
			MaxAttempts:    o.maxAttempts,
			ScheduledFor:   scheduledFor,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		err := e.repo.CreateEntry(ctx, &entry)
		if e.opts.idempotent && errors.Is(err, ErrEntryExists) {
			e.opts.logger.DebugContext(ctx, "entry already enqueued",
				logger.NotificationID(notificationID),
				logger.RecipientID(recipientID))
			continue
		}
		if err != nil {
			return out, errors.Join(ErrFailedToCreateEntry,
				fmt.Errorf("notification %q recipient %q: %w", notificationID, recipientID, err))
		}
		out = append(out, entry)
	}

	e.opts.logger.DebugContext(ctx, "notification enqueued",
		logger.NotificationID(notificationID),
		slog.Int("recipients", len(out)),
		slog.Time("scheduled_for", scheduledFor))

	return out, nil
}

// entryNamespace scopes idempotent entry ids.
var entryNamespace = uuid.MustParse("6f1c1d3e-5b7a-4d0e-9a63-2f8e4c1b7a90")

func (e *Enqueuer) entryID(notificationID, recipientID string) uuid.UUID {
	if !e.opts.idempotent {
		return uuid.New()
	}
	return uuid.NewSHA1(entryNamespace, []byte(notificationID+"\x00"+recipientID))
}
