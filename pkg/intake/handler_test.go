package intake_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/courier/pkg/delivery"
	"github.com/dmitrymomot/courier/pkg/intake"
	"github.com/dmitrymomot/courier/pkg/queue"
)

const validBody = `{
	"notification_id": "n1",
	"recipient_ids": ["u1", "u2", "u1"],
	"payload": {"title": "Invoice ready", "message": "Pay by Friday", "type": "billing"},
	"max_attempts": 5,
	"delay_seconds": 60,
	"expires_at": "2030-01-01T00:00:00Z"
}`

func newHandler(t *testing.T, store *queue.MemoryStorage, now time.Time) *intake.Handler {
	t.Helper()
	enq, err := queue.NewEnqueuer(store,
		queue.WithIdempotentIDs(),
		queue.WithEnqueuerClock(func() time.Time { return now }))
	require.NoError(t, err)
	return intake.NewHandler(enq, store, nil)
}

func TestHandler_Handle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store := queue.NewMemoryStorage()
	h := newHandler(t, store, now)

	require.NoError(t, h.Handle(ctx, []byte(validBody)))
	assert.Equal(t, 2, store.Count(queue.StatusPending))
	assert.True(t, store.HasNotification("n1"))

	due, err := store.ListDue(ctx, now.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	for _, e := range due {
		assert.Equal(t, 5, e.MaxAttempts)
		assert.Equal(t, now.Add(time.Minute), e.ScheduledFor)
		assert.Equal(t, "Invoice ready", e.Payload.Title)
	}

	require.NoError(t, h.Handle(ctx, []byte(validBody)), "redelivery is a no-op")
	assert.Equal(t, 2, store.Count(queue.StatusPending))
}

func TestHandler_InvalidMessages(t *testing.T) {
	t.Parallel()

	h := newHandler(t, queue.NewMemoryStorage(), time.Now())
	bodies := map[string]string{
		"not json":         `nope`,
		"no notification":  `{"recipient_ids":["u1"],"payload":{"title":"t","message":"m","type":"x"}}`,
		"no recipients":    `{"notification_id":"n1","recipient_ids":[],"payload":{"title":"t","message":"m","type":"x"}}`,
		"blank recipient":  `{"notification_id":"n1","recipient_ids":[""],"payload":{"title":"t","message":"m","type":"x"}}`,
		"invalid payload":  `{"notification_id":"n1","recipient_ids":["u1"],"payload":{"title":"t"}}`,
		"too many retries": `{"notification_id":"n1","recipient_ids":["u1"],"payload":{"title":"t","message":"m","type":"x"},"max_attempts":11}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			err := h.Handle(context.Background(), []byte(body))
			assert.ErrorIs(t, err, intake.ErrInvalidMessage)
		})
	}
}

type failingEnqueuer struct{}

func (failingEnqueuer) EnqueueBatch(context.Context, string, []string, delivery.Payload, ...queue.EnqueueOption) ([]queue.Entry, error) {
	return nil, errors.Join(queue.ErrFailedToCreateEntry, errors.New("connection reset"))
}

func TestHandler_StorageErrorIsTransient(t *testing.T) {
	t.Parallel()

	h := intake.NewHandler(failingEnqueuer{}, nil, nil)
	err := h.Handle(context.Background(), []byte(validBody))
	require.Error(t, err)
	assert.NotErrorIs(t, err, intake.ErrInvalidMessage)
	assert.ErrorIs(t, err, queue.ErrFailedToCreateEntry)
}
