package delivery_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/courier/pkg/delivery"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRecorder_Create(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := delivery.NewMemoryStorage()
	rec := delivery.NewRecorder(store, delivery.WithRecorderClock(fixedClock(now)))

	id, err := rec.Create(context.Background(), "n1", "u1", delivery.ChannelEmail, delivery.StatusPending,
		map[string]any{delivery.MetaTrackingID: "n1_u1_1", delivery.MetaEmail: "a@b.io"})
	require.NoError(t, err)

	got, err := store.GetRecord(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "n1_u1_1", got.TrackingID)
	assert.Equal(t, "n1_u1_1", got.Metadata[delivery.MetaTrackingID])
	assert.Equal(t, delivery.StatusPending, got.Status)
	assert.Equal(t, now, got.CreatedAt)
	assert.Equal(t, now, got.UpdatedAt)
	assert.Nil(t, got.SentAt)

	_, err = rec.Create(context.Background(), "", "u1", delivery.ChannelEmail, delivery.StatusPending, nil)
	assert.ErrorIs(t, err, delivery.ErrInvalidRecord)
}

func TestRecorder_Update(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := created
	store := delivery.NewMemoryStorage()
	rec := delivery.NewRecorder(store, delivery.WithRecorderClock(func() time.Time { return clock }))
	ctx := context.Background()

	id, err := rec.Create(ctx, "n1", "u1", delivery.ChannelEmail, delivery.StatusPending,
		map[string]any{delivery.MetaTrackingID: "tid"})
	require.NoError(t, err)

	t.Run("metadata only keeps SentAt empty", func(t *testing.T) {
		clock = created.Add(time.Second)
		require.NoError(t, rec.Update(ctx, id, delivery.Patch{Metadata: map[string]any{"foo": "bar"}}))

		got, err := store.GetRecord(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, got.SentAt)
		assert.Equal(t, clock, got.UpdatedAt)
		assert.Equal(t, "bar", got.Metadata["foo"])
	})

	t.Run("moving into sent stamps SentAt", func(t *testing.T) {
		clock = created.Add(2 * time.Second)
		require.NoError(t, rec.Update(ctx, id, delivery.Patch{Status: delivery.StatusPtr(delivery.StatusSent)}))

		got, err := store.GetRecord(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got.SentAt)
		assert.Equal(t, clock, *got.SentAt)
		assert.Equal(t, delivery.StatusSent, got.Status)
	})

	t.Run("tracking id is immutable", func(t *testing.T) {
		require.NoError(t, rec.Update(ctx, id, delivery.Patch{Metadata: map[string]any{delivery.MetaTrackingID: "other"}}))

		got, err := store.GetRecord(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "tid", got.TrackingID)
		assert.Equal(t, "tid", got.Metadata[delivery.MetaTrackingID])
	})

	t.Run("unknown record", func(t *testing.T) {
		err := rec.Update(ctx, uuid.New(), delivery.Patch{})
		assert.ErrorIs(t, err, delivery.ErrRecordNotFound)
	})
}

func TestRecorder_FindByTrackingID(t *testing.T) {
	t.Parallel()

	store := delivery.NewMemoryStorage()
	rec := delivery.NewRecorder(store)
	ctx := context.Background()

	meta := map[string]any{delivery.MetaTrackingID: "shared"}
	_, err := rec.Create(ctx, "n1", "u1", delivery.ChannelPush, delivery.StatusPending, meta)
	require.NoError(t, err)
	emailID, err := rec.Create(ctx, "n1", "u1", delivery.ChannelEmail, delivery.StatusPending, meta)
	require.NoError(t, err)

	got, err := rec.FindByTrackingID(ctx, "shared", delivery.ChannelEmail)
	require.NoError(t, err)
	assert.Equal(t, emailID, got.ID)

	_, err = rec.FindByTrackingID(ctx, "unknown", delivery.ChannelEmail)
	assert.ErrorIs(t, err, delivery.ErrRecordNotFound)

	_, err = rec.FindByTrackingID(ctx, "", delivery.ChannelEmail)
	assert.ErrorIs(t, err, delivery.ErrMissingTrackingID)
}
