package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/courier/pkg/delivery"
	"github.com/dmitrymomot/courier/pkg/queue"
)

var sweepTime = time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)

func seedRecord(t *testing.T, store *delivery.MemoryStorage, createdAt time.Time) uuid.UUID {
	t.Helper()
	rec := &delivery.Record{
		ID:             uuid.New(),
		NotificationID: "n1",
		RecipientID:    "u1",
		Channel:        delivery.ChannelEmail,
		Status:         delivery.StatusSent,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
	require.NoError(t, store.CreateRecord(context.Background(), rec))
	return rec.ID
}

func seedTerminal(t *testing.T, store *queue.MemoryStorage, updatedAt time.Time, complete bool) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id := seedEntry(t, store, 0, 3, updatedAt.Add(-time.Minute))
	claimed, err := store.ClaimEntry(ctx, id, updatedAt)
	require.NoError(t, err)
	require.True(t, claimed)
	if complete {
		require.NoError(t, store.CompleteEntry(ctx, id, delivery.DispatchResult{}, updatedAt))
	} else {
		require.NoError(t, store.FailEntry(ctx, id, queue.Retry{Attempts: 3, LastError: "all channels failed"}, updatedAt))
	}
	return id
}

func TestSweeper_Sweep(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	entries := queue.NewMemoryStorage()
	records := delivery.NewMemoryStorage()

	expired := sweepTime.Add(-time.Hour)
	future := sweepTime.Add(time.Hour)
	require.NoError(t, entries.SaveNotification(ctx, "expired", "", &expired))
	require.NoError(t, entries.SaveNotification(ctx, "active", "", &future))
	require.NoError(t, entries.SaveNotification(ctx, "forever", "", nil))

	oldRecord := seedRecord(t, records, sweepTime.Add(-31*24*time.Hour))
	freshRecord := seedRecord(t, records, sweepTime.Add(-24*time.Hour))

	oldDone := seedTerminal(t, entries, sweepTime.Add(-8*24*time.Hour), true)
	oldFailed := seedTerminal(t, entries, sweepTime.Add(-8*24*time.Hour), false)
	recentDone := seedTerminal(t, entries, sweepTime.Add(-time.Hour), true)
	oldPending := seedEntry(t, entries, 0, 3, sweepTime.Add(-30*24*time.Hour))

	s := queue.NewSweeper(entries, records, entries,
		queue.WithSweeperClock(func() time.Time { return sweepTime }))

	stats, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, queue.SweepStats{Notifications: 1, Records: 1, Entries: 2}, stats)

	assert.False(t, entries.HasNotification("expired"))
	assert.True(t, entries.HasNotification("active"))
	assert.True(t, entries.HasNotification("forever"))

	_, err = records.GetRecord(ctx, oldRecord)
	assert.ErrorIs(t, err, delivery.ErrRecordNotFound)
	_, err = records.GetRecord(ctx, freshRecord)
	assert.NoError(t, err)

	for _, id := range []uuid.UUID{oldDone, oldFailed} {
		_, err = entries.GetEntry(ctx, id)
		assert.ErrorIs(t, err, queue.ErrEntryNotFound)
	}
	for _, id := range []uuid.UUID{recentDone, oldPending} {
		_, err = entries.GetEntry(ctx, id)
		assert.NoError(t, err, "recent or non-terminal entries survive")
	}
}

func TestSweeper_Batches(t *testing.T) {
	t.Parallel()

	records := delivery.NewMemoryStorage()
	for range 7 {
		seedRecord(t, records, sweepTime.Add(-60*24*time.Hour))
	}

	s := queue.NewSweeper(nil, records, nil,
		queue.WithSweeperClock(func() time.Time { return sweepTime }),
		queue.WithSweepBatches(2, 3))

	stats, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Records, "stops after max batches")
	assert.Equal(t, 1, records.CountRecords())

	stats, err = s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Records)
	assert.Zero(t, records.CountRecords())
}

type failingRecordSweeper struct{}

func (failingRecordSweeper) DeleteRecordsCreatedBefore(context.Context, time.Time, int) (int, error) {
	return 0, errors.New("connection reset")
}

func TestSweeper_ErrorsAreJoined(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	entries := queue.NewMemoryStorage()
	expired := sweepTime.Add(-time.Minute)
	require.NoError(t, entries.SaveNotification(ctx, "expired", "", &expired))

	s := queue.NewSweeper(entries, failingRecordSweeper{}, entries,
		queue.WithSweeperClock(func() time.Time { return sweepTime }))

	stats, err := s.Sweep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sweep delivery records")
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, 1, stats.Notifications, "other collections are still swept")
}

func TestSweeper_Config(t *testing.T) {
	t.Parallel()

	records := delivery.NewMemoryStorage()
	seedRecord(t, records, sweepTime.Add(-2*time.Hour))

	s := queue.NewSweeper(nil, records, nil,
		queue.WithSweeperClock(func() time.Time { return sweepTime }),
		queue.WithSweeperConfig(queue.Config{RecordRetention: time.Hour, EntryRetention: time.Hour}))

	stats, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Records)
}
