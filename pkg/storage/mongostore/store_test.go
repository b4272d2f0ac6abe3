package mongostore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/courier/pkg/delivery"
	"github.com/dmitrymomot/courier/pkg/mongo"
	"github.com/dmitrymomot/courier/pkg/queue"
	"github.com/dmitrymomot/courier/pkg/storage/mongostore"
)

var (
	_ queue.ProcessorRepository = (*mongostore.Store)(nil)
	_ queue.EnqueuerRepository  = (*mongostore.Store)(nil)
	_ queue.EntrySweeper        = (*mongostore.Store)(nil)
	_ queue.RecordSweeper       = (*mongostore.Store)(nil)
	_ queue.NotificationExpirer = (*mongostore.Store)(nil)
	_ delivery.RecordRepository = (*mongostore.Store)(nil)
	_ delivery.Directory        = (*mongostore.Store)(nil)
)

// newStore connects to MONGODB_TEST_URL using a throwaway database. The test
// is skipped when the variable is not set.
func newStore(t *testing.T) *mongostore.Store {
	t.Helper()
	url := os.Getenv("MONGODB_TEST_URL")
	if url == "" {
		t.Skip("MONGODB_TEST_URL is not set")
	}

	ctx := context.Background()
	db, err := mongo.ConnectDatabase(ctx, mongo.Config{
		ConnectionURL:  url,
		Database:       "courier_test_" + uuid.NewString()[:8],
		ConnectTimeout: 5 * time.Second,
		MaxPoolSize:    4,
		RetryAttempts:  1,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = db.Client().Disconnect(context.Background())
	})

	store := mongostore.New(db)
	require.NoError(t, store.EnsureIndexes(ctx))
	return store
}

func TestStore_ClaimAndSweep(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	e := &queue.Entry{
		ID:             uuid.New(),
		NotificationID: "n1",
		RecipientID:    "u1",
		Payload:        delivery.Payload{Title: "t", Message: "m", Type: "info"},
		Status:         queue.StatusPending,
		MaxAttempts:    3,
		ScheduledFor:   now.Add(-time.Minute),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, store.CreateEntry(ctx, e))
	assert.ErrorIs(t, store.CreateEntry(ctx, e), queue.ErrEntryExists)

	due, err := store.ListDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	ok, err := store.ClaimEntry(ctx, e.ID, now)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = store.ClaimEntry(ctx, e.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.FailEntry(ctx, e.ID, queue.Retry{Attempts: 3, LastError: "all channels failed"}, now.Add(-8*24*time.Hour)))

	n, err := store.DeleteTerminalEntriesBefore(ctx, now.Add(-7*24*time.Hour), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.GetEntry(ctx, e.ID)
	assert.ErrorIs(t, err, queue.ErrEntryNotFound)
}

func TestStore_RecordMetadataMerge(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	rec := &delivery.Record{
		ID:         uuid.New(),
		Channel:    delivery.ChannelEmail,
		Status:     delivery.StatusSent,
		TrackingID: "n1_u1_1",
		Metadata:   map[string]any{"email": "a@example.com"},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, store.CreateRecord(ctx, rec))
	require.NoError(t, store.UpdateRecord(ctx, rec.ID, delivery.Patch{
		Metadata:  map[string]any{"clicked": true, "clickedUrl": "https://example.com"},
		UpdatedAt: now,
	}))

	got, err := store.FindRecordByTrackingID(ctx, "n1_u1_1", delivery.ChannelEmail)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", got.Metadata["email"])
	assert.Equal(t, true, got.Metadata["clicked"])
}
