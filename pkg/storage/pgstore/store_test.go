package pgstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/courier/pkg/delivery"
	"github.com/dmitrymomot/courier/pkg/pg"
	"github.com/dmitrymomot/courier/pkg/queue"
	"github.com/dmitrymomot/courier/pkg/storage/pgstore"
)

var (
	_ queue.EnqueuerRepository  = (*pgstore.Store)(nil)
	_ queue.ProcessorRepository = (*pgstore.Store)(nil)
	_ queue.EntrySweeper        = (*pgstore.Store)(nil)
	_ queue.RecordSweeper       = (*pgstore.Store)(nil)
	_ queue.NotificationExpirer = (*pgstore.Store)(nil)
	_ delivery.RecordRepository = (*pgstore.Store)(nil)
	_ delivery.Directory        = (*pgstore.Store)(nil)
)

// newStore connects to PG_TEST_CONN_URL and applies migrations. The test is
// skipped when the variable is not set.
func newStore(t *testing.T) *pgstore.Store {
	t.Helper()
	url := os.Getenv("PG_TEST_CONN_URL")
	if url == "" {
		t.Skip("PG_TEST_CONN_URL is not set")
	}

	ctx := context.Background()
	cfg := pg.Config{
		ConnectionString: url,
		MaxOpenConns:     4,
		MaxIdleConns:     1,
		RetryAttempts:    1,
		MigrationsTable:  "courier_schema_migrations",
	}
	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pg.Migrate(ctx, pool, cfg, nil))
	return pgstore.New(pool)
}

func TestStore_QueueLifecycle(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	entry := &queue.Entry{
		ID:             uuid.New(),
		NotificationID: "n-" + uuid.NewString(),
		RecipientID:    "u1",
		Payload:        delivery.Payload{Title: "Hello", Message: "World", Type: "info"},
		Status:         queue.StatusPending,
		MaxAttempts:    3,
		ScheduledFor:   now.Add(-time.Hour),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, store.CreateEntry(ctx, entry))
	assert.ErrorIs(t, store.CreateEntry(ctx, entry), queue.ErrEntryExists)

	claimed, err := store.ClaimEntry(ctx, entry.ID, now)
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, err = store.ClaimEntry(ctx, entry.ID, now)
	require.NoError(t, err)
	assert.False(t, claimed)

	retryAt := now.Add(30 * time.Second)
	require.NoError(t, store.RetryEntry(ctx, entry.ID, queue.Retry{Attempts: 1, ScheduledFor: retryAt, LastError: "boom"}, now))

	got, err := store.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.True(t, retryAt.Equal(got.ScheduledFor))
	require.NotNil(t, got.LastError)
	assert.Equal(t, "boom", *got.LastError)
	assert.Equal(t, entry.Payload, got.Payload)

	_, err = store.ClaimEntry(ctx, entry.ID, now)
	require.NoError(t, err)
	result := delivery.DispatchResult{Email: delivery.ChannelResult{Attempted: true, Success: true, MessageID: "m1"}}
	require.NoError(t, store.CompleteEntry(ctx, entry.ID, result, now))
	assert.ErrorIs(t, store.CompleteEntry(ctx, entry.ID, result, now), queue.ErrEntryNotProcessing)

	got, err = store.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, "m1", got.Result.Email.MessageID)
}

func TestStore_Records(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	tracking := "n_" + uuid.NewString()

	rec := &delivery.Record{
		ID:             uuid.New(),
		NotificationID: "n1",
		RecipientID:    "u1",
		Channel:        delivery.ChannelEmail,
		Status:         delivery.StatusPending,
		TrackingID:     tracking,
		Metadata:       map[string]any{"email": "a@example.com"},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, store.CreateRecord(ctx, rec))

	opened := true
	require.NoError(t, store.UpdateRecord(ctx, rec.ID, delivery.Patch{
		Status:    delivery.StatusPtr(delivery.StatusSent),
		Metadata:  map[string]any{"opened": opened},
		SentAt:    &now,
		UpdatedAt: now,
	}))

	got, err := store.FindRecordByTrackingID(ctx, tracking, delivery.ChannelEmail)
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusSent, got.Status)
	assert.Equal(t, "a@example.com", got.Metadata["email"], "metadata is merged")
	assert.Equal(t, true, got.Metadata["opened"])
	require.NotNil(t, got.SentAt)

	_, err = store.FindRecordByTrackingID(ctx, tracking, delivery.ChannelSMS)
	assert.ErrorIs(t, err, delivery.ErrRecordNotFound)

	assert.ErrorIs(t, store.UpdateRecord(ctx, uuid.New(), delivery.Patch{UpdatedAt: now}), delivery.ErrRecordNotFound)
}

func TestStore_Directory(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.GetProfile(ctx, "missing-"+uuid.NewString())
	assert.ErrorIs(t, err, delivery.ErrRecipientNotFound)

	_, err = store.GetSettings(ctx, "missing-"+uuid.NewString())
	assert.ErrorIs(t, err, delivery.ErrSettingsNotFound)
}
