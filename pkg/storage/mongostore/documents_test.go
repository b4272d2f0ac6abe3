package mongostore

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/courier/pkg/delivery"
	"github.com/dmitrymomot/courier/pkg/queue"
)

func TestPlain(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	got := plain(bson.A{"tok1", bson.D{{Key: "k", Value: bson.A{1}}}, bson.NewDateTimeFromTime(at)})
	assert.Equal(t, []any{"tok1", map[string]any{"k": []any{1}}, at}, got)
	assert.Nil(t, plain(nil))
	assert.Equal(t, "x", plain("x"))
}

func TestEntryDocRoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	lastErr := "timeout"
	e := queue.Entry{
		ID:             uuid.New(),
		NotificationID: "n1",
		RecipientID:    "u1",
		Payload:        delivery.Payload{Title: "t", Message: "m", Type: "info"},
		Status:         queue.StatusPending,
		Attempts:       1,
		MaxAttempts:    3,
		ScheduledFor:   now,
		LastError:      &lastErr,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	raw, err := bson.Marshal(fromEntry(&e))
	require.NoError(t, err)
	var d entryDoc
	require.NoError(t, bson.Unmarshal(raw, &d))

	got, err := d.toEntry()
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, e.Payload, got.Payload)
	assert.Equal(t, e.Status, got.Status)
	assert.True(t, e.ScheduledFor.Equal(got.ScheduledFor))
	require.NotNil(t, got.LastError)
	assert.Equal(t, "timeout", *got.LastError)

	_, err = entryDoc{ID: "not-a-uuid"}.toEntry()
	assert.Error(t, err)
}

func TestRecordDocMetadata(t *testing.T) {
	t.Parallel()

	r := delivery.Record{ID: uuid.New(), Channel: delivery.ChannelPush}
	d := fromRecord(&r)
	assert.NotNil(t, d.Metadata, "metadata is never stored as null")

	d.Metadata = map[string]any{"tokens": bson.A{"a", "b"}}
	got, err := d.toRecord()
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, got.Metadata["tokens"])
	assert.Equal(t, delivery.ChannelPush, got.Channel)
}
