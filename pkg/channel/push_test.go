package channel_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/courier/pkg/channel"
	"github.com/dmitrymomot/courier/pkg/delivery"
)

// fakeFCM accepts every token except those starting with "bad".
type fakeFCM struct {
	mu        sync.Mutex
	single    []*messaging.Message
	multicast []*messaging.MulticastMessage
	batchErr  error
}

func (f *fakeFCM) Send(_ context.Context, m *messaging.Message) (string, error) {
	f.mu.Lock()
	f.single = append(f.single, m)
	f.mu.Unlock()
	if strings.HasPrefix(m.Token, "bad") {
		return "", errors.New("NOT_FOUND: requested entity was not found")
	}
	return "projects/acme/messages/" + m.Token, nil
}

func (f *fakeFCM) SendEachForMulticast(_ context.Context, m *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	f.mu.Lock()
	f.multicast = append(f.multicast, m)
	f.mu.Unlock()
	if f.batchErr != nil {
		return nil, f.batchErr
	}

	br := &messaging.BatchResponse{}
	for _, tok := range m.Tokens {
		if strings.HasPrefix(tok, "bad") {
			br.FailureCount++
			br.Responses = append(br.Responses, &messaging.SendResponse{Error: fmt.Errorf("unregistered token %s", tok)})
			continue
		}
		br.SuccessCount++
		br.Responses = append(br.Responses, &messaging.SendResponse{Success: true, MessageID: "projects/acme/messages/" + tok})
	}
	return br, nil
}

func newPushSender(t *testing.T, client *fakeFCM) *channel.PushSender {
	t.Helper()
	s, err := channel.NewPushSender(context.Background(),
		channel.PushConfig{ProjectID: "acme", BatchConcurrency: 2},
		channel.WithFCMClient(client))
	require.NoError(t, err)
	return s
}

func TestPushSender_Single(t *testing.T) {
	t.Parallel()

	client := &fakeFCM{}
	s := newPushSender(t, client)
	assert.Equal(t, delivery.ChannelPush, s.Channel())

	msg := testMessage
	msg.To = []string{"tok1"}
	res := s.Send(context.Background(), msg)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "projects/acme/messages/tok1", res.MessageID)
	assert.Zero(t, res.SuccessCount, "counts are reported for batches only")

	require.Len(t, client.single, 1)
	sent := client.single[0]
	assert.Equal(t, "Invoice ready", sent.Notification.Title)
	assert.Equal(t, "n1_u1_1700000000000", sent.Data["tracking_id"])

	msg.To = []string{"bad-token"}
	res = s.Send(context.Background(), msg)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "NOT_FOUND")
}

func TestPushSender_Batch(t *testing.T) {
	t.Parallel()

	client := &fakeFCM{}
	s := newPushSender(t, client)

	msg := testMessage
	msg.To = []string{"tok1", "bad1", "tok2", " ", "bad2"}
	res := s.Send(context.Background(), msg)

	assert.True(t, res.Success, "one success is enough")
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 2, res.FailureCount)
	assert.Len(t, res.Errors, 2)
	assert.Equal(t, "projects/acme/messages/tok1", res.MessageID)
	require.Len(t, client.multicast, 1)
	assert.Equal(t, []string{"tok1", "bad1", "tok2", "bad2"}, client.multicast[0].Tokens, "blank tokens are not sent")
	assert.Equal(t, "n1_u1_1700000000000", client.multicast[0].Data["tracking_id"])

	msg.To = []string{"bad1", "bad2"}
	res = s.Send(context.Background(), msg)
	assert.False(t, res.Success)
	assert.Equal(t, 2, res.FailureCount)
	assert.Equal(t, "all 2 push tokens failed", res.Error)
}

func TestPushSender_BatchSplitsLargeTokenLists(t *testing.T) {
	t.Parallel()

	client := &fakeFCM{}
	s := newPushSender(t, client)

	msg := testMessage
	msg.To = make([]string, 0, 1201)
	for i := range 1201 {
		msg.To = append(msg.To, fmt.Sprintf("tok%d", i))
	}
	res := s.Send(context.Background(), msg)

	require.True(t, res.Success)
	assert.Equal(t, 1201, res.SuccessCount)
	assert.Len(t, client.multicast, 3)
}

func TestPushSender_BatchTransportError(t *testing.T) {
	t.Parallel()

	client := &fakeFCM{batchErr: errors.New("connection reset")}
	s := newPushSender(t, client)

	msg := testMessage
	msg.To = []string{"tok1", "tok2"}
	res := s.Send(context.Background(), msg)

	assert.False(t, res.Success)
	assert.Equal(t, 2, res.FailureCount)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "connection reset")
}

func TestPushSender_MissingCredentials(t *testing.T) {
	t.Parallel()

	s, err := channel.NewPushSender(context.Background(), channel.PushConfig{ProjectID: "acme"})
	require.NoError(t, err)
	res := s.Send(context.Background(), delivery.Message{To: []string{"tok"}})
	assert.False(t, res.Success)
	assert.Equal(t, channel.ErrMissingCredentials.Error(), res.Error)

	_, err = channel.NewPushSender(context.Background(), channel.PushConfig{CredentialsJSON: "{not json"})
	assert.ErrorIs(t, err, channel.ErrInvalidConfig)
}
