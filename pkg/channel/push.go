package channel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"github.com/dmitrymomot/courier/pkg/delivery"
)

const fcmScope = "https://www.googleapis.com/auth/firebase.messaging"

// fcmMulticastLimit is the most tokens FCM accepts in one multicast call.
const fcmMulticastLimit = 500

// FCMAPI is the subset of the Firebase messaging client used by PushSender.
type FCMAPI interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// PushOption configures a PushSender.
type PushOption func(*PushSender)

// WithFCMClient replaces the Firebase messaging client.
func WithFCMClient(c FCMAPI) PushOption {
	return func(s *PushSender) {
		if c != nil {
			s.client = c
		}
	}
}

// PushSender delivers push notifications through Firebase Cloud Messaging.
// A message with several device tokens is sent as multicast batches.
type PushSender struct {
	client      FCMAPI
	concurrency int
}

// NewPushSender creates a push sender. Without service account credentials
// the sender fails every message with ErrMissingCredentials.
func NewPushSender(ctx context.Context, cfg PushConfig, opts ...PushOption) (*PushSender, error) {
	s := &PushSender{concurrency: cfg.BatchConcurrency}
	if s.concurrency <= 0 {
		s.concurrency = 10
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client != nil {
		return s, nil
	}

	data := []byte(cfg.CredentialsJSON)
	if len(data) == 0 && cfg.CredentialsFile != "" {
		var err error
		if data, err = os.ReadFile(cfg.CredentialsFile); err != nil {
			return nil, errors.Join(ErrInvalidConfig, err)
		}
	}
	if len(data) == 0 {
		return s, nil
	}

	creds, err := google.CredentialsFromJSON(ctx, data, fcmScope)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	projectID := cfg.ProjectID
	if projectID == "" {
		projectID = creds.ProjectID
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, option.WithCredentials(creds))
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	s.client = client
	return s, nil
}

// Channel implements delivery.Sender.
func (s *PushSender) Channel() delivery.Channel { return delivery.ChannelPush }

// Send implements delivery.Sender. With several tokens the result carries
// per-token counts and is successful if at least one token succeeded.
func (s *PushSender) Send(ctx context.Context, msg delivery.Message) delivery.SendResult {
	if s.client == nil {
		return delivery.Failed(ErrMissingCredentials)
	}

	tokens := make([]string, 0, len(msg.To))
	for _, t := range msg.To {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	switch len(tokens) {
	case 0:
		return delivery.Failed(ErrNoDestination)
	case 1:
		id, err := s.client.Send(ctx, &messaging.Message{
			Token:        tokens[0],
			Notification: pushNotification(msg),
			Data:         pushData(msg),
		})
		if err != nil {
			return delivery.Failed(errors.Join(ErrProviderRejected, err))
		}
		return delivery.SendResult{Success: true, MessageID: id}
	}
	return s.sendBatch(ctx, tokens, msg)
}

func (s *PushSender) sendBatch(ctx context.Context, tokens []string, msg delivery.Message) delivery.SendResult {
	chunks := make([][]string, 0, len(tokens)/fcmMulticastLimit+1)
	for start := 0; start < len(tokens); start += fcmMulticastLimit {
		chunks = append(chunks, tokens[start:min(start+fcmMulticastLimit, len(tokens))])
	}

	responses := make([]*messaging.BatchResponse, len(chunks))
	errs := make([]error, len(chunks))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			responses[i], errs[i] = s.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
				Tokens:       chunk,
				Notification: pushNotification(msg),
				Data:         pushData(msg),
			})
			return nil
		})
	}
	_ = g.Wait()

	var res delivery.SendResult
	offset := 0
	for i, chunk := range chunks {
		if errs[i] != nil || responses[i] == nil {
			res.FailureCount += len(chunk)
			res.Errors = append(res.Errors, fmt.Sprintf("tokens %d-%d: %v", offset, offset+len(chunk)-1, errs[i]))
			offset += len(chunk)
			continue
		}
		for j, r := range responses[i].Responses {
			switch {
			case r == nil:
				continue
			case r.Success:
				res.SuccessCount++
				if res.MessageID == "" {
					res.MessageID = r.MessageID
				}
			default:
				res.FailureCount++
				res.Errors = append(res.Errors, fmt.Sprintf("token %d: %v", offset+j, r.Error))
			}
		}
		offset += len(chunk)
	}
	res.Success = res.SuccessCount > 0
	if !res.Success {
		res.Error = fmt.Sprintf("all %d push tokens failed", len(tokens))
	}
	return res
}

func pushNotification(msg delivery.Message) *messaging.Notification {
	return &messaging.Notification{Title: msg.Content.Title, Body: msg.Content.Body}
}

func pushData(msg delivery.Message) map[string]string {
	data := map[string]string{"type": msg.Content.Type}
	if msg.TrackingID != "" {
		data["tracking_id"] = msg.TrackingID
	}
	if msg.Content.ActionURL != "" {
		data["action_url"] = msg.Content.ActionURL
	}
	if msg.Content.ActionLabel != "" {
		data["action_label"] = msg.Content.ActionLabel
	}
	return data
}
