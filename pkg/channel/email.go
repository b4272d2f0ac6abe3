package channel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mrz1836/postmark"

	"github.com/dmitrymomot/courier/pkg/delivery"
)

// PostmarkAPI is the subset of the Postmark client used by EmailSender.
type PostmarkAPI interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// EmailOption configures an EmailSender.
type EmailOption func(*EmailSender)

// WithPostmarkClient replaces the Postmark client.
func WithPostmarkClient(c PostmarkAPI) EmailOption {
	return func(s *EmailSender) {
		if c != nil {
			s.client = c
		}
	}
}

// EmailSender delivers messages through Postmark. Open and link tracking are
// enabled and the tracking id travels in the message metadata so delivery
// webhooks can be correlated.
type EmailSender struct {
	client PostmarkAPI
	cfg    EmailConfig
}

// NewEmailSender creates an email sender. Without a server token the sender
// fails every message with ErrMissingCredentials.
func NewEmailSender(cfg EmailConfig, opts ...EmailOption) *EmailSender {
	s := &EmailSender{cfg: cfg}
	if cfg.PostmarkServerToken != "" {
		s.client = postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Channel implements delivery.Sender.
func (s *EmailSender) Channel() delivery.Channel { return delivery.ChannelEmail }

// Send implements delivery.Sender.
func (s *EmailSender) Send(ctx context.Context, msg delivery.Message) delivery.SendResult {
	if s.client == nil {
		return delivery.Failed(ErrMissingCredentials)
	}
	if len(msg.To) == 0 || strings.TrimSpace(msg.To[0]) == "" {
		return delivery.Failed(ErrNoDestination)
	}

	html, err := Render(ctx, EmailLayout(s.cfg.ProductName, msg.Content.Title, NotificationBody(msg.Name, msg.Content)))
	if err != nil {
		return delivery.Failed(errors.Join(ErrRenderFailed, err))
	}

	email := postmark.Email{
		From:          s.cfg.SenderEmail,
		ReplyTo:       s.cfg.SupportEmail,
		To:            msg.To[0],
		Subject:       msg.Content.Title,
		Tag:           msg.Content.Type,
		HTMLBody:      html,
		TextBody:      PlainText(msg.Name, msg.Content),
		TrackOpens:    true,
		TrackLinks:    "HtmlAndText",
		MessageStream: s.cfg.MessageStream,
	}
	if msg.TrackingID != "" {
		email.Metadata = map[string]string{"tracking_id": msg.TrackingID}
	}

	resp, err := s.client.SendEmail(ctx, email)
	if err != nil {
		return delivery.Failed(err)
	}
	if resp.ErrorCode > 0 {
		return delivery.Failed(errors.Join(ErrProviderRejected,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message)))
	}
	return delivery.SendResult{Success: true, MessageID: resp.MessageID}
}
