package channel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/dmitrymomot/courier/pkg/delivery"
)

// SNSAPI is the subset of the SNS client used by SMSSender.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// smsMaxLength keeps messages inside SNS's single-publish limit.
const smsMaxLength = 1600

// SMSOption configures an SMSSender.
type SMSOption func(*SMSSender)

// WithSNSClient replaces the SNS client.
func WithSNSClient(c SNSAPI) SMSOption {
	return func(s *SMSSender) {
		if c != nil {
			s.client = c
		}
	}
}

// SMSSender delivers text messages through AWS SNS. SNS has no per-message
// status callback, so the tracking id is attached as a message attribute only.
type SMSSender struct {
	client SNSAPI
	cfg    SMSConfig
}

// NewSMSSender creates an SMS sender. Without static AWS credentials the
// sender fails every message with ErrMissingCredentials.
func NewSMSSender(ctx context.Context, cfg SMSConfig, opts ...SMSOption) (*SMSSender, error) {
	s := &SMSSender{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.client != nil || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return s, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	s.client = sns.NewFromConfig(awsCfg)
	return s, nil
}

// Channel implements delivery.Sender.
func (s *SMSSender) Channel() delivery.Channel { return delivery.ChannelSMS }

// Send implements delivery.Sender.
func (s *SMSSender) Send(ctx context.Context, msg delivery.Message) delivery.SendResult {
	if s.client == nil {
		return delivery.Failed(ErrMissingCredentials)
	}
	if len(msg.To) == 0 || strings.TrimSpace(msg.To[0]) == "" {
		return delivery.Failed(ErrNoDestination)
	}

	out, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(normalizePhone(msg.To[0])),
		Message:           aws.String(SMSText(msg.Content)),
		MessageAttributes: s.attributes(msg),
	})
	if err != nil {
		return delivery.Failed(fmt.Errorf("sns publish: %w", err))
	}
	if out == nil || aws.ToString(out.MessageId) == "" {
		return delivery.Failed(errors.Join(ErrProviderRejected, errors.New("sns returned no message id")))
	}
	return delivery.SendResult{Success: true, MessageID: aws.ToString(out.MessageId)}
}

func (s *SMSSender) attributes(msg delivery.Message) map[string]types.MessageAttributeValue {
	attrs := map[string]types.MessageAttributeValue{}
	if s.cfg.SMSType != "" {
		attrs["AWS.SNS.SMS.SMSType"] = stringAttr(s.cfg.SMSType)
	}
	if s.cfg.SenderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = stringAttr(s.cfg.SenderID)
	}
	if msg.TrackingID != "" {
		attrs["tracking_id"] = stringAttr(msg.TrackingID)
	}
	return attrs
}

func stringAttr(v string) types.MessageAttributeValue {
	return types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
}

// SMSText renders the SMS body: the title, the message and the action link.
func SMSText(c delivery.Content) string {
	parts := make([]string, 0, 3)
	if c.Title != "" {
		parts = append(parts, c.Title)
	}
	if body := strings.TrimSpace(c.Body); body != "" {
		parts = append(parts, body)
	}
	if c.ActionURL != "" {
		parts = append(parts, c.ActionURL)
	}
	text := strings.Join(parts, "\n")
	if r := []rune(text); len(r) > smsMaxLength {
		text = string(r[:smsMaxLength])
	}
	return text
}

// normalizePhone strips formatting characters accepted by the contact
// validator; SNS expects E.164.
func normalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
}
