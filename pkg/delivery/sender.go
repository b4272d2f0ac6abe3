package delivery

import "context"

// Sender delivers one message through one external channel. Implementations
// report failures in SendResult and never touch queue entries or records.
type Sender interface {
	Channel() Channel
	Send(ctx context.Context, msg Message) SendResult
}

// Content is the channel-neutral body of a message.
type Content struct {
	Title       string
	Body        string
	Type        string
	ActionURL   string
	ActionLabel string
}

// Message is a single send request. To holds one address for email and SMS
// and one or more device tokens for push.
type Message struct {
	To         []string
	Name       string
	Content    Content
	TrackingID string
}

// SendResult is what a provider call produced. SuccessCount, FailureCount and
// Errors are filled by batch sends only.
type SendResult struct {
	Success      bool
	MessageID    string
	Error        string
	SuccessCount int
	FailureCount int
	Errors       []string
}

// Failed builds an unsuccessful result.
func Failed(err error) SendResult {
	return SendResult{Error: err.Error()}
}
