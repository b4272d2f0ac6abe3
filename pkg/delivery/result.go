package delivery

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NotAttempted is the error text of a channel that was skipped.
const NotAttempted = "Not attempted"

// ChannelResult is the outcome of one channel within a dispatch.
type ChannelResult struct {
	Attempted    bool      `json:"attempted"`
	Success      bool      `json:"success"`
	RecordID     uuid.UUID `json:"record_id,omitzero"`
	MessageID    string    `json:"message_id,omitempty"`
	Error        string    `json:"error,omitempty"`
	SuccessCount int       `json:"success_count,omitempty"`
	FailureCount int       `json:"failure_count,omitempty"`
	Errors       []string  `json:"errors,omitempty"`
}

func notAttempted() ChannelResult {
	return ChannelResult{Error: NotAttempted}
}

// DispatchResult aggregates the three channel outcomes of one dispatch.
type DispatchResult struct {
	Email      ChannelResult `json:"email"`
	SMS        ChannelResult `json:"sms"`
	Push       ChannelResult `json:"push"`
	TrackingID string        `json:"tracking_id,omitempty"`
	// Skipped is set when contact or settings could not be loaded.
	Skipped    bool   `json:"skipped,omitempty"`
	SkipReason string `json:"skip_reason,omitempty"`
}

// Succeeded reports whether at least one channel succeeded.
func (r DispatchResult) Succeeded() bool {
	return r.Email.Success || r.SMS.Success || r.Push.Success
}

// Get returns the result of ch.
func (r DispatchResult) Get(ch Channel) ChannelResult {
	switch ch {
	case ChannelEmail:
		return r.Email
	case ChannelSMS:
		return r.SMS
	case ChannelPush:
		return r.Push
	default:
		return notAttempted()
	}
}

func (r *DispatchResult) set(ch Channel, res ChannelResult) {
	switch ch {
	case ChannelEmail:
		r.Email = res
	case ChannelSMS:
		r.SMS = res
	case ChannelPush:
		r.Push = res
	}
}

// FailureSummary describes why no channel succeeded, for use as a queue
// entry's last error.
func (r DispatchResult) FailureSummary() string {
	if r.Skipped {
		return "recipient unavailable: " + r.SkipReason
	}
	parts := make([]string, 0, 3)
	for _, ch := range dispatchChannels {
		res := r.Get(ch)
		if res.Success {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", ch, res.Error))
	}
	return "all channels failed: " + strings.Join(parts, "; ")
}
