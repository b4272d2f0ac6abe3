package logger

import (
	"log/slog"
	"time"
)

// Error records err under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// NotificationID records the upstream notification identifier.
func NotificationID(id string) slog.Attr {
	return slog.String("notification_id", id)
}

// RecipientID records the recipient identifier.
func RecipientID(id string) slog.Attr {
	return slog.String("recipient_id", id)
}

// EntryID records the queue entry identifier.
func EntryID(id string) slog.Attr {
	return slog.String("entry_id", id)
}

// RecordID records the delivery record identifier.
func RecordID(id string) slog.Attr {
	return slog.String("record_id", id)
}

// Channel records the delivery channel name.
func Channel(name string) slog.Attr {
	return slog.String("channel", name)
}

// TrackingID records the correlation token shared by a channel attempt and
// later provider events. Empty ids produce an empty Attr.
func TrackingID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("tracking_id", id)
}

// Attempt records the attempt number and its ceiling as a group.
func Attempt(attempt, maxAttempts int) slog.Attr {
	return slog.Group("attempt", slog.Int("n", attempt), slog.Int("max", maxAttempts))
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records the provider event type under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}
