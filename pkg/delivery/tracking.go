package delivery

import (
	"fmt"
	"time"
)

// TrackingIDFunc produces the correlation token shared by every channel
// attempt of one dispatch. The value is opaque to the rest of the system.
type TrackingIDFunc func(notificationID, recipientID string, now time.Time) string

// DefaultTrackingID formats {notificationID}_{recipientID}_{epochMillis}.
func DefaultTrackingID(notificationID, recipientID string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%d", notificationID, recipientID, now.UnixMilli())
}
