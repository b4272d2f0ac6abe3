// Package mongostore implements the queue and delivery repositories on
// MongoDB with the v2 driver.
//
// Collections: notification_queue, delivery_records, recipients,
// notification_settings and notifications. Queue transitions are
// UpdateOne calls filtered on the current status, which makes claims and
// outcomes compare-and-swap operations. Call EnsureIndexes once at startup.
package mongostore
