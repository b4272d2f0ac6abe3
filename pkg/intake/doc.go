// Package intake consumes notification.created events from RabbitMQ and
// enqueues one delivery entry per recipient.
//
// Message body:
//
//	{
//	  "notification_id": "n1",
//	  "recipient_ids": ["u1", "u2"],
//	  "payload": {"title": "...", "message": "...", "type": "billing"},
//	  "max_attempts": 3,
//	  "delay_seconds": 0,
//	  "expires_at": "2025-01-01T00:00:00Z"
//	}
//
// Messages that fail validation are rejected without requeue. Storage
// failures are requeued; entry ids are derived from (notification,
// recipient) so a redelivered message does not create duplicates.
package intake
