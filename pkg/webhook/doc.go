// Package webhook receives email delivery events from the email provider and
// hands them to a delivery.Reconciler.
//
// The endpoint accepts POST /webhooks/email with a JSON array of events:
//
//	[{"event":"delivered","tracking_id":"n1_u1_1700000000000","timestamp":1700000005}]
//
// and replies with {"success":true,"processed":N} where N is the number of
// events received. Individual events that are invalid or match no record
// are counted and logged by the reconciler but never fail the request.
//
// # Signatures
//
// When a signing secret is configured every request must carry
// X-Webhook-Signature and X-Webhook-Timestamp headers. The signature is
// hex(HMAC-SHA256(secret, timestamp + "." + body)) and the timestamp must
// fall inside the configured window. SignPayload produces matching headers
// for tests and for relays that forward provider events.
//
//	h := webhook.NewHandler(reconciler, webhook.WithConfig(cfg))
//	webhook.Mount(router, h)
package webhook
