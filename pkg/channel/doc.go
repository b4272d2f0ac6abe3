// Package channel implements delivery.Sender for the three external
// channels: email through Postmark, SMS through AWS SNS and push through the
// Firebase Admin SDK messaging client. Push messages with several device
// tokens go out as multicast batches of up to 500 tokens.
//
// Senders are I/O adapters only. They report every outcome in a
// delivery.SendResult and never return errors to the caller; the dispatcher
// owns delivery records and retries.
//
// A sender built without provider credentials stays usable: every Send
// fails immediately with ErrMissingCredentials and makes no network call.
//
//	email := channel.NewEmailSender(cfg.Email)
//	sms, err := channel.NewSMSSender(ctx, cfg.SMS)
//	push, err := channel.NewPushSender(ctx, cfg.Push)
//
//	dispatcher := delivery.NewDispatcher(resolver, recorder,
//	    []delivery.Sender{email, sms, push})
package channel
