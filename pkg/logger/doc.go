// Package logger builds the *slog.Logger shared by every courier component.
//
// New returns a JSON or text logger wrapped in a handler decorator that pulls
// request-scoped values (request id, worker id) out of context.Context on each
// record. Attribute helpers in attr.go keep key names consistent between the
// queue processor, the dispatcher and the webhook reconciler, so log queries
// can join a queue entry, its delivery records and later provider events:
//
//	log := logger.New(logger.WithEnvironment(cfg.Env, "courier"))
//	log.InfoContext(ctx, "delivery attempt finished",
//	    logger.EntryID(entry.ID),
//	    logger.Channel("email"),
//	    logger.TrackingID(trackingID),
//	)
//
// Error returns an empty attribute for a nil error, so callers can pass the
// result of an operation without checking it first.
package logger
