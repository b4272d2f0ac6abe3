// Package queue persists pending notification deliveries and drives them to
// a terminal state.
//
// An Entry is one notification awaiting delivery to one recipient. Entries
// move through
//
//	pending --claim--> processing --dispatch--> completed | pending (retry) | failed
//
// and are written only through small role interfaces (EnqueuerRepository,
// ProcessorRepository, EntrySweeper) so the same logic runs on the in-memory,
// Postgres and MongoDB stores.
//
// # Components
//
//   - Enqueuer validates the payload and stores pending entries, one per
//     recipient.
//   - Processor picks up to BatchSize due entries oldest-due first, claims
//     each with a compare-and-swap on its status, dispatches them with
//     bounded concurrency and applies the retry policy: success completes the
//     entry, otherwise Attempts grows by one and the entry is either
//     rescheduled after Backoff(Attempts) or failed once MaxAttempts is
//     reached. A panic inside dispatch takes the same path. An optional
//     Locker serialises ticks across instances.
//   - Sweeper deletes expired notifications, delivery records older than the
//     record retention and terminal entries older than the entry retention in
//     capped batches.
//   - Scheduler runs periodic jobs (Every, DailyAt) without letting a job
//     overlap itself.
//
// # Usage
//
//	p, err := queue.NewProcessor(store, dispatcher, queue.WithProcessorConfig(cfg))
//	if err != nil {
//		return err
//	}
//	s := queue.NewScheduler()
//	_ = s.AddJob("process_delivery_queue", queue.Every(cfg.TickInterval), func(ctx context.Context) error {
//		_, err := p.ProcessDue(ctx)
//		return err
//	})
//	return s.Start(ctx)
package queue
