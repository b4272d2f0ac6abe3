// Package delivery fans a notification out to its recipient's channels and
// keeps the per-channel audit trail.
//
// The pieces, leaf to root:
//
//   - Sender is the uniform capability of a delivery channel; package channel
//     provides the email, SMS and push implementations.
//   - ContactResolver reads a recipient from a Directory, drops invalid
//     destinations and falls back to DefaultSettings when no preferences are
//     stored.
//   - Recorder creates and patches Record rows through a RecordRepository.
//     It stamps UpdatedAt on every write and SentAt when a record moves into
//     the sent state.
//   - Dispatcher resolves contact and settings concurrently, generates one
//     tracking id per dispatch and runs the eligible channels in parallel,
//     each bounded by a send timeout. A channel that fails never aborts the
//     others; Dispatch reports all outcomes in a DispatchResult.
//   - Reconciler applies provider delivery events (delivered, bounce,
//     dropped, open, click) to the email record matching the event's
//     tracking id. Unknown, invalid and unmatched events are counted and
//     dropped.
//
// MemoryStorage implements Directory and RecordRepository for tests and
// local runs; Postgres and MongoDB implementations live under pkg/storage.
package delivery
