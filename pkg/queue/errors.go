package queue

import "errors"

var (
	// ErrRepositoryNil is returned when a nil repository is provided.
	ErrRepositoryNil = errors.New("repository cannot be nil")

	// ErrDispatcherNil is returned when a processor is built without a dispatcher.
	ErrDispatcherNil = errors.New("dispatcher cannot be nil")

	// ErrEntryNotFound is returned when an entry does not exist.
	ErrEntryNotFound = errors.New("queue entry not found")

	// ErrEntryExists is returned when an entry with the same id is already stored.
	ErrEntryExists = errors.New("queue entry already exists")

	// ErrEntryNotProcessing is returned when an outcome is written for an entry
	// that is not claimed.
	ErrEntryNotProcessing = errors.New("queue entry is not in processing state")

	// ErrInvalidPayload is returned when the notification payload fails validation.
	ErrInvalidPayload = errors.New("invalid notification payload")

	// ErrMissingNotificationID is returned when enqueueing without a notification id.
	ErrMissingNotificationID = errors.New("notification id is required")

	// ErrNoRecipients is returned when a batch enqueue has no recipients.
	ErrNoRecipients = errors.New("no recipients to enqueue")

	// ErrFailedToCreateEntry is returned when the entry cannot be stored.
	ErrFailedToCreateEntry = errors.New("failed to create queue entry")

	// ErrFailedToListDue is returned when due entries cannot be fetched.
	ErrFailedToListDue = errors.New("failed to list due queue entries")

	// ErrFailedToAcquireLease is returned when the processing lease check fails.
	ErrFailedToAcquireLease = errors.New("failed to acquire processing lease")

	// ErrJobAlreadyRegistered is returned when a job name is registered twice.
	ErrJobAlreadyRegistered = errors.New("job already registered")

	// ErrSchedulerNotConfigured is returned when the scheduler has no jobs.
	ErrSchedulerNotConfigured = errors.New("scheduler has no registered jobs")
)

// StaleError is stored on entries released after a processor crash.
const StaleError = "processing interrupted: entry released after stale timeout"
