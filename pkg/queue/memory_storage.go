package queue

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/courier/pkg/delivery"
)

// MemoryStorage implements the queue repositories in memory for tests and
// local development. It also tracks notification expiry for the sweeper.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*Entry
	// byStatus indexes entry ids per status.
	byStatus map[Status]map[uuid.UUID]struct{}
	// notifications maps notification id to its expiry.
	notifications map[string]*time.Time
}

// NewMemoryStorage returns an empty store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		entries:       make(map[uuid.UUID]*Entry),
		byStatus:      make(map[Status]map[uuid.UUID]struct{}),
		notifications: make(map[string]*time.Time),
	}
}

// CreateEntry implements EnqueuerRepository.
func (ms *MemoryStorage) CreateEntry(_ context.Context, entry *Entry) error {
	if entry == nil {
		return ErrEntryNotFound
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.entries[entry.ID]; exists {
		return ErrEntryExists
	}
	c := cloneEntry(entry)
	ms.entries[c.ID] = c
	ms.index(c.ID, c.Status)
	return nil
}

// ListDue implements ProcessorRepository.
func (ms *MemoryStorage) ListDue(_ context.Context, now time.Time, limit int) ([]Entry, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	due := make([]Entry, 0, limit)
	for id := range ms.byStatus[StatusPending] {
		if e := ms.entries[id]; e.Due(now) {
			due = append(due, *cloneEntry(e))
		}
	}
	slices.SortFunc(due, func(a, b Entry) int {
		return cmp.Or(a.ScheduledFor.Compare(b.ScheduledFor), a.CreatedAt.Compare(b.CreatedAt))
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// ClaimEntry implements ProcessorRepository.
func (ms *MemoryStorage) ClaimEntry(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	e, ok := ms.entries[id]
	if !ok {
		return false, ErrEntryNotFound
	}
	if e.Status != StatusPending {
		return false, nil
	}
	ms.move(e, StatusProcessing)
	e.ProcessingStartedAt = &now
	e.UpdatedAt = now
	return true, nil
}

// CompleteEntry implements ProcessorRepository.
func (ms *MemoryStorage) CompleteEntry(_ context.Context, id uuid.UUID, result delivery.DispatchResult, now time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	e, err := ms.processing(id)
	if err != nil {
		return err
	}
	ms.move(e, StatusCompleted)
	e.Result = &result
	e.ProcessingStartedAt = nil
	e.UpdatedAt = now
	return nil
}

// RetryEntry implements ProcessorRepository.
func (ms *MemoryStorage) RetryEntry(_ context.Context, id uuid.UUID, retry Retry, now time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	e, err := ms.processing(id)
	if err != nil {
		return err
	}
	ms.move(e, StatusPending)
	ms.applyRetry(e, retry, now)
	e.ScheduledFor = retry.ScheduledFor
	return nil
}

// FailEntry implements ProcessorRepository.
func (ms *MemoryStorage) FailEntry(_ context.Context, id uuid.UUID, retry Retry, now time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	e, err := ms.processing(id)
	if err != nil {
		return err
	}
	ms.move(e, StatusFailed)
	ms.applyRetry(e, retry, now)
	return nil
}

// ReleaseStale implements ProcessorRepository.
func (ms *MemoryStorage) ReleaseStale(_ context.Context, cutoff, now time.Time) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	released := 0
	for id := range ms.byStatus[StatusProcessing] {
		e := ms.entries[id]
		if e.ProcessingStartedAt == nil || e.ProcessingStartedAt.Before(cutoff) {
			ms.move(e, StatusPending)
			msg := StaleError
			e.LastError = &msg
			e.ProcessingStartedAt = nil
			e.UpdatedAt = now
			released++
		}
	}
	return released, nil
}

// DeleteTerminalEntriesBefore implements EntrySweeper.
func (ms *MemoryStorage) DeleteTerminalEntriesBefore(_ context.Context, cutoff time.Time, limit int) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	deleted := 0
	for _, status := range []Status{StatusCompleted, StatusFailed} {
		for id := range ms.byStatus[status] {
			if deleted >= limit {
				return deleted, nil
			}
			if ms.entries[id].UpdatedAt.Before(cutoff) {
				delete(ms.byStatus[status], id)
				delete(ms.entries, id)
				deleted++
			}
		}
	}
	return deleted, nil
}

// SaveNotification records a notification and its optional expiry.
func (ms *MemoryStorage) SaveNotification(_ context.Context, id, _ string, expiresAt *time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.notifications[id] = expiresAt
	return nil
}

// HasNotification reports whether the notification is still stored.
func (ms *MemoryStorage) HasNotification(id string) bool {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	_, ok := ms.notifications[id]
	return ok
}

// DeleteExpiredNotifications implements NotificationExpirer.
func (ms *MemoryStorage) DeleteExpiredNotifications(_ context.Context, now time.Time, limit int) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	deleted := 0
	for id, exp := range ms.notifications {
		if deleted >= limit {
			break
		}
		if exp != nil && exp.Before(now) {
			delete(ms.notifications, id)
			deleted++
		}
	}
	return deleted, nil
}

// GetEntry returns a copy of the entry with id.
func (ms *MemoryStorage) GetEntry(_ context.Context, id uuid.UUID) (*Entry, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	e, ok := ms.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return cloneEntry(e), nil
}

// Count returns the number of entries in status.
func (ms *MemoryStorage) Count(status Status) int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.byStatus[status])
}

func (ms *MemoryStorage) processing(id uuid.UUID) (*Entry, error) {
	e, ok := ms.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	if e.Status != StatusProcessing {
		return nil, ErrEntryNotProcessing
	}
	return e, nil
}

func (ms *MemoryStorage) applyRetry(e *Entry, retry Retry, now time.Time) {
	e.Attempts = retry.Attempts
	lastErr := retry.LastError
	e.LastError = &lastErr
	e.Result = retry.Result
	e.ProcessingStartedAt = nil
	e.UpdatedAt = now
}

func (ms *MemoryStorage) index(id uuid.UUID, status Status) {
	set, ok := ms.byStatus[status]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		ms.byStatus[status] = set
	}
	set[id] = struct{}{}
}

func (ms *MemoryStorage) move(e *Entry, to Status) {
	delete(ms.byStatus[e.Status], e.ID)
	e.Status = to
	ms.index(e.ID, to)
}

func cloneEntry(e *Entry) *Entry {
	c := *e
	if e.ProcessingStartedAt != nil {
		t := *e.ProcessingStartedAt
		c.ProcessingStartedAt = &t
	}
	if e.LastError != nil {
		s := *e.LastError
		c.LastError = &s
	}
	if e.Result != nil {
		r := *e.Result
		c.Result = &r
	}
	return &c
}
