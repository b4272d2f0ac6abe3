package delivery

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements Directory and RecordRepository in memory for
// tests and local development.
type MemoryStorage struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	settings map[string]Settings
	records  map[uuid.UUID]*Record
	// order keeps insertion order so tracking id lookups return the first match.
	order []uuid.UUID
}

// NewMemoryStorage returns an empty store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		profiles: make(map[string]Profile),
		settings: make(map[string]Settings),
		records:  make(map[uuid.UUID]*Record),
	}
}

// PutProfile stores or replaces a recipient profile.
func (ms *MemoryStorage) PutProfile(p Profile) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.profiles[p.ID] = p
}

// PutSettings stores or replaces a recipient's settings.
func (ms *MemoryStorage) PutSettings(recipientID string, s Settings) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.settings[recipientID] = s
}

// GetProfile implements Directory.
func (ms *MemoryStorage) GetProfile(_ context.Context, recipientID string) (*Profile, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	p, ok := ms.profiles[recipientID]
	if !ok {
		return nil, ErrRecipientNotFound
	}
	return &p, nil
}

// GetSettings implements Directory.
func (ms *MemoryStorage) GetSettings(_ context.Context, recipientID string) (*Settings, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	s, ok := ms.settings[recipientID]
	if !ok {
		return nil, ErrSettingsNotFound
	}
	return &s, nil
}

// CreateRecord implements RecordRepository.
func (ms *MemoryStorage) CreateRecord(_ context.Context, rec *Record) error {
	if rec == nil {
		return ErrInvalidRecord
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.records[rec.ID]; exists {
		return ErrRecordExists
	}
	ms.records[rec.ID] = cloneRecord(rec)
	ms.order = append(ms.order, rec.ID)
	return nil
}

// UpdateRecord implements RecordRepository.
func (ms *MemoryStorage) UpdateRecord(_ context.Context, id uuid.UUID, patch Patch) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	rec, ok := ms.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	if patch.Status != nil {
		rec.Status = *patch.Status
	}
	if patch.FailureReason != nil {
		reason := *patch.FailureReason
		rec.FailureReason = &reason
	}
	if patch.RetryCount != nil {
		rec.RetryCount = *patch.RetryCount
	}
	if patch.SentAt != nil {
		t := *patch.SentAt
		rec.SentAt = &t
	}
	if patch.DeliveredAt != nil {
		t := *patch.DeliveredAt
		rec.DeliveredAt = &t
	}
	if len(patch.Metadata) > 0 {
		if rec.Metadata == nil {
			rec.Metadata = make(map[string]any, len(patch.Metadata))
		}
		maps.Copy(rec.Metadata, patch.Metadata)
	}
	if !patch.UpdatedAt.IsZero() {
		rec.UpdatedAt = patch.UpdatedAt
	}
	return nil
}

// FindRecordByTrackingID implements RecordRepository.
func (ms *MemoryStorage) FindRecordByTrackingID(_ context.Context, trackingID string, ch Channel) (*Record, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	for _, id := range ms.order {
		rec := ms.records[id]
		if rec.TrackingID == trackingID && rec.Channel == ch {
			return cloneRecord(rec), nil
		}
	}
	return nil, ErrRecordNotFound
}

// GetRecord returns a copy of the record with id.
func (ms *MemoryStorage) GetRecord(_ context.Context, id uuid.UUID) (*Record, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	rec, ok := ms.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return cloneRecord(rec), nil
}

// ListRecords returns copies of all records of a (notification, recipient)
// pair in insertion order.
func (ms *MemoryStorage) ListRecords(_ context.Context, notificationID, recipientID string) ([]Record, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]Record, 0)
	for _, id := range ms.order {
		rec := ms.records[id]
		if rec.NotificationID == notificationID && rec.RecipientID == recipientID {
			out = append(out, *cloneRecord(rec))
		}
	}
	return out, nil
}

// CountRecords returns the number of stored records.
func (ms *MemoryStorage) CountRecords() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.records)
}

// DeleteRecordsCreatedBefore removes up to limit records created before cutoff.
func (ms *MemoryStorage) DeleteRecordsCreatedBefore(_ context.Context, cutoff time.Time, limit int) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	deleted := 0
	ms.order = slices.DeleteFunc(ms.order, func(id uuid.UUID) bool {
		if deleted >= limit {
			return false
		}
		if ms.records[id].CreatedAt.Before(cutoff) {
			delete(ms.records, id)
			deleted++
			return true
		}
		return false
	})
	return deleted, nil
}

func cloneRecord(r *Record) *Record {
	c := *r
	c.Metadata = maps.Clone(r.Metadata)
	if r.FailureReason != nil {
		v := *r.FailureReason
		c.FailureReason = &v
	}
	if r.SentAt != nil {
		v := *r.SentAt
		c.SentAt = &v
	}
	if r.DeliveredAt != nil {
		v := *r.DeliveredAt
		c.DeliveredAt = &v
	}
	return &c
}
