package delivery

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/google/uuid"
)

// RecordRepository persists delivery records.
type RecordRepository interface {
	CreateRecord(ctx context.Context, rec *Record) error
	// UpdateRecord applies patch to the record or returns ErrRecordNotFound.
	UpdateRecord(ctx context.Context, id uuid.UUID, patch Patch) error
	// FindRecordByTrackingID returns the first record of channel carrying
	// trackingID, or ErrRecordNotFound.
	FindRecordByTrackingID(ctx context.Context, trackingID string, channel Channel) (*Record, error)
}

// Recorder is the only writer of delivery records.
type Recorder struct {
	repo RecordRepository
	now  func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderClock overrides the time source.
func WithRecorderClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRecorder creates a recorder backed by repo.
func NewRecorder(repo RecordRepository, opts ...RecorderOption) *Recorder {
	r := &Recorder{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create inserts a record. A "trackingId" metadata value also becomes the
// record's TrackingID.
func (r *Recorder) Create(ctx context.Context, notificationID, recipientID string, ch Channel, status Status, metadata map[string]any) (uuid.UUID, error) {
	if notificationID == "" || recipientID == "" || ch == "" {
		return uuid.Nil, ErrInvalidRecord
	}

	now := r.now().UTC()
	rec := &Record{
		ID:             uuid.New(),
		NotificationID: notificationID,
		RecipientID:    recipientID,
		Channel:        ch,
		Status:         status,
		Metadata:       make(map[string]any, len(metadata)),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	maps.Copy(rec.Metadata, metadata)
	if tid, ok := metadata[MetaTrackingID].(string); ok {
		rec.TrackingID = tid
	}
	if status == StatusSent {
		rec.SentAt = &now
	}

	if err := r.repo.CreateRecord(ctx, rec); err != nil {
		return uuid.Nil, errors.Join(ErrFailedToCreateRecord, err)
	}
	return rec.ID, nil
}

// Update applies patch, stamping UpdatedAt and, when the patch moves the
// record into sent, SentAt. The tracking id cannot be changed.
func (r *Recorder) Update(ctx context.Context, id uuid.UUID, patch Patch) error {
	now := r.now().UTC()
	patch.UpdatedAt = now
	if patch.Status != nil && *patch.Status == StatusSent && patch.SentAt == nil {
		patch.SentAt = &now
	}
	if _, ok := patch.Metadata[MetaTrackingID]; ok {
		patch.Metadata = maps.Clone(patch.Metadata)
		delete(patch.Metadata, MetaTrackingID)
	}

	if err := r.repo.UpdateRecord(ctx, id, patch); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return err
		}
		return errors.Join(ErrFailedToUpdateRecord, err)
	}
	return nil
}

// FindByTrackingID returns the record of channel that carries trackingID.
func (r *Recorder) FindByTrackingID(ctx context.Context, trackingID string, ch Channel) (*Record, error) {
	if trackingID == "" {
		return nil, ErrMissingTrackingID
	}
	rec, err := r.repo.FindRecordByTrackingID(ctx, trackingID, ch)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, err
		}
		return nil, errors.Join(ErrFailedToFindRecord, err)
	}
	return rec, nil
}

// StatusPtr returns a pointer to s, for building patches.
func StatusPtr(s Status) *Status { return &s }
