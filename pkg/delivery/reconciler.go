package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrymomot/courier/pkg/logger"
	"github.com/dmitrymomot/courier/pkg/metrics"
)

// EventType is a provider delivery event kind.
type EventType string

const (
	EventDelivered EventType = "delivered"
	EventBounce    EventType = "bounce"
	EventDropped   EventType = "dropped"
	EventOpen      EventType = "open"
	EventClick     EventType = "click"
)

// Event is one inbound provider delivery event. Only TrackingID is required;
// unknown event types are ignored.
type Event struct {
	Event      EventType `json:"event"`
	TrackingID string    `json:"tracking_id" validate:"required"`
	Email      string    `json:"email,omitempty"`
	Timestamp  Timestamp `json:"timestamp,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	URL        string    `json:"url,omitempty"`
}

// Time returns the event time, falling back to now.
func (e Event) Time(now time.Time) time.Time {
	if e.Timestamp > 0 {
		return time.Unix(int64(e.Timestamp), 0).UTC()
	}
	return now.UTC()
}

// Timestamp is an event time in unix seconds. It decodes from integers,
// floats, numeric strings and RFC 3339 strings. Anything else decodes as
// zero, which means "now".
type Timestamp int64

// UnmarshalJSON never fails so a malformed time does not drop the event.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	*t = 0
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}
	if s[0] == '"' {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return nil
		}
		s = strings.TrimSpace(unq)
		if at, err := time.Parse(time.RFC3339Nano, s); err == nil {
			*t = Timestamp(at.Unix())
			return nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*t = Timestamp(max(n, 0))
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f < math.MaxInt64 {
		*t = Timestamp(f)
	}
	return nil
}

// Summary counts what happened to a batch of events.
type Summary struct {
	Received  int `json:"received"`
	Applied   int `json:"applied"`
	Ignored   int `json:"ignored"`
	Unmatched int `json:"unmatched"`
	Invalid   int `json:"invalid"`
	Failed    int `json:"failed"`
}

// Reconciler applies provider events to email delivery records.
type Reconciler struct {
	recorder *Recorder
	validate *validator.Validate
	now      func() time.Time
	logger   *slog.Logger
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithReconcilerLogger sets the logger.
func WithReconcilerLogger(l *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithReconcilerClock overrides the time source used for events without a timestamp.
func WithReconcilerClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// NewReconciler creates a reconciler writing through recorder.
func NewReconciler(recorder *Recorder, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		recorder: recorder,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HandleEvents applies every event independently. A failing, invalid or
// unmatched event never stops the rest of the batch.
func (r *Reconciler) HandleEvents(ctx context.Context, events []Event) Summary {
	sum := Summary{Received: len(events)}
	for _, ev := range events {
		outcome := r.handle(ctx, ev)
		switch outcome {
		case outcomeApplied:
			sum.Applied++
		case outcomeIgnored:
			sum.Ignored++
		case outcomeUnmatched:
			sum.Unmatched++
		case outcomeInvalid:
			sum.Invalid++
		default:
			sum.Failed++
		}
		metrics.IncWebhookEvent(string(ev.Event), string(outcome))
	}
	return sum
}

type eventOutcome string

const (
	outcomeApplied   eventOutcome = "applied"
	outcomeIgnored   eventOutcome = "ignored"
	outcomeUnmatched eventOutcome = "unmatched"
	outcomeInvalid   eventOutcome = "invalid"
	outcomeFailed    eventOutcome = "failed"
)

func (r *Reconciler) handle(ctx context.Context, ev Event) (outcome eventOutcome) {
	log := r.logger.With(logger.Event(string(ev.Event)), logger.TrackingID(ev.TrackingID))

	defer func() {
		if p := recover(); p != nil {
			log.ErrorContext(ctx, "panic while reconciling event", slog.Any("panic", p))
			outcome = outcomeFailed
		}
	}()

	ev.TrackingID = strings.TrimSpace(ev.TrackingID)
	if err := r.validate.Struct(ev); err != nil {
		log.WarnContext(ctx, "invalid delivery event", logger.Error(err))
		return outcomeInvalid
	}

	patch, ok := r.patchFor(ev)
	if !ok {
		log.DebugContext(ctx, "ignoring unsupported delivery event")
		return outcomeIgnored
	}

	rec, err := r.recorder.FindByTrackingID(ctx, ev.TrackingID, ChannelEmail)
	if errors.Is(err, ErrRecordNotFound) {
		log.InfoContext(ctx, "no delivery record for event")
		return outcomeUnmatched
	}
	if err != nil {
		log.ErrorContext(ctx, "failed to look up delivery record", logger.Error(err))
		return outcomeFailed
	}

	if err := r.recorder.Update(ctx, rec.ID, patch); err != nil {
		log.ErrorContext(ctx, "failed to apply delivery event",
			logger.RecordID(rec.ID.String()), logger.Error(err))
		return outcomeFailed
	}

	log.DebugContext(ctx, "delivery event applied", logger.RecordID(rec.ID.String()))
	return outcomeApplied
}

// patchFor maps an event onto a record patch. ok is false for unknown types.
func (r *Reconciler) patchFor(ev Event) (Patch, bool) {
	at := ev.Time(r.now())
	switch ev.Event {
	case EventDelivered:
		return Patch{Status: StatusPtr(StatusDelivered), DeliveredAt: &at}, true
	case EventBounce, EventDropped:
		reason := fmt.Sprintf("Email %s: %s", ev.Event, ev.Reason)
		return Patch{Status: StatusPtr(StatusFailed), FailureReason: &reason}, true
	case EventOpen:
		return Patch{Metadata: map[string]any{
			MetaOpened:   true,
			MetaOpenedAt: at,
		}}, true
	case EventClick:
		return Patch{Metadata: map[string]any{
			MetaClicked:    true,
			MetaClickedAt:  at,
			MetaClickedURL: ev.URL,
		}}, true
	default:
		return Patch{}, false
	}
}
