package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/courier/pkg/logger"
	"github.com/dmitrymomot/courier/pkg/metrics"
)

// dispatchChannels is the fixed fan-out order of a dispatch.
var dispatchChannels = [...]Channel{ChannelEmail, ChannelSMS, ChannelPush}

// Resolver supplies destinations and preferences of a recipient.
type Resolver interface {
	Resolve(ctx context.Context, recipientID string) (ContactInfo, error)
	Preferences(ctx context.Context, recipientID string) (Settings, error)
}

// RecordWriter creates and updates delivery records.
type RecordWriter interface {
	Create(ctx context.Context, notificationID, recipientID string, ch Channel, status Status, metadata map[string]any) (uuid.UUID, error)
	Update(ctx context.Context, id uuid.UUID, patch Patch) error
}

// Dispatcher fans one notification out to every eligible channel of one
// recipient.
type Dispatcher struct {
	resolver Resolver
	records  RecordWriter
	senders  map[Channel]Sender
	opts     dispatcherOptions
}

// NewDispatcher wires a dispatcher. Channels without a sender are reported
// as not attempted.
func NewDispatcher(resolver Resolver, records RecordWriter, senders []Sender, opts ...DispatcherOption) *Dispatcher {
	o := dispatcherOptions{
		sendTimeout:   30 * time.Second,
		lookupTimeout: 10 * time.Second,
		trackingID:    DefaultTrackingID,
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	byChannel := make(map[Channel]Sender, len(senders))
	for _, s := range senders {
		if s != nil {
			byChannel[s.Channel()] = s
		}
	}

	return &Dispatcher{
		resolver: resolver,
		records:  records,
		senders:  byChannel,
		opts:     o,
	}
}

// Dispatch attempts delivery of payload to recipientID on every enabled
// channel that has a valid destination. It never returns an error: every
// failure is reported in the per-channel results.
func (d *Dispatcher) Dispatch(ctx context.Context, notificationID, recipientID string, payload Payload) DispatchResult {
	log := d.opts.logger.With(logger.NotificationID(notificationID), logger.RecipientID(recipientID))

	contact, settings, err := d.lookup(ctx, recipientID)
	if err != nil {
		log.WarnContext(ctx, "recipient unavailable, dispatch skipped", logger.Error(err))
		return DispatchResult{
			Email:      notAttempted(),
			SMS:        notAttempted(),
			Push:       notAttempted(),
			Skipped:    true,
			SkipReason: err.Error(),
		}
	}

	trackingID := d.opts.trackingID(notificationID, recipientID, d.opts.now())
	result := DispatchResult{TrackingID: trackingID}
	log = log.With(logger.TrackingID(trackingID))

	content := Content{
		Title:       payload.Title,
		Body:        payload.Message,
		Type:        payload.Type,
		ActionURL:   payload.ActionURL,
		ActionLabel: payload.ActionLabel,
	}

	var (
		results [len(dispatchChannels)]ChannelResult
		g       errgroup.Group
	)
	for i, ch := range dispatchChannels {
		to, meta := destination(ch, contact)
		sender, ok := d.senders[ch]
		if !settings.Enabled(ch) || len(to) == 0 || !ok {
			results[i] = notAttempted()
			continue
		}

		msg := Message{To: to, Name: contact.DisplayName, Content: content, TrackingID: trackingID}
		meta[MetaTrackingID] = trackingID
		g.Go(func() error {
			results[i] = d.attempt(ctx, log, notificationID, recipientID, sender, msg, meta)
			return nil
		})
	}
	_ = g.Wait()

	for i, ch := range dispatchChannels {
		result.set(ch, results[i])
	}

	log.InfoContext(ctx, "dispatch finished",
		slog.Bool("email", result.Email.Success),
		slog.Bool("sms", result.SMS.Success),
		slog.Bool("push", result.Push.Success))

	return result
}

// lookup loads contact and settings concurrently.
func (d *Dispatcher) lookup(ctx context.Context, recipientID string) (ContactInfo, Settings, error) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.lookupTimeout)
	defer cancel()

	var (
		contact  ContactInfo
		settings Settings
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		contact, err = d.resolver.Resolve(gctx, recipientID)
		return err
	})
	g.Go(func() (err error) {
		settings, err = d.resolver.Preferences(gctx, recipientID)
		return err
	})
	if err := g.Wait(); err != nil {
		return ContactInfo{}, Settings{}, err
	}
	return contact, settings, nil
}

// attempt runs one channel: record, send, record outcome.
func (d *Dispatcher) attempt(ctx context.Context, log *slog.Logger, notificationID, recipientID string, sender Sender, msg Message, meta map[string]any) (res ChannelResult) {
	ch := sender.Channel()
	log = log.With(logger.Channel(string(ch)))
	res.Attempted = true

	recordID, err := d.records.Create(ctx, notificationID, recipientID, ch, StatusPending, meta)
	if err != nil {
		log.ErrorContext(ctx, "failed to create delivery record", logger.Error(err))
		res.Error = err.Error()
		return res
	}
	res.RecordID = recordID

	sent := d.send(ctx, log, sender, msg)
	res.Success = sent.Success
	res.MessageID = sent.MessageID
	res.SuccessCount = sent.SuccessCount
	res.FailureCount = sent.FailureCount
	res.Errors = sent.Errors
	if !sent.Success {
		res.Error = sent.Error
		if res.Error == "" {
			res.Error = "send failed"
		}
	}

	patch := Patch{Metadata: map[string]any{}}
	if sent.MessageID != "" {
		patch.Metadata[MetaMessageID] = sent.MessageID
	}
	if ch == ChannelPush {
		patch.Metadata[MetaSuccessCount] = sent.SuccessCount
		patch.Metadata[MetaFailureCount] = sent.FailureCount
		if len(sent.Errors) > 0 {
			patch.Metadata[MetaErrors] = sent.Errors
		}
	}
	if sent.Success {
		patch.Status = StatusPtr(StatusSent)
	} else {
		patch.Status = StatusPtr(StatusFailed)
		patch.FailureReason = &res.Error
	}

	// Record the outcome even if ctx was cancelled during the send.
	if err := d.records.Update(context.WithoutCancel(ctx), recordID, patch); err != nil {
		log.ErrorContext(ctx, "failed to update delivery record",
			logger.RecordID(recordID.String()), logger.Error(err))
	}

	if sent.Success {
		log.DebugContext(ctx, "channel send succeeded", slog.String("message_id", sent.MessageID))
	} else {
		log.WarnContext(ctx, "channel send failed", slog.String("reason", res.Error))
	}
	return res
}

// send invokes the provider with a per-call timeout and converts a panic
// into a failed result.
func (d *Dispatcher) send(ctx context.Context, log *slog.Logger, sender Sender, msg Message) (res SendResult) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.sendTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "sender panicked", slog.Any("panic", r))
			res = SendResult{Error: fmt.Sprintf("panic in %s sender: %v", sender.Channel(), r)}
		}
		metrics.RecordChannelSend(string(sender.Channel()), res.Success, time.Since(start))
	}()

	res = sender.Send(ctx, msg)
	if !res.Success && res.Error == "" && ctx.Err() != nil {
		res.Error = ctx.Err().Error()
	}
	return res
}

// destination returns the recipients of ch and the metadata describing them.
func destination(ch Channel, c ContactInfo) ([]string, map[string]any) {
	switch ch {
	case ChannelEmail:
		if c.Email != "" {
			return []string{c.Email}, map[string]any{MetaEmail: c.Email}
		}
	case ChannelSMS:
		if c.Phone != "" {
			return []string{c.Phone}, map[string]any{MetaPhone: c.Phone}
		}
	case ChannelPush:
		if len(c.PushTokens) > 0 {
			return c.PushTokens, map[string]any{MetaTokens: len(c.PushTokens)}
		}
	}
	return nil, nil
}
