package delivery

import (
	"log/slog"
	"time"
)

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*dispatcherOptions)

type dispatcherOptions struct {
	sendTimeout   time.Duration
	lookupTimeout time.Duration
	trackingID    TrackingIDFunc
	now           func() time.Time
	logger        *slog.Logger
}

// WithSendTimeout bounds every provider call.
func WithSendTimeout(d time.Duration) DispatcherOption {
	return func(o *dispatcherOptions) {
		if d > 0 {
			o.sendTimeout = d
		}
	}
}

// WithLookupTimeout bounds the contact and settings reads.
func WithLookupTimeout(d time.Duration) DispatcherOption {
	return func(o *dispatcherOptions) {
		if d > 0 {
			o.lookupTimeout = d
		}
	}
}

// WithTrackingIDFunc replaces the tracking id generator.
func WithTrackingIDFunc(fn TrackingIDFunc) DispatcherOption {
	return func(o *dispatcherOptions) {
		if fn != nil {
			o.trackingID = fn
		}
	}
}

// WithDispatcherClock overrides the time source.
func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(o *dispatcherOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(o *dispatcherOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDispatcherConfig applies cfg's timeouts.
func WithDispatcherConfig(cfg Config) DispatcherOption {
	return func(o *dispatcherOptions) {
		WithSendTimeout(cfg.SendTimeout)(o)
		WithLookupTimeout(cfg.LookupTimeout)(o)
	}
}
