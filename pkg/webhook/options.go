package webhook

import (
	"log/slog"
	"time"
)

// Option configures a Handler.
type Option func(*Handler)

// WithSigningSecret enables signature verification.
func WithSigningSecret(secret string) Option {
	return func(h *Handler) { h.secret = secret }
}

// WithMaxAge sets the accepted signature age. Zero disables the check.
func WithMaxAge(d time.Duration) Option {
	return func(h *Handler) {
		if d >= 0 {
			h.maxAge = d
		}
	}
}

// WithMaxBodyBytes limits the request body size.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithClock overrides the time source used for signature checks.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithConfig applies cfg.
func WithConfig(cfg Config) Option {
	return func(h *Handler) {
		WithSigningSecret(cfg.SigningSecret)(h)
		WithMaxAge(cfg.MaxAge)(h)
		WithMaxBodyBytes(cfg.MaxBodyBytes)(h)
	}
}
