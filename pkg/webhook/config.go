package webhook

import "time"

// Config configures the inbound delivery webhook.
type Config struct {
	// SigningSecret enables HMAC verification when set.
	SigningSecret string        `env:"WEBHOOK_SIGNING_SECRET"`
	MaxAge        time.Duration `env:"WEBHOOK_MAX_AGE" envDefault:"5m"`
	MaxBodyBytes  int64         `env:"WEBHOOK_MAX_BODY_BYTES" envDefault:"1048576"`
}
