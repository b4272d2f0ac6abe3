package delivery

import "time"

// Config tunes dispatching.
type Config struct {
	SendTimeout   time.Duration `env:"DISPATCH_SEND_TIMEOUT" envDefault:"30s"`
	LookupTimeout time.Duration `env:"DISPATCH_LOOKUP_TIMEOUT" envDefault:"10s"`
}
