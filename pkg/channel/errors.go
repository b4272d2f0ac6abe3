package channel

import "errors"

var (
	ErrMissingCredentials = errors.New("channel: provider credentials are not configured")
	ErrInvalidConfig      = errors.New("channel: invalid provider configuration")
	ErrNoDestination      = errors.New("channel: message has no destination")
	ErrProviderRejected   = errors.New("channel: provider rejected the message")
	ErrRenderFailed       = errors.New("channel: failed to render message")
)
