package intake

import "errors"

var (
	ErrInvalidMessage   = errors.New("intake: invalid notification message")
	ErrHandlerNil       = errors.New("intake: message handler is nil")
	ErrFailedToConnect  = errors.New("intake: failed to connect to broker")
	ErrFailedToDeclare  = errors.New("intake: failed to declare topology")
	ErrFailedToConsume  = errors.New("intake: failed to start consuming")
	ErrDeliveriesClosed = errors.New("intake: delivery channel closed")
)
