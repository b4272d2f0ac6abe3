package lease

import "errors"

var (
	ErrClientNil       = errors.New("lease: redis client is nil")
	ErrFailedToAcquire = errors.New("lease: failed to acquire")
	ErrFailedToRelease = errors.New("lease: failed to release")
	ErrLeaseLost       = errors.New("lease: lease expired or taken over")
)
