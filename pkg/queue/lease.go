package queue

import (
	"context"
	"time"
)

// Locker hands out a named, expiring lease shared by all processor instances.
type Locker interface {
	// TryLock returns ok=false without error when another holder owns key.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}
