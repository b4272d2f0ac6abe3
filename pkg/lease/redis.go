package lease

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes KEYS[1] only if it still holds ARGV[1].
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Client is the subset of the go-redis client used by RedisLocker.
type Client interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// RedisLocker grants leases stored in Redis.
type RedisLocker struct {
	client Client
	prefix string
}

// Option configures a RedisLocker.
type Option func(*RedisLocker)

// WithKeyPrefix namespaces every lease key.
func WithKeyPrefix(prefix string) Option {
	return func(l *RedisLocker) { l.prefix = prefix }
}

// NewRedisLocker creates a locker. It panics on a nil client.
func NewRedisLocker(client Client, opts ...Option) *RedisLocker {
	if client == nil {
		panic(ErrClientNil)
	}
	l := &RedisLocker{client: client}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TryLock attempts to take the lease on key for ttl. ok is false when another
// holder owns it. The returned release func is nil unless ok is true.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	key = l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, errors.Join(ErrFailedToAcquire, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		n, err := l.client.Eval(ctx, releaseScript, []string{key}, token).Int64()
		if err != nil {
			return errors.Join(ErrFailedToRelease, err)
		}
		if n == 0 {
			return ErrLeaseLost
		}
		return nil
	}
	return release, true, nil
}
