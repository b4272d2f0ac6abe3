package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// ReadinessCheckName labels the lease store probe in readiness reports.
const ReadinessCheckName = "redis"

// ReadinessCheck pings the Redis instance holding the processing lease.
func ReadinessCheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
