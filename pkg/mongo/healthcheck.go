package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// ReadinessCheckName labels the MongoDB probe in readiness reports.
const ReadinessCheckName = "mongodb"

// ReadinessCheck pings the primary: queue claims and record updates are
// writes, so a reachable secondary alone is not ready.
func ReadinessCheck(client *mongo.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
