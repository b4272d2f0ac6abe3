package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ReadinessCheckName labels the Postgres probe in readiness reports.
const ReadinessCheckName = "postgres"

// ReadinessCheck reports ready once the pool answers and the delivery queue
// table exists, so an instance with pending migrations stays out of rotation.
func ReadinessCheck(pool *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		var migrated bool
		err := pool.QueryRow(ctx, `SELECT to_regclass('notification_queue') IS NOT NULL`).Scan(&migrated)
		if err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		if !migrated {
			return errors.Join(ErrHealthcheckFailed, ErrSchemaNotMigrated)
		}
		return nil
	}
}
