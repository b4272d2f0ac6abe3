// Package pg bootstraps the Postgres backend of courier.
//
// Connect opens a pgx/v5 pool with retries, Migrate applies the embedded goose
// migrations from the migrations package and ReadinessCheck returns a probe used
// by the readiness endpoint. Error helpers classify *pgconn.PgError values so
// the store can map them onto domain errors.
package pg
