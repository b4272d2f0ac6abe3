// Package pgstore implements the queue and delivery repositories on
// PostgreSQL through pgx. The schema lives in the migrations package and is
// applied with pg.Migrate.
//
// Every queue write is a conditional UPDATE on the current status, so two
// processors racing on the same entry cannot both claim it or both record
// an outcome. Record metadata patches are merged into the stored JSONB
// document with the || operator.
//
//	pool, err := pg.Connect(ctx, cfg)
//	store := pgstore.New(pool)
//	proc, err := queue.NewProcessor(store, dispatcher)
package pgstore
