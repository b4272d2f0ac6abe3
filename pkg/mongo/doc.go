// Package mongo connects courier to MongoDB for the document store backend.
//
//	db, err := mongo.ConnectDatabase(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer db.Client().Disconnect(context.Background())
//
// ReadinessCheck returns a readiness probe that pings the primary.
package mongo
