package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/courier/pkg/config"
	"github.com/dmitrymomot/courier/pkg/delivery"
	"github.com/dmitrymomot/courier/pkg/httpserver"
	"github.com/dmitrymomot/courier/pkg/intake"
	"github.com/dmitrymomot/courier/pkg/logger"
	"github.com/dmitrymomot/courier/pkg/mongo"
	"github.com/dmitrymomot/courier/pkg/pg"
	"github.com/dmitrymomot/courier/pkg/queue"
	"github.com/dmitrymomot/courier/pkg/storage/mongostore"
	"github.com/dmitrymomot/courier/pkg/storage/pgstore"
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	driverMemory   = "memory"
	driverPostgres = "postgres"
	driverMongo    = "mongo"
)

type entryStore interface {
	queue.EnqueuerRepository
	queue.ProcessorRepository
	queue.EntrySweeper
}

type recordStore interface {
	delivery.RecordRepository
	queue.RecordSweeper
}

type notificationStore interface {
	queue.NotificationExpirer
	intake.NotificationSaver
}

// backend groups the repositories of one storage driver.
type backend struct {
	entries       entryStore
	records       recordStore
	directory     delivery.Directory
	notifications notificationStore
	checks        map[string]httpserver.Check
	close         func()
}

func openBackend(ctx context.Context, driver string, log *slog.Logger) (*backend, error) {
	switch driver {
	case driverMemory:
		log.WarnContext(ctx, "using in-memory storage, state is lost on restart")
		entries := queue.NewMemoryStorage()
		records := delivery.NewMemoryStorage()
		return &backend{
			entries:       entries,
			records:       records,
			directory:     records,
			notifications: entries,
			checks:        map[string]httpserver.Check{},
			close:         func() {},
		}, nil

	case driverPostgres:
		var cfg pg.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		pool, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
				pool.Close()
				return nil, err
			}
		}
		store := pgstore.New(pool)
		return &backend{
			entries:       store,
			records:       store,
			directory:     store,
			notifications: store,
			checks:        map[string]httpserver.Check{pg.ReadinessCheckName: pg.ReadinessCheck(pool)},
			close:         pool.Close,
		}, nil

	case driverMongo:
		var cfg mongo.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		db, err := mongo.ConnectDatabase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		client := db.Client()
		disconnect := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := client.Disconnect(ctx); err != nil {
				log.Error("failed to disconnect from mongodb", logger.Error(err))
			}
		}
		store := mongostore.New(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			disconnect()
			return nil, err
		}
		return &backend{
			entries:       store,
			records:       store,
			directory:     store,
			notifications: store,
			checks:        map[string]httpserver.Check{mongo.ReadinessCheckName: mongo.ReadinessCheck(client)},
			close:         disconnect,
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", driver)
}
