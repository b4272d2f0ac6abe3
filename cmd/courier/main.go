// Command courier runs the notification delivery service: the queue
// processor, the retention sweep, the email webhook endpoint and the optional
// AMQP intake consumer.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/courier/pkg/channel"
	"github.com/dmitrymomot/courier/pkg/config"
	"github.com/dmitrymomot/courier/pkg/delivery"
	"github.com/dmitrymomot/courier/pkg/httpserver"
	"github.com/dmitrymomot/courier/pkg/intake"
	"github.com/dmitrymomot/courier/pkg/lease"
	"github.com/dmitrymomot/courier/pkg/logger"
	"github.com/dmitrymomot/courier/pkg/metrics"
	"github.com/dmitrymomot/courier/pkg/queue"
	"github.com/dmitrymomot/courier/pkg/redis"
	"github.com/dmitrymomot/courier/pkg/webhook"
)

// appConfig holds the settings owned by the binary itself.
type appConfig struct {
	StorageDriver    string        `env:"STORAGE_DRIVER" envDefault:"memory"`
	LeaseEnabled     bool          `env:"LEASE_ENABLED" envDefault:"false"`
	LeaseKeyPrefix   string        `env:"LEASE_KEY_PREFIX"`
	ReadinessTimeout time.Duration `env:"READINESS_TIMEOUT" envDefault:"5s"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var logCfg logger.Config
	config.MustLoad(&logCfg)
	log := logger.NewFromConfig(logCfg, logger.WithContextValue("request_id", middleware.RequestIDKey))
	logger.SetAsDefault(log)

	if err := run(ctx, log); err != nil {
		log.Error("courier stopped with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info("courier stopped")
}

func run(ctx context.Context, log *slog.Logger) error {
	var (
		app      appConfig
		queueCfg queue.Config
		dispCfg  delivery.Config
		chanCfg  channel.Config
		hookCfg  webhook.Config
		httpCfg  httpserver.Config
		mqCfg    intake.Config
	)
	for _, load := range []func() error{
		func() error { return config.Load(&app) },
		func() error { return config.Load(&queueCfg) },
		func() error { return config.Load(&dispCfg) },
		func() error { return config.Load(&chanCfg) },
		func() error { return config.Load(&hookCfg) },
		func() error { return config.Load(&httpCfg) },
		func() error { return config.Load(&mqCfg) },
	} {
		if err := load(); err != nil {
			return err
		}
	}

	store, err := openBackend(ctx, app.StorageDriver, log)
	if err != nil {
		return err
	}
	defer store.close()

	checks := store.checks

	processorOpts := []queue.ProcessorOption{
		queue.WithProcessorConfig(queueCfg),
		queue.WithProcessorLogger(log),
	}
	if app.LeaseEnabled {
		var redisCfg redis.Config
		if err := config.Load(&redisCfg); err != nil {
			return err
		}
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		defer client.Close()

		locker := lease.NewRedisLocker(client, lease.WithKeyPrefix(app.LeaseKeyPrefix))
		processorOpts = append(processorOpts, queue.WithLocker(locker, queue.DefaultLeaseKey, queueCfg.LeaseTTL))
		checks[redis.ReadinessCheckName] = redis.ReadinessCheck(client)
	}

	senders, err := newSenders(ctx, chanCfg)
	if err != nil {
		return err
	}

	recorder := delivery.NewRecorder(store.records)
	dispatcher := delivery.NewDispatcher(
		delivery.NewContactResolver(store.directory, log),
		recorder,
		senders,
		delivery.WithDispatcherConfig(dispCfg),
		delivery.WithDispatcherLogger(log),
	)

	processor, err := queue.NewProcessor(store.entries, dispatcher, processorOpts...)
	if err != nil {
		return err
	}
	sweeper := queue.NewSweeper(store.notifications, store.records, store.entries,
		queue.WithSweeperConfig(queueCfg),
		queue.WithSweeperLogger(log),
	)

	scheduler := queue.NewScheduler(
		queue.WithResolution(queueCfg.SchedulerResolution),
		queue.WithSchedulerLogger(log),
	)
	if err := scheduler.AddJob("process_delivery_queue", queue.Every(queueCfg.TickInterval),
		func(ctx context.Context) error {
			_, err := processor.ProcessDue(ctx)
			return err
		},
		queue.WithRunOnStart(),
	); err != nil {
		return err
	}
	if err := scheduler.AddJob("retention_sweep", queue.DailyAt(queueCfg.RetentionRunAtHour, 0),
		func(ctx context.Context) error {
			_, err := sweeper.Sweep(ctx)
			return err
		},
		queue.WithJobTimeout(time.Hour),
	); err != nil {
		return err
	}

	reconciler := delivery.NewReconciler(recorder, delivery.WithReconcilerLogger(log))
	router := newRouter(log, reconciler, hookCfg, checks, app.ReadinessTimeout)
	server := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))

	var consumer *intake.Consumer
	if mqCfg.URL != "" {
		enqueuer, err := queue.NewEnqueuer(store.entries,
			queue.WithDefaultMaxAttempts(queueCfg.MaxAttempts),
			queue.WithIdempotentIDs(),
		)
		if err != nil {
			return err
		}
		consumer, err = intake.Dial(mqCfg, intake.NewHandler(enqueuer, store.notifications, log).Handle, log)
		if err != nil {
			return err
		}
		defer consumer.Close()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(scheduler.Run(ctx))
	g.Go(func() error { return server.Run(ctx, router) })
	if consumer != nil {
		g.Go(consumer.Run(ctx))
	}

	log.InfoContext(ctx, "courier started",
		slog.String("storage", app.StorageDriver),
		slog.Bool("lease", app.LeaseEnabled),
		slog.Bool("intake", mqCfg.URL != ""),
		slog.Any("jobs", scheduler.Jobs()))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newSenders(ctx context.Context, cfg channel.Config) ([]delivery.Sender, error) {
	sms, err := channel.NewSMSSender(ctx, cfg.SMS)
	if err != nil {
		return nil, fmt.Errorf("sms sender: %w", err)
	}
	push, err := channel.NewPushSender(ctx, cfg.Push)
	if err != nil {
		return nil, fmt.Errorf("push sender: %w", err)
	}
	return []delivery.Sender{channel.NewEmailSender(cfg.Email), sms, push}, nil
}

func newRouter(log *slog.Logger, events webhook.EventHandler, cfg webhook.Config, checks map[string]httpserver.Check, readyTimeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(log, readyTimeout, checks))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	webhook.Mount(r, webhook.NewHandler(events,
		webhook.WithConfig(cfg),
		webhook.WithLogger(log),
	))
	return r
}
