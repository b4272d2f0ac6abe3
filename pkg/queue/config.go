package queue

import "time"

// Config holds processor, scheduler and retention settings.
type Config struct {
	TickInterval        time.Duration `env:"QUEUE_TICK_INTERVAL" envDefault:"1m"`
	BatchSize           int           `env:"QUEUE_BATCH_SIZE" envDefault:"10"`
	Concurrency         int           `env:"QUEUE_CONCURRENCY" envDefault:"5"`
	MaxAttempts         int           `env:"QUEUE_MAX_ATTEMPTS" envDefault:"3"`
	EntryTimeout        time.Duration `env:"QUEUE_ENTRY_TIMEOUT" envDefault:"2m"`
	StaleAfter          time.Duration `env:"QUEUE_STALE_AFTER" envDefault:"15m"`
	LeaseTTL            time.Duration `env:"QUEUE_LEASE_TTL" envDefault:"5m"`
	SchedulerResolution time.Duration `env:"QUEUE_SCHEDULER_RESOLUTION" envDefault:"1s"`

	RetentionRunAtHour int           `env:"RETENTION_RUN_AT_HOUR" envDefault:"3"`
	RecordRetention    time.Duration `env:"RETENTION_RECORDS" envDefault:"720h"`
	EntryRetention     time.Duration `env:"RETENTION_ENTRIES" envDefault:"168h"`
	SweepBatchSize     int           `env:"RETENTION_BATCH_SIZE" envDefault:"500"`
	SweepMaxBatches    int           `env:"RETENTION_MAX_BATCHES" envDefault:"20"`
}
