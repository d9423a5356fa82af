package queue

import "time"

// Config is the QUEUE_* environment shared by worker and scheduler processes.
type Config struct {
	// KeyPrefix namespaces every Redis key, so several deployments can share one server.
	KeyPrefix string        `env:"QUEUE_KEY_PREFIX" envDefault:"subtracker"`
	ResultTTL time.Duration `env:"QUEUE_RESULT_TTL" envDefault:"24h"`

	PollInterval       time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"1s"`
	LockTimeout        time.Duration `env:"QUEUE_LOCK_TIMEOUT" envDefault:"5m"`
	ShutdownTimeout    time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	MaxConcurrentTasks int           `env:"QUEUE_MAX_CONCURRENT_TASKS" envDefault:"10"`

	SchedulerInterval time.Duration `env:"QUEUE_SCHEDULER_INTERVAL" envDefault:"30s"`
}
