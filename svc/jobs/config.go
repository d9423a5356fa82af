package jobs

import "time"

// Config tunes schedules and the retry policy applied to every job.
type Config struct {
	ReminderCron string `env:"JOBS_REMINDER_CRON" envDefault:"0 8 * * *"`
	ReportCron   string `env:"JOBS_REPORT_CRON" envDefault:"0 0 1 * *"`

	MaxRetries int8            `env:"JOBS_MAX_RETRIES" envDefault:"3"`
	Backoff    []time.Duration `env:"JOBS_BACKOFF" envDefault:"30s,60s,120s" envSeparator:","`
	Timeout    time.Duration   `env:"JOBS_TIMEOUT" envDefault:"60s"`

	// OrchestratorTimeout bounds the periodic fan-out tasks, which walk every due item.
	OrchestratorTimeout time.Duration `env:"JOBS_ORCHESTRATOR_TIMEOUT" envDefault:"5m"`
}

// DefaultConfig mirrors the env defaults for callers that do not load from env.
func DefaultConfig() Config {
	return Config{
		ReminderCron:        "0 8 * * *",
		ReportCron:          "0 0 1 * *",
		MaxRetries:          3,
		Backoff:             []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second},
		Timeout:             60 * time.Second,
		OrchestratorTimeout: 5 * time.Minute,
	}
}
