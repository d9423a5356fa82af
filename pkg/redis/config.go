package redis

import "time"

// Config is read from REDIS_* variables.
type Config struct {
	// ConnectionURL looks like redis://:password@localhost:6379/0.
	ConnectionURL string `env:"REDIS_URL,required" envDefault:"redis://localhost:6379/0"`

	// Connect pings up to RetryAttempts times, RetryInterval apart,
	// and gives up once ConnectTimeout has passed.
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
}
