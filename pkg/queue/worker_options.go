package queue

import (
	"log/slog"
	"slices"
	"time"
)

// WorkerOption configures a Worker.
type WorkerOption func(*workerOptions)

type workerOptions struct {
	queues             []string
	pullInterval       time.Duration
	lockTimeout        time.Duration
	shutdownTimeout    time.Duration
	maxConcurrentTasks int
	logger             *slog.Logger
}

// WithQueues sets the queues to pull from, in priority order.
// Empty and repeated names are dropped; an empty list keeps the default queue.
func WithQueues(queues ...string) WorkerOption {
	return func(o *workerOptions) {
		var qs []string
		for _, q := range queues {
			if q != "" && !slices.Contains(qs, q) {
				qs = append(qs, q)
			}
		}
		if len(qs) > 0 {
			o.queues = qs
		}
	}
}

// WithPullInterval sets how often the worker polls for ready tasks.
func WithPullInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.pullInterval = d
		}
	}
}

// WithLockTimeout sets how long a claimed task stays locked to this worker.
func WithLockTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithShutdownTimeout bounds how long Stop waits for running tasks.
// Zero, the default, waits for as long as they take.
func WithShutdownTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d >= 0 {
			o.shutdownTimeout = d
		}
	}
}

// WithMaxConcurrentTasks caps the number of tasks running at once.
func WithMaxConcurrentTasks(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.maxConcurrentTasks = n
		}
	}
}

func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
