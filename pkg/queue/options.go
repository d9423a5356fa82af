package queue

import (
	"log/slog"
	"slices"
	"time"
)

// maxRetriesLimit caps MaxRetries for every task, one-time or periodic.
const maxRetriesLimit = 10

// execSpec is how a task runs: where it is queued, how it is retried and how
// long one attempt may take. Enqueue and Schedule share it.
type execSpec struct {
	queue   string
	retry   RetryPolicy
	timeout time.Duration
}

func defaultExecSpec() execSpec {
	return execSpec{queue: DefaultQueueName, retry: RetryPolicy{MaxRetries: 3}}
}

func (s *execSpec) setQueue(q string) {
	if q != "" {
		s.queue = q
	}
}

func (s *execSpec) setMaxRetries(n int8) {
	if n >= 0 && n <= maxRetriesLimit {
		s.retry.MaxRetries = n
	}
}

// setBackoff keeps the positive delays only.
func (s *execSpec) setBackoff(delays []time.Duration) {
	s.retry.Backoff = slices.DeleteFunc(slices.Clone(delays), func(d time.Duration) bool { return d <= 0 })
}

func (s *execSpec) setTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// EnqueuerOption configures an Enqueuer.
type EnqueuerOption func(*execSpec)

// WithDefaultQueue is the queue used when Enqueue gets no WithQueue.
func WithDefaultQueue(queue string) EnqueuerOption {
	return func(s *execSpec) { s.setQueue(queue) }
}

// WithDefaultRetryPolicy applies p to tasks enqueued without their own policy.
// A policy with MaxRetries outside 0..10 is ignored as a whole.
func WithDefaultRetryPolicy(p RetryPolicy) EnqueuerOption {
	return func(s *execSpec) {
		if p.MaxRetries < 0 || p.MaxRetries > maxRetriesLimit {
			return
		}
		s.setMaxRetries(p.MaxRetries)
		s.setBackoff(p.Backoff)
	}
}

// EnqueueOption configures a single Enqueue call.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	execSpec
	taskName    string
	delay       time.Duration
	scheduledAt *time.Time
}

func WithQueue(queue string) EnqueueOption {
	return func(o *enqueueOptions) { o.setQueue(queue) }
}

// WithMaxRetries ignores values outside 0..10.
func WithMaxRetries(n int8) EnqueueOption {
	return func(o *enqueueOptions) { o.setMaxRetries(n) }
}

// WithBackoff sets the delay before each retry. Non-positive delays are dropped.
func WithBackoff(delays ...time.Duration) EnqueueOption {
	return func(o *enqueueOptions) { o.setBackoff(delays) }
}

// WithRetryPolicy is WithMaxRetries plus WithBackoff.
func WithRetryPolicy(p RetryPolicy) EnqueueOption {
	return func(o *enqueueOptions) {
		o.setMaxRetries(p.MaxRetries)
		o.setBackoff(p.Backoff)
	}
}

// WithTimeout bounds a single attempt. Without it the worker's lock timeout applies.
func WithTimeout(d time.Duration) EnqueueOption {
	return func(o *enqueueOptions) { o.setTimeout(d) }
}

func WithDelay(d time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if d > 0 {
			o.delay = d
		}
	}
}

// WithScheduledAt pins the first run time. It takes precedence over WithDelay.
func WithScheduledAt(at time.Time) EnqueueOption {
	return func(o *enqueueOptions) { o.scheduledAt = &at }
}

// WithTaskName overrides the name derived from the payload type.
func WithTaskName(name string) EnqueueOption {
	return func(o *enqueueOptions) {
		if name != "" {
			o.taskName = name
		}
	}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*schedulerOptions)

type schedulerOptions struct {
	checkInterval time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// WithCheckInterval sets how often due entries are materialised.
func WithCheckInterval(d time.Duration) SchedulerOption {
	return func(o *schedulerOptions) {
		if d > 0 {
			o.checkInterval = d
		}
	}
}

func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(o *schedulerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSchedulerClock replaces time.Now.
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(o *schedulerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// SchedulerTaskOption configures the tasks a schedule entry produces.
type SchedulerTaskOption func(*execSpec)

func WithTaskQueue(queue string) SchedulerTaskOption {
	return func(s *execSpec) { s.setQueue(queue) }
}

// WithTaskMaxRetries ignores values outside 0..10.
func WithTaskMaxRetries(n int8) SchedulerTaskOption {
	return func(s *execSpec) { s.setMaxRetries(n) }
}

func WithTaskBackoff(delays ...time.Duration) SchedulerTaskOption {
	return func(s *execSpec) { s.setBackoff(delays) }
}

func WithTaskTimeout(d time.Duration) SchedulerTaskOption {
	return func(s *execSpec) { s.setTimeout(d) }
}
