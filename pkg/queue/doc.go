// Package queue provides a durable task queue with retries, per-task timeouts,
// a dead-letter queue and cron-driven recurring tasks.
//
// The package is organised around three components:
//
//   - Enqueuer  adds one-time tasks to a named queue
//   - Scheduler materialises durable schedule entries into periodic tasks
//   - Worker    claims due tasks from its queues and dispatches them to handlers
//
// Components talk to storage only through small repository interfaces
// (EnqueuerRepository, SchedulerRepository, WorkerRepository). RedisStorage is the
// production backend; MemoryStorage serves tests and local development.
//
// # Retries and dead letters
//
// Each task carries MaxRetries and a Backoff list: a task with MaxRetries=3 runs at
// most four times, waiting Backoff[i] before retry i+1. A failure on the last attempt,
// or any handler error wrapping ErrSkipRetry, moves the task to the dead-letter queue.
// Every attempt runs under the task's Timeout; the worker abandons attempts that
// overrun it and records ErrTaskTimeout.
//
// # Usage
//
//	storage, _ := queue.NewRedisStorage(client, queue.WithKeyPrefix("subtracker"))
//
//	enqueuer, _ := queue.NewEnqueuer(storage)
//	_, err := enqueuer.Enqueue(ctx, ReminderPayload{SubscriptionID: 42},
//	    queue.WithQueue("reminders"),
//	    queue.WithMaxRetries(3),
//	    queue.WithBackoff(30*time.Second, time.Minute, 2*time.Minute),
//	    queue.WithTimeout(time.Minute),
//	)
//
//	worker, _ := queue.NewWorker(storage, queue.WithQueues("reminders"))
//	_ = worker.RegisterHandler(queue.NewTaskHandler(sendReminder))
//	g.Go(worker.Run(ctx))
//
// Recurring tasks are registered once under a stable id; re-registering is a no-op,
// so it is safe on every process start:
//
//	scheduler, _ := queue.NewScheduler(storage)
//	_, err := scheduler.Schedule(ctx, "monthly_report_job", "generate_monthly_report",
//	    queue.MustCron("0 0 1 * *"), queue.WithTaskQueue("reports"))
//	g.Go(scheduler.Run(ctx))
//
// Any number of scheduler processes may share a storage: advancing an entry is a
// compare-and-set, so each occurrence is enqueued once.
package queue
