package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/subtracker/pkg/logger"
)

// WorkerRepository is the storage side of a Worker.
type WorkerRepository interface {
	// ClaimTask locks the next ready task, scanning queues in order.
	// Returns ErrNoTaskToClaim when there is nothing to do.
	ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error)

	CompleteTask(ctx context.Context, taskID uuid.UUID) error

	// FailTask records the error and bumps the retry count. The task is
	// rescheduled with its backoff, or marked failed once retries run out.
	FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error

	MoveToDLQ(ctx context.Context, taskID uuid.UUID) error

	ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error
}

// LockReaper returns tasks whose lock expired (their worker died) to pending.
// Workers call it on every tick when the repository implements it.
type LockReaper interface {
	ReapExpiredLocks(ctx context.Context) (int, error)
}

// Worker claims tasks from its queues and runs the matching handler.
type Worker struct {
	repo     WorkerRepository
	reaper   LockReaper
	handlers map[string]Handler
	queues   []string
	id       uuid.UUID
	slots    chan struct{}
	active   sync.WaitGroup
	log      *slog.Logger

	pullInterval    time.Duration
	lockTimeout     time.Duration
	shutdownTimeout time.Duration

	mu       sync.Mutex
	cancel   context.CancelFunc
	stopping bool
}

// NewWorker creates a worker on top of repo.
func NewWorker(repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &workerOptions{
		queues:             []string{DefaultQueueName},
		pullInterval:       5 * time.Second,
		lockTimeout:        5 * time.Minute,
		maxConcurrentTasks: 1,
		logger:             slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	id := uuid.New()
	reaper, _ := repo.(LockReaper)

	log := options.logger.With(
		logger.Component("worker"),
		slog.String("worker_id", id.String()),
	)

	return &Worker{
		repo:            repo,
		reaper:          reaper,
		handlers:        make(map[string]Handler),
		queues:          options.queues,
		id:              id,
		slots:           make(chan struct{}, options.maxConcurrentTasks),
		pullInterval:    options.pullInterval,
		lockTimeout:     options.lockTimeout,
		shutdownTimeout: options.shutdownTimeout,
		log:             log,
	}, nil
}

// RegisterHandler adds a handler keyed by its Name. A later handler with the
// same name replaces the earlier one. Nil handlers are ignored.
func (w *Worker) RegisterHandler(handler Handler) error {
	if handler == nil {
		return nil
	}

	w.mu.Lock()
	w.handlers[handler.Name()] = handler
	w.mu.Unlock()

	return nil
}

// RegisterHandlers registers each handler in order.
func (w *Worker) RegisterHandlers(handlers ...Handler) error {
	for _, h := range handlers {
		if err := w.RegisterHandler(h); err != nil {
			return err
		}
	}
	return nil
}

// Start launches the polling loop and returns immediately.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return ErrWorkerStarted
	}
	if len(w.handlers) == 0 {
		return ErrNoHandlers
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.stopping = false

	go w.loop(runCtx)

	hostname, _ := os.Hostname()
	w.log.Info("worker started",
		slog.Any("queues", w.queues),
		slog.Int("max_concurrent", cap(w.slots)),
		slog.String("hostname", hostname),
		slog.Int("pid", os.Getpid()))

	return nil
}

// Stop cancels polling and waits for in-flight tasks to finish. With a shutdown
// timeout set it gives up after that long and returns ErrShutdownTimeout; the
// abandoned tasks keep their locks and are reaped once those expire.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return ErrWorkerNotStarted
	}
	w.stopping = true
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()

	w.log.Info("worker stopping, waiting for active tasks")

	done := make(chan struct{})
	go func() {
		w.active.Wait()
		close(done)
	}()

	var expired <-chan time.Time
	if w.shutdownTimeout > 0 {
		timer := time.NewTimer(w.shutdownTimeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-done:
		w.log.Info("worker stopped")
		return nil
	case <-expired:
		w.log.Warn("shutdown timeout reached, abandoning active tasks",
			slog.Duration("shutdown_timeout", w.shutdownTimeout))
		return ErrShutdownTimeout
	}
}

// Run adapts the worker to errgroup: it starts, blocks until ctx is done, then stops.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return w.Stop()
	}
}

// ExtendLockForTask pushes the lock of a claimed task further into the future.
func (w *Worker) ExtendLockForTask(ctx context.Context, taskID uuid.UUID, extension time.Duration) error {
	return w.repo.ExtendLock(ctx, taskID, extension)
}

// WorkerInfo identifies the worker process.
func (w *Worker) WorkerInfo() (id string, hostname string, pid int) {
	hostname, _ = os.Hostname()
	return w.id.String(), hostname, os.Getpid()
}

func (w *Worker) loop(ctx context.Context) {
	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		w.reapLocks(ctx)

		select {
		case w.slots <- struct{}{}:
		default:
			w.log.Debug("all worker slots busy, skipping tick")
			continue
		}

		if !w.track() {
			<-w.slots
			return
		}

		go func() {
			defer w.active.Done()
			defer func() { <-w.slots }()

			if err := w.claimAndProcess(ctx); err != nil && !errors.Is(err, ErrHandlerNotFound) {
				w.log.Error("failed to process task", logger.Error(err))
			}
		}()
	}
}

// track registers an in-flight task unless Stop has begun.
func (w *Worker) track() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopping {
		return false
	}
	w.active.Add(1)
	return true
}

func (w *Worker) reapLocks(ctx context.Context) {
	if w.reaper == nil {
		return
	}
	n, err := w.reaper.ReapExpiredLocks(ctx)
	switch {
	case err != nil:
		w.log.Error("failed to reap expired locks", logger.Error(err))
	case n > 0:
		w.log.Warn("requeued tasks with expired locks", logger.Count(n))
	}
}

func (w *Worker) claimAndProcess(ctx context.Context) error {
	task, err := w.repo.ClaimTask(ctx, w.id, w.queues, w.lockTimeout)
	if err != nil {
		if errors.Is(err, ErrNoTaskToClaim) {
			return nil
		}
		return errors.Join(ErrFailedToGetNextTask, err)
	}
	if task == nil {
		return nil
	}

	log := w.log.With(
		logger.TaskID(task.ID),
		logger.TaskName(task.TaskName),
		logger.Queue(task.Queue),
	)
	log.Debug("claimed task")

	w.mu.Lock()
	handler, ok := w.handlers[task.TaskName]
	w.mu.Unlock()

	// Shutdown does not cancel running tasks; they finish or time out.
	ctx = context.WithoutCancel(ctx)

	if !ok {
		return w.deadLetterUnhandled(ctx, task, log)
	}

	start := time.Now()
	err = w.execute(ctx, task, handler, log)
	duration := time.Since(start)

	if err != nil {
		return w.fail(ctx, task, err, duration, log)
	}
	return w.complete(ctx, task, duration, log)
}

// execute runs the handler under the task's hard timeout. The attempt ends
// at the deadline even if the handler ignores ctx; its late result is dropped.
func (w *Worker) execute(ctx context.Context, task *Task, handler Handler, log *slog.Logger) error {
	timeout := task.Timeout
	if timeout <= 0 {
		timeout = w.lockTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ctx = withTaskInfo(ctx, TaskInfo{
		ID:         task.ID,
		Name:       task.TaskName,
		Queue:      task.Queue,
		RetryCount: task.RetryCount,
		MaxRetries: task.MaxRetries,
	})

	if timeout >= w.lockTimeout {
		go w.keepLocked(ctx, task.ID, log)
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("handler panicked", slog.Any("panic", r))
				done <- fmt.Errorf("panic in handler: %v", r)
			}
		}()
		done <- handler.Handle(ctx, task.Payload)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrTaskTimeout, timeout)
		}
		return ctx.Err()
	}
}

// keepLocked extends the task lock at half the lock timeout until ctx ends,
// so attempts allowed to run longer than the lock are not reaped mid-flight.
func (w *Worker) keepLocked(ctx context.Context, taskID uuid.UUID, log *slog.Logger) {
	ticker := time.NewTicker(w.lockTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.repo.ExtendLock(ctx, taskID, w.lockTimeout); err != nil {
				log.Warn("failed to extend task lock", logger.Error(err))
			}
		}
	}
}

// deadLetterUnhandled parks tasks nobody can run: retrying cannot help
// until a handler for the name is deployed.
func (w *Worker) deadLetterUnhandled(ctx context.Context, task *Task, log *slog.Logger) error {
	log.Error("no handler registered for task")

	if err := w.repo.FailTask(ctx, task.ID, ErrHandlerNotFound.Error()+": "+task.TaskName); err != nil {
		return errors.Join(ErrFailedToUpdateTaskStatus, fmt.Errorf("task %s: %w", task.ID, err))
	}
	if err := w.repo.MoveToDLQ(ctx, task.ID); err != nil {
		return errors.Join(ErrFailedToMoveToDLQ, fmt.Errorf("task %s: %w", task.ID, err))
	}
	return ErrHandlerNotFound
}

// fail records a failed attempt. The storage reschedules it with backoff;
// the last allowed attempt and ErrSkipRetry failures go to the DLQ instead.
func (w *Worker) fail(ctx context.Context, task *Task, execErr error, duration time.Duration, log *slog.Logger) error {
	terminal := task.Exhausted() || errors.Is(execErr, ErrSkipRetry)

	log.Error("task failed",
		logger.RetryCount(int(task.RetryCount)),
		slog.Int("max_retries", int(task.MaxRetries)),
		slog.Bool("terminal", terminal),
		logger.Duration(duration),
		logger.Error(execErr))

	if err := w.repo.FailTask(ctx, task.ID, execErr.Error()); err != nil {
		return errors.Join(ErrFailedToUpdateTaskStatus, fmt.Errorf("task %s: %w", task.ID, err))
	}

	if !terminal {
		log.Info("task scheduled for retry", slog.Duration("retry_in", task.RetryDelay(task.RetryCount+1)))
		return nil
	}

	if err := w.repo.MoveToDLQ(ctx, task.ID); err != nil {
		return errors.Join(ErrFailedToMoveToDLQ, fmt.Errorf("task %s: %w", task.ID, err))
	}
	log.Warn("task moved to dead letter queue")

	return nil
}

func (w *Worker) complete(ctx context.Context, task *Task, duration time.Duration, log *slog.Logger) error {
	if err := w.repo.CompleteTask(ctx, task.ID); err != nil {
		return errors.Join(ErrFailedToUpdateTaskStatus, fmt.Errorf("task %s: %w", task.ID, err))
	}
	log.Info("task completed", logger.Duration(duration))
	return nil
}
