package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/subtracker/pkg/logger"
)

// SchedulerRepository defines the interface for scheduler operations
type SchedulerRepository interface {
	// CreateEntry stores the entry unless one with the same id exists.
	// Returns false without error when the id is already taken.
	CreateEntry(ctx context.Context, entry *ScheduleEntry) (bool, error)

	// GetEntry returns ErrEntryNotFound for unknown ids
	GetEntry(ctx context.Context, id string) (*ScheduleEntry, error)

	// ListEntries returns every registered entry
	ListEntries(ctx context.Context) ([]*ScheduleEntry, error)

	// AdvanceEntry atomically moves the entry's NextRunAt from entry.NextRunAt to next
	// and creates the occurrence task. Returns false when another scheduler advanced
	// the entry first; nothing is written in that case.
	AdvanceEntry(ctx context.Context, entry *ScheduleEntry, next time.Time, task *Task) (bool, error)

	// RemoveEntry deletes the entry; returns ErrEntryNotFound for unknown ids
	RemoveEntry(ctx context.Context, id string) error
}

// Scheduler materialises durable schedule entries into periodic tasks.
// Entries live in the repository, so any number of scheduler processes can share them.
type Scheduler struct {
	repo     SchedulerRepository
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewScheduler creates a new task scheduler
func NewScheduler(repo SchedulerRepository, opts ...SchedulerOption) (*Scheduler, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &schedulerOptions{
		checkInterval: 30 * time.Second,
		logger:        slog.Default(),
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(options)
	}

	return &Scheduler{
		repo:     repo,
		interval: options.checkInterval,
		logger:   options.logger.With(logger.Component("scheduler")),
		now:      options.now,
	}, nil
}

// Schedule registers a recurring task under a stable logical id.
// Registration is idempotent: when an entry with the id already exists it is left
// untouched and Schedule returns false.
func (s *Scheduler) Schedule(ctx context.Context, id, taskName string, schedule Schedule, opts ...SchedulerTaskOption) (bool, error) {
	if id == "" {
		return false, ErrInvalidEntryID
	}
	if schedule == nil {
		return false, ErrInvalidSchedule
	}
	if taskName == "" {
		taskName = id
	}

	spec := defaultExecSpec()
	for _, opt := range opts {
		opt(&spec)
	}

	now := s.now()
	entry := &ScheduleEntry{
		ID:         id,
		TaskName:   taskName,
		Queue:      spec.queue,
		Spec:       schedule.String(),
		MaxRetries: spec.retry.MaxRetries,
		Backoff:    spec.retry.Backoff,
		Timeout:    spec.timeout,
		NextRunAt:  schedule.Next(now),
		CreatedAt:  now,
	}

	created, err := s.repo.CreateEntry(ctx, entry)
	if err != nil {
		return false, fmt.Errorf("create schedule entry %q: %w", id, err)
	}

	if !created {
		s.logger.Debug("schedule entry already registered",
			logger.JobID(id))
		return false, nil
	}

	s.logger.Info("registered periodic task",
		logger.JobID(id),
		logger.TaskName(taskName),
		logger.Queue(entry.Queue),
		slog.String("schedule", entry.Spec),
		slog.Time("next_run", entry.NextRunAt))

	return true, nil
}

// Exists reports whether an entry with the given logical id is registered
func (s *Scheduler) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.repo.GetEntry(ctx, id)
	if errors.Is(err, ErrEntryNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns all registered entries
func (s *Scheduler) List(ctx context.Context) ([]*ScheduleEntry, error) {
	return s.repo.ListEntries(ctx)
}

// Remove deletes a registered entry
func (s *Scheduler) Remove(ctx context.Context, id string) error {
	if err := s.repo.RemoveEntry(ctx, id); err != nil {
		return err
	}

	s.logger.Info("removed periodic task",
		logger.JobID(id))
	return nil
}

// Start begins the scheduler's periodic entry checking.
// Blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started",
		slog.Duration("check_interval", s.interval))

	// Check immediately on start
	s.checkEntries(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.checkEntries(ctx)
		}
	}
}

// Run starts the scheduler and returns a function suitable for errgroup
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		if err := s.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

// checkEntries enqueues a task for every entry that is due
func (s *Scheduler) checkEntries(ctx context.Context) {
	entries, err := s.repo.ListEntries(ctx)
	if err != nil {
		s.logger.Error("failed to list schedule entries",
			logger.Error(err))
		return
	}

	now := s.now()

	for _, entry := range entries {
		if err := s.scheduleEntryIfDue(ctx, entry, now); err != nil {
			s.logger.Error("failed to schedule task",
				logger.JobID(entry.ID),
				logger.TaskName(entry.TaskName),
				logger.Error(err))
		}
	}
}

// scheduleEntryIfDue creates the occurrence task and advances the entry.
// Missed occurrences (scheduler downtime) collapse into a single run.
func (s *Scheduler) scheduleEntryIfDue(ctx context.Context, entry *ScheduleEntry, now time.Time) error {
	if entry.NextRunAt.After(now) {
		return nil
	}

	schedule, err := Cron(entry.Spec)
	if err != nil {
		return err
	}

	next := schedule.Next(now)
	task := &Task{
		ID:          uuid.New(),
		Queue:       entry.Queue,
		TaskType:    TaskTypePeriodic,
		TaskName:    entry.TaskName,
		Status:      TaskStatusPending,
		MaxRetries:  entry.MaxRetries,
		Backoff:     entry.Backoff,
		Timeout:     entry.Timeout,
		ScheduledAt: entry.NextRunAt,
		CreatedAt:   now,
	}

	advanced, err := s.repo.AdvanceEntry(ctx, entry, next, task)
	if err != nil {
		return fmt.Errorf("failed to create periodic task: %w", err)
	}

	if !advanced {
		s.logger.Debug("periodic task already created by another scheduler",
			logger.JobID(entry.ID),
			slog.Time("scheduled_for", entry.NextRunAt))
		return nil
	}

	s.logger.Info("created periodic task",
		logger.JobID(entry.ID),
		logger.TaskName(entry.TaskName),
		logger.TaskID(task.ID),
		slog.Time("scheduled_for", entry.NextRunAt),
		slog.Time("next_run", next))

	return nil
}
