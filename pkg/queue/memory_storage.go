package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements all queue repository interfaces for testing and local development
type MemoryStorage struct {
	mu       sync.RWMutex
	tasks    map[uuid.UUID]*Task
	dlq      map[uuid.UUID]*TasksDlq
	entries  map[string]*ScheduleEntry
	byStatus map[TaskStatus][]uuid.UUID
	now      func() time.Time
}

// MemoryStorageOption configures a MemoryStorage
type MemoryStorageOption func(*MemoryStorage)

// WithMemoryClock overrides the time source used for scheduling and locks
func WithMemoryClock(now func() time.Time) MemoryStorageOption {
	return func(ms *MemoryStorage) {
		if now != nil {
			ms.now = now
		}
	}
}

// NewMemoryStorage creates a new in-memory storage implementation
func NewMemoryStorage(opts ...MemoryStorageOption) *MemoryStorage {
	ms := &MemoryStorage{
		tasks:    make(map[uuid.UUID]*Task),
		dlq:      make(map[uuid.UUID]*TasksDlq),
		entries:  make(map[string]*ScheduleEntry),
		byStatus: make(map[TaskStatus][]uuid.UUID),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(ms)
	}

	return ms
}

// CreateTask implements EnqueuerRepository
func (ms *MemoryStorage) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	return ms.createTaskLocked(task)
}

func (ms *MemoryStorage) createTaskLocked(task *Task) error {
	if _, exists := ms.tasks[task.ID]; exists {
		return fmt.Errorf("task with ID %s already exists", task.ID)
	}

	taskCopy := *task
	taskCopy.Backoff = slices.Clone(task.Backoff)
	ms.tasks[task.ID] = &taskCopy
	ms.byStatus[task.Status] = append(ms.byStatus[task.Status], task.ID)

	return nil
}

// ClaimTask implements WorkerRepository.
// Queues are drained in the order given; within a queue the earliest scheduled task wins.
func (ms *MemoryStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	var best *Task
	bestRank := len(queues)

	for _, taskID := range ms.byStatus[TaskStatusPending] {
		task := ms.tasks[taskID]

		rank := slices.Index(queues, task.Queue)
		if rank < 0 || task.ScheduledAt.After(now) {
			continue
		}

		if best == nil || rank < bestRank ||
			(rank == bestRank && task.ScheduledAt.Before(best.ScheduledAt)) {
			best = task
			bestRank = rank
		}
	}

	if best == nil {
		return nil, ErrNoTaskToClaim
	}

	lockUntil := now.Add(lockDuration)
	best.Status = TaskStatusProcessing
	best.LockedUntil = &lockUntil
	best.LockedBy = &workerID
	ms.moveStatus(best.ID, TaskStatusPending, TaskStatusProcessing)

	taskCopy := *best
	return &taskCopy, nil
}

// CompleteTask implements WorkerRepository
func (ms *MemoryStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.processingTask(taskID)
	if err != nil {
		return err
	}

	now := ms.now()
	task.Status = TaskStatusCompleted
	task.ProcessedAt = &now
	task.LockedUntil = nil
	task.LockedBy = nil
	ms.moveStatus(taskID, TaskStatusProcessing, TaskStatusCompleted)

	return nil
}

// FailTask implements WorkerRepository
func (ms *MemoryStorage) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.processingTask(taskID)
	if err != nil {
		return err
	}

	task.RetryCount++
	task.Error = &errorMsg
	task.LockedUntil = nil
	task.LockedBy = nil

	if task.RetryCount > task.MaxRetries {
		task.Status = TaskStatusFailed
		ms.moveStatus(taskID, TaskStatusProcessing, TaskStatusFailed)
		return nil
	}

	task.Status = TaskStatusPending
	task.ScheduledAt = ms.now().Add(task.RetryDelay(task.RetryCount))
	ms.moveStatus(taskID, TaskStatusProcessing, TaskStatusPending)

	return nil
}

// MoveToDLQ implements WorkerRepository
func (ms *MemoryStorage) MoveToDLQ(ctx context.Context, taskID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, exists := ms.tasks[taskID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	entry := newDLQEntry(task, ms.now())
	ms.dlq[entry.ID] = entry

	ms.removeFromStatusIndex(taskID, task.Status)
	delete(ms.tasks, taskID)

	return nil
}

// ExtendLock implements WorkerRepository
func (ms *MemoryStorage) ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.processingTask(taskID)
	if err != nil {
		return err
	}

	lockUntil := ms.now().Add(duration)
	task.LockedUntil = &lockUntil

	return nil
}

// ReapExpiredLocks implements LockReaper: processing tasks whose lock has passed
// go back to pending with their retry count unchanged.
func (ms *MemoryStorage) ReapExpiredLocks(ctx context.Context) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	var expired []uuid.UUID
	for _, taskID := range ms.byStatus[TaskStatusProcessing] {
		task := ms.tasks[taskID]
		if task.LockedUntil != nil && task.LockedUntil.Before(now) {
			expired = append(expired, taskID)
		}
	}

	for _, taskID := range expired {
		task := ms.tasks[taskID]
		task.Status = TaskStatusPending
		task.LockedUntil = nil
		task.LockedBy = nil
		ms.moveStatus(taskID, TaskStatusProcessing, TaskStatusPending)
	}

	return len(expired), nil
}

// GetTask returns a copy of the task; tasks moved to the DLQ are no longer found
func (ms *MemoryStorage) GetTask(ctx context.Context, taskID uuid.UUID) (*Task, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	task, exists := ms.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	taskCopy := *task
	return &taskCopy, nil
}

// ListTasks returns copies of all tasks in the given queue, oldest first
func (ms *MemoryStorage) ListTasks(ctx context.Context, queue string) ([]*Task, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var tasks []*Task
	for _, task := range ms.tasks {
		if task.Queue != queue {
			continue
		}
		taskCopy := *task
		tasks = append(tasks, &taskCopy)
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})

	return tasks, nil
}

// ListDLQ returns all dead-lettered tasks
func (ms *MemoryStorage) ListDLQ(ctx context.Context) ([]*TasksDlq, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	items := make([]*TasksDlq, 0, len(ms.dlq))
	for _, item := range ms.dlq {
		itemCopy := *item
		items = append(items, &itemCopy)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].FailedAt.Before(items[j].FailedAt)
	})

	return items, nil
}

// CreateEntry implements SchedulerRepository
func (ms *MemoryStorage) CreateEntry(ctx context.Context, entry *ScheduleEntry) (bool, error) {
	if entry == nil || entry.ID == "" {
		return false, ErrInvalidEntryID
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.entries[entry.ID]; exists {
		return false, nil
	}

	ms.entries[entry.ID] = cloneEntry(entry)
	return true, nil
}

// GetEntry implements SchedulerRepository
func (ms *MemoryStorage) GetEntry(ctx context.Context, id string) (*ScheduleEntry, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	entry, exists := ms.entries[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}

	return cloneEntry(entry), nil
}

// ListEntries implements SchedulerRepository
func (ms *MemoryStorage) ListEntries(ctx context.Context) ([]*ScheduleEntry, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	entries := make([]*ScheduleEntry, 0, len(ms.entries))
	for _, entry := range ms.entries {
		entries = append(entries, cloneEntry(entry))
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})

	return entries, nil
}

// AdvanceEntry implements SchedulerRepository
func (ms *MemoryStorage) AdvanceEntry(ctx context.Context, entry *ScheduleEntry, next time.Time, task *Task) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	stored, exists := ms.entries[entry.ID]
	if !exists {
		return false, fmt.Errorf("%w: %s", ErrEntryNotFound, entry.ID)
	}

	if !stored.NextRunAt.Equal(entry.NextRunAt) {
		return false, nil
	}

	if err := ms.createTaskLocked(task); err != nil {
		return false, err
	}

	lastRun := stored.NextRunAt
	stored.LastRunAt = &lastRun
	stored.NextRunAt = next

	return true, nil
}

// RemoveEntry implements SchedulerRepository
func (ms *MemoryStorage) RemoveEntry(ctx context.Context, id string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.entries[id]; !exists {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}

	delete(ms.entries, id)
	return nil
}

// Helper methods

func (ms *MemoryStorage) processingTask(taskID uuid.UUID) (*Task, error) {
	task, exists := ms.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	if task.Status != TaskStatusProcessing {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotProcessing, taskID)
	}

	return task, nil
}

func (ms *MemoryStorage) moveStatus(taskID uuid.UUID, from, to TaskStatus) {
	ms.removeFromStatusIndex(taskID, from)
	ms.byStatus[to] = append(ms.byStatus[to], taskID)
}

func (ms *MemoryStorage) removeFromStatusIndex(taskID uuid.UUID, status TaskStatus) {
	ms.byStatus[status] = slices.DeleteFunc(ms.byStatus[status], func(id uuid.UUID) bool {
		return id == taskID
	})
}

func newDLQEntry(task *Task, now time.Time) *TasksDlq {
	entry := &TasksDlq{
		ID:         uuid.New(),
		TaskID:     task.ID,
		Queue:      task.Queue,
		TaskType:   task.TaskType,
		TaskName:   task.TaskName,
		Payload:    task.Payload,
		RetryCount: task.RetryCount,
		FailedAt:   now,
		CreatedAt:  task.CreatedAt,
	}

	if task.Error != nil {
		entry.Error = *task.Error
	}

	return entry
}

func cloneEntry(e *ScheduleEntry) *ScheduleEntry {
	c := *e
	c.Backoff = slices.Clone(e.Backoff)
	if e.LastRunAt != nil {
		t := *e.LastRunAt
		c.LastRunAt = &t
	}
	return &c
}
