package queue

import (
	"time"

	"github.com/google/uuid"
)

// DefaultQueueName is the default queue name used when no queue is specified
const DefaultQueueName = "default"

// TaskType represents the type of task
type TaskType string

const (
	TaskTypeOneTime  TaskType = "one-time"
	TaskTypePeriodic TaskType = "periodic"
)

// TaskStatus represents the status of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// defaultRetryStep is used when a task carries no explicit backoff list.
const defaultRetryStep = 30 * time.Second

// RetryPolicy describes how many times a failed task is re-attempted and how long
// to wait before each attempt. Backoff[i] is the delay before retry i+1; when there
// are more retries than delays the last delay is reused.
type RetryPolicy struct {
	MaxRetries int8
	Backoff    []time.Duration
}

// Task represents a task in the queue
type Task struct {
	ID          uuid.UUID       `json:"id"`
	Queue       string          `json:"queue"`
	TaskType    TaskType        `json:"task_type"`
	TaskName    string          `json:"task_name"`
	Payload     []byte          `json:"payload,omitempty"`
	Status      TaskStatus      `json:"status"`
	RetryCount  int8            `json:"retry_count"`
	MaxRetries  int8            `json:"max_retries"`
	Backoff     []time.Duration `json:"backoff,omitempty"`
	Timeout     time.Duration   `json:"timeout,omitempty"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	LockedUntil *time.Time      `json:"locked_until,omitempty"`
	LockedBy    *uuid.UUID      `json:"locked_by,omitempty"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	Error       *string         `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// RetryDelay returns the delay before the given retry (1-based).
// Without an explicit backoff list the delay grows linearly: 30s, 60s, 90s...
func (t *Task) RetryDelay(retry int8) time.Duration {
	if retry < 1 {
		retry = 1
	}
	if len(t.Backoff) == 0 {
		return time.Duration(retry) * defaultRetryStep
	}
	idx := min(int(retry)-1, len(t.Backoff)-1)
	return t.Backoff[idx]
}

// Exhausted reports whether the current attempt is the last one allowed.
func (t *Task) Exhausted() bool {
	return t.RetryCount >= t.MaxRetries
}

// TasksDlq represents a task in the dead letter queue
// Stores failed tasks that exhausted all retries for manual inspection and recovery
type TasksDlq struct {
	ID         uuid.UUID `json:"id"`
	TaskID     uuid.UUID `json:"task_id"`
	Queue      string    `json:"queue"`
	TaskType   TaskType  `json:"task_type"`
	TaskName   string    `json:"task_name"`
	Payload    []byte    `json:"payload,omitempty"`
	Error      string    `json:"error"`
	RetryCount int8      `json:"retry_count"`
	FailedAt   time.Time `json:"failed_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// ScheduleEntry is a durable recurring registration keyed by a stable logical id.
// Every occurrence of the schedule materialises as a periodic Task named TaskName.
type ScheduleEntry struct {
	ID         string          `json:"id"`
	TaskName   string          `json:"task_name"`
	Queue      string          `json:"queue"`
	Spec       string          `json:"spec"`
	MaxRetries int8            `json:"max_retries"`
	Backoff    []time.Duration `json:"backoff,omitempty"`
	Timeout    time.Duration   `json:"timeout,omitempty"`
	NextRunAt  time.Time       `json:"next_run_at"`
	LastRunAt  *time.Time      `json:"last_run_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
