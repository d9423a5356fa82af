package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// EnqueuerRepository persists new tasks.
type EnqueuerRepository interface {
	CreateTask(ctx context.Context, task *Task) error
}

// Enqueuer turns payloads into pending one-time tasks.
type Enqueuer struct {
	repo     EnqueuerRepository
	defaults execSpec
}

// NewEnqueuer returns an Enqueuer writing to repo. Tasks go to DefaultQueueName
// with 3 retries unless configured otherwise.
func NewEnqueuer(repo EnqueuerRepository, opts ...EnqueuerOption) (*Enqueuer, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	defaults := defaultExecSpec()
	for _, opt := range opts {
		opt(&defaults)
	}

	return &Enqueuer{repo: repo, defaults: defaults}, nil
}

// Enqueue stores payload as a JSON task and returns its id. The task name is the
// payload's type name unless WithTaskName says otherwise, so NewTaskHandler for
// the same type picks it up.
func (e *Enqueuer) Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) (uuid.UUID, error) {
	if payload == nil {
		return uuid.Nil, ErrPayloadNil
	}

	o := enqueueOptions{execSpec: e.defaults}
	o.retry.Backoff = slices.Clone(o.retry.Backoff)
	for _, opt := range opts {
		opt(&o)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, errors.Join(ErrPayloadMarshal, fmt.Errorf("payload of type %T: %w", payload, err))
	}
	if o.taskName == "" {
		o.taskName = taskNameOf(payload)
	}

	now := time.Now()
	runAt := now.Add(o.delay)
	if o.scheduledAt != nil {
		runAt = *o.scheduledAt
	}

	task := &Task{
		ID:          uuid.New(),
		Queue:       o.queue,
		TaskType:    TaskTypeOneTime,
		TaskName:    o.taskName,
		Payload:     data,
		Status:      TaskStatusPending,
		MaxRetries:  o.retry.MaxRetries,
		Backoff:     o.retry.Backoff,
		Timeout:     o.timeout,
		ScheduledAt: runAt,
		CreatedAt:   now,
	}

	if err := e.repo.CreateTask(ctx, task); err != nil {
		return uuid.Nil, errors.Join(ErrTaskCreate,
			fmt.Errorf("task %q in queue %q: %w", task.TaskName, task.Queue, err))
	}
	return task.ID, nil
}
