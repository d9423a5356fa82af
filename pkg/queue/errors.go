package queue

import "errors"

// Construction and enqueueing.
var (
	ErrRepositoryNil  = errors.New("repository cannot be nil")
	ErrPayloadNil     = errors.New("payload cannot be nil")
	ErrPayloadMarshal = errors.New("failed to marshal payload to JSON")
	ErrTaskCreate     = errors.New("failed to create task in storage")
)

// Storage state.
var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrTaskNotProcessing = errors.New("task is not in processing state")

	// ErrNoTaskToClaim means the queues are idle. Workers do not treat it as a failure.
	ErrNoTaskToClaim = errors.New("no task available to claim")
)

// Worker lifecycle and execution.
var (
	ErrWorkerStarted    = errors.New("worker already started")
	ErrWorkerNotStarted = errors.New("worker not started")
	ErrShutdownTimeout  = errors.New("worker shutdown timed out with tasks still running")
	ErrNoHandlers       = errors.New("no task handlers registered")
	ErrHandlerNotFound  = errors.New("no handler registered for task type")

	// ErrTaskTimeout fails an attempt that outlived the task's timeout.
	ErrTaskTimeout = errors.New("task exceeded its execution timeout")

	// ErrSkipRetry, wrapped into a handler error, sends the task straight to the DLQ.
	ErrSkipRetry = errors.New("task failed permanently, skipping retries")

	ErrFailedToGetNextTask      = errors.New("failed to get next task from storage")
	ErrFailedToUpdateTaskStatus = errors.New("failed to update task status")
	ErrFailedToMoveToDLQ        = errors.New("failed to move task to dead letter queue")
)

// Scheduling.
var (
	ErrInvalidSchedule = errors.New("invalid schedule format")
	ErrInvalidEntryID  = errors.New("schedule entry id cannot be empty")
	ErrEntryNotFound   = errors.New("schedule entry not found")
)
