package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Handler executes tasks whose TaskName equals Name.
type Handler interface {
	Name() string
	Handle(ctx context.Context, payload json.RawMessage) error
}

type (
	// TaskHandlerFunc handles a one-time task with its decoded payload.
	TaskHandlerFunc[T any] func(ctx context.Context, payload T) error

	// PeriodicTaskHandlerFunc handles a scheduled occurrence. Occurrences carry no payload.
	PeriodicTaskHandlerFunc func(ctx context.Context) error
)

// NewTaskHandler registers handler under the type name of T, the same name
// Enqueue gives a T payload by default.
func NewTaskHandler[T any](handler TaskHandlerFunc[T]) Handler {
	var zero T
	return NewNamedTaskHandler(taskNameOf(zero), handler)
}

// NewNamedTaskHandler decodes the JSON payload into T before calling handler.
// A payload that does not decode fails with ErrSkipRetry.
func NewNamedTaskHandler[T any](name string, handler TaskHandlerFunc[T]) Handler {
	return namedHandler{name: name, fn: func(ctx context.Context, raw json.RawMessage) error {
		var payload T
		if err := json.Unmarshal(raw, &payload); err != nil {
			return errors.Join(ErrSkipRetry, fmt.Errorf("decode %s payload: %w", name, err))
		}
		return handler(ctx, payload)
	}}
}

// NewPeriodicTaskHandler handles tasks created by the Scheduler for entries with this task name.
func NewPeriodicTaskHandler(name string, handler PeriodicTaskHandlerFunc) Handler {
	return namedHandler{name: name, fn: func(ctx context.Context, _ json.RawMessage) error {
		return handler(ctx)
	}}
}

type namedHandler struct {
	name string
	fn   func(ctx context.Context, raw json.RawMessage) error
}

func (h namedHandler) Name() string { return h.name }

func (h namedHandler) Handle(ctx context.Context, payload json.RawMessage) error {
	return h.fn(ctx, payload)
}

// taskNameOf is the package-qualified type name of payload without pointer
// stars, e.g. "jobs.ReminderPayload".
func taskNameOf(payload any) string {
	return strings.TrimLeft(fmt.Sprintf("%T", payload), "*")
}
