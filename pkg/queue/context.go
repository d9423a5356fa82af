package queue

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// TaskInfo describes the task a handler is executing.
type TaskInfo struct {
	ID         uuid.UUID
	Name       string
	Queue      string
	RetryCount int8
	MaxRetries int8
}

type taskInfoKey struct{}

func withTaskInfo(ctx context.Context, info TaskInfo) context.Context {
	return context.WithValue(ctx, taskInfoKey{}, info)
}

// TaskInfoFromContext returns the running task's metadata, if any.
func TaskInfoFromContext(ctx context.Context) (TaskInfo, bool) {
	if ctx == nil {
		return TaskInfo{}, false
	}
	info, ok := ctx.Value(taskInfoKey{}).(TaskInfo)
	return info, ok
}

// LoggerExtractor adds a "task" group with id, name, queue and retry to log
// records emitted inside a handler.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		info, ok := TaskInfoFromContext(ctx)
		if !ok {
			return slog.Attr{}, false
		}
		return slog.Group("task",
			slog.String("id", info.ID.String()),
			slog.String("name", info.Name),
			slog.String("queue", info.Queue),
			slog.Int("retry", int(info.RetryCount)),
		), true
	}
}
