package logger

import "log/slog"

// Error logs err under "error". Nil yields an empty Attr, which slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

func SubscriptionID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("subscription_id", id)
}

func TaskID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("task_id", id)
}

func TaskName(name string) slog.Attr {
	return slog.String("task_name", name)
}

// JobID records a scheduled job (schedule entry) identifier.
func JobID(id string) slog.Attr {
	return slog.String("job_id", id)
}

func Queue(name string) slog.Attr {
	return slog.String("queue", name)
}

// Month records a reporting month formatted as YYYY-MM.
func Month(month string) slog.Attr {
	return slog.String("month", month)
}

func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}

func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}
