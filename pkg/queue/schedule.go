package queue

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule determines when a periodic task should run
type Schedule interface {
	Next(from time.Time) time.Time
	String() string
}

// cronSchedule wraps a parsed cron expression and keeps its source text,
// so entries can be persisted and re-parsed by any scheduler instance.
type cronSchedule struct {
	spec     string
	schedule cron.Schedule
}

func (s cronSchedule) Next(from time.Time) time.Time {
	return s.schedule.Next(from)
}

func (s cronSchedule) String() string {
	return s.spec
}

// Cron parses a standard five-field cron expression or a descriptor such as
// "@daily" or "@every 1h30m". Expressions without a CRON_TZ= prefix are
// evaluated in the location of the time passed to Next.
func Cron(spec string) (Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.Join(ErrInvalidSchedule, errors.New("empty expression"))
	}

	parsed, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, errors.Join(ErrInvalidSchedule, fmt.Errorf("%q: %w", spec, err))
	}

	return cronSchedule{spec: spec, schedule: parsed}, nil
}

// MustCron is like Cron but panics on an invalid expression.
// Intended for package-level constants.
func MustCron(spec string) Schedule {
	s, err := Cron(spec)
	if err != nil {
		panic(err)
	}
	return s
}

// EveryInterval creates a schedule that runs at fixed intervals.
// Sub-second precision is truncated; intervals under a second run every second.
func EveryInterval(d time.Duration) Schedule {
	every := cron.Every(d)
	return cronSchedule{spec: "@every " + every.Delay.String(), schedule: every}
}

// DailyAt creates a schedule that runs daily at specified time
func DailyAt(hour, minute int) (Schedule, error) {
	return Cron(fmt.Sprintf("%d %d * * *", minute, hour))
}

// WeeklyOn creates a schedule that runs weekly on specified day and time
func WeeklyOn(weekday time.Weekday, hour, minute int) (Schedule, error) {
	return Cron(fmt.Sprintf("%d %d * * %d", minute, hour, int(weekday)))
}

// MonthlyOn creates a schedule that runs monthly on specified day and time.
// Days missing from a month (e.g. the 31st) are skipped for that month.
func MonthlyOn(day, hour, minute int) (Schedule, error) {
	return Cron(fmt.Sprintf("%d %d %d * *", minute, hour, day))
}
