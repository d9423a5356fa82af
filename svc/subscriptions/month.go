package subscriptions

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const monthLayout = "2006-01"

var monthRegex = regexp.MustCompile(`^\d{4}-\d{2}$`)

// ParseMonth parses "YYYY-MM" and returns the first instant of that month in UTC.
func ParseMonth(month string) (time.Time, error) {
	if !monthRegex.MatchString(month) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidMonth, month)
	}
	year, _ := strconv.Atoi(month[:4])
	m, _ := strconv.Atoi(month[5:])
	if m < 1 || m > 12 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidMonth, month)
	}
	return time.Date(year, time.Month(m), 1, 0, 0, 0, 0, time.UTC), nil
}

// MonthRange returns [first day of month, first day of next month).
func MonthRange(month string) (from, to time.Time, err error) {
	from, err = ParseMonth(month)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, from.AddDate(0, 1, 0), nil
}

// PreviousMonth returns the month before now's month as "YYYY-MM", in UTC.
// January maps to December of the previous year.
func PreviousMonth(now time.Time) string {
	now = now.UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, -1, 0).Format(monthLayout)
}
