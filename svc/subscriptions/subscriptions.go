package subscriptions

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Subscription is a recurring charge a user tracks.
// NextChargeDate is a calendar date stored as UTC midnight.
type Subscription struct {
	ID             int64
	UserID         int64
	Name           string
	Amount         decimal.Decimal
	BillingCycle   string
	NextChargeDate time.Time
	Category       string // empty when uncategorized
}

type User struct {
	ID       int64
	Username string
	Email    string
}

// NewUser is an account to create. PasswordHash is stored as given.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
}

// ReminderLog records a single reminder attempt. SentAt is assigned by the store.
type ReminderLog struct {
	ID             int64
	SubscriptionID int64
	Message        string
	Success        bool
	SentAt         time.Time
}

// Store is the read side the background jobs need plus the reminder audit log.
type Store interface {
	// SubscriptionsDueIn returns every subscription whose next charge date equals
	// today plus one of offsets days.
	SubscriptionsDueIn(ctx context.Context, today time.Time, offsets []int) ([]Subscription, error)
	SubscriptionByID(ctx context.Context, id int64) (Subscription, error)
	// UserSubscriptionsBetween returns the user's subscriptions charged in [from, to).
	UserSubscriptionsBetween(ctx context.Context, userID int64, from, to time.Time) ([]Subscription, error)

	AllUsers(ctx context.Context) ([]User, error)
	UserByID(ctx context.Context, id int64) (User, error)

	CreateReminderLog(ctx context.Context, log ReminderLog) (ReminderLog, error)
}

// UserCreator adds accounts. Both stores implement it.
type UserCreator interface {
	// CreateUser returns ErrEmailTaken when the email already belongs to a user.
	CreateUser(ctx context.Context, u NewUser) (User, error)
}

// DateOf truncates t to its calendar date at UTC midnight.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DueDates returns today+offset for each offset, as UTC dates.
func DueDates(today time.Time, offsets []int) []time.Time {
	base := DateOf(today)
	dates := make([]time.Time, 0, len(offsets))
	for _, off := range offsets {
		dates = append(dates, base.AddDate(0, 0, off))
	}
	return dates
}
