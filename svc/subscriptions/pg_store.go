package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/subtracker/pkg/pg"
)

// DB is the subset of *pgxpool.Pool the store needs. pgx.Tx satisfies it too.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PgStore implements Store on PostgreSQL.
type PgStore struct {
	db DB
}

func NewPgStore(db DB) *PgStore {
	return &PgStore{db: db}
}

const subscriptionColumns = `id, user_id, name, price::text, billing_cycle, next_payment_date, COALESCE(category, '')`

func (s *PgStore) SubscriptionsDueIn(ctx context.Context, today time.Time, offsets []int) ([]Subscription, error) {
	if len(offsets) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE next_payment_date = ANY($1::date[])
		ORDER BY id;
	`

	rows, err := s.db.Query(ctx, query, DueDates(today, offsets))
	if err != nil {
		return nil, fmt.Errorf("failed to query due subscriptions: %w", err)
	}
	return collectSubscriptions(rows)
}

func (s *PgStore) SubscriptionByID(ctx context.Context, id int64) (Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE id = $1;
	`

	sub, err := scanSubscription(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return Subscription{}, ErrSubscriptionNotFound
		}
		return Subscription{}, fmt.Errorf("failed to get subscription %d: %w", id, err)
	}
	return sub, nil
}

func (s *PgStore) UserSubscriptionsBetween(ctx context.Context, userID int64, from, to time.Time) ([]Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1
		  AND next_payment_date >= $2::date
		  AND next_payment_date < $3::date
		ORDER BY id;
	`

	rows, err := s.db.Query(ctx, query, userID, DateOf(from), DateOf(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions for user %d: %w", userID, err)
	}
	return collectSubscriptions(rows)
}

func (s *PgStore) AllUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.Query(ctx, `SELECT id, username, email FROM users ORDER BY id;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (User, error) {
		var u User
		err := row.Scan(&u.ID, &u.Username, &u.Email)
		return u, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan users: %w", err)
	}
	return users, nil
}

func (s *PgStore) UserByID(ctx context.Context, id int64) (User, error) {
	var u User
	err := s.db.QueryRow(ctx, `SELECT id, username, email FROM users WHERE id = $1;`, id).
		Scan(&u.ID, &u.Username, &u.Email)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return u, nil
}

func (s *PgStore) CreateUser(ctx context.Context, u NewUser) (User, error) {
	query := `
		INSERT INTO users (username, email, password)
		VALUES ($1, $2, $3)
		RETURNING id;
	`

	var id int64
	if err := s.db.QueryRow(ctx, query, u.Username, u.Email, u.PasswordHash).Scan(&id); err != nil {
		if pg.IsDuplicateKeyError(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return User{ID: id, Username: u.Username, Email: u.Email}, nil
}

func (s *PgStore) CreateReminderLog(ctx context.Context, log ReminderLog) (ReminderLog, error) {
	query := `
		INSERT INTO reminder_logs (subscription_id, message, success)
		VALUES ($1, $2, $3)
		RETURNING id, sent_at;
	`

	err := s.db.QueryRow(ctx, query, log.SubscriptionID, log.Message, log.Success).
		Scan(&log.ID, &log.SentAt)
	if err != nil {
		if pg.IsForeignKeyViolationError(err) {
			return ReminderLog{}, ErrSubscriptionNotFound
		}
		return ReminderLog{}, fmt.Errorf("failed to create reminder log: %w", err)
	}
	return log, nil
}

func collectSubscriptions(rows pgx.Rows) ([]Subscription, error) {
	subs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Subscription, error) {
		return scanSubscription(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscriptions: %w", err)
	}
	return subs, nil
}

func scanSubscription(row pgx.Row) (Subscription, error) {
	var (
		sub   Subscription
		price string
	)
	if err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.Name,
		&price,
		&sub.BillingCycle,
		&sub.NextChargeDate,
		&sub.Category,
	); err != nil {
		return Subscription{}, err
	}

	amount, err := decimal.NewFromString(price)
	if err != nil {
		return Subscription{}, errors.Join(ErrInvalidAmount, err)
	}
	sub.Amount = amount
	sub.NextChargeDate = DateOf(sub.NextChargeDate)
	return sub, nil
}
