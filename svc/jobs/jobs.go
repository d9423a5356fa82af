package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/subtracker/pkg/logger"
	"github.com/dmitrymomot/subtracker/pkg/queue"
	"github.com/dmitrymomot/subtracker/svc/subscriptions"
)

// Queue names. Workers subscribe to one or more of them.
const (
	QueueReminders = "reminders"
	QueueReports   = "reports"
	QueueEmails    = "emails"
)

// Logical ids of the recurring schedule entries.
const (
	ReminderJobID = "subscription_payment_reminder_job"
	ReportJobID   = "monthly_report_job"
)

// Task names, i.e. handler identities.
const (
	TaskCheckUpcomingPayments = "check_upcoming_payments"
	TaskGenerateMonthlyReport = "generate_monthly_report"
	TaskSendPaymentReminder   = "send_payment_reminder"
	TaskSendMonthlyReport     = "send_monthly_report"
	TaskSendRegistrationEmail = "send_registration_email"
)

// ReminderOffsets are the day offsets from today that trigger a payment reminder.
func ReminderOffsets() []int { return []int{1, 7} }

type (
	ReminderPayload struct {
		SubscriptionID int64 `json:"subscription_id"`
	}

	ReportPayload struct {
		UserID int64  `json:"user_id"`
		Month  string `json:"month"`
	}

	RegistrationPayload struct {
		Email    string `json:"email"`
		Username string `json:"username"`
	}
)

// Enqueuer is satisfied by *queue.Enqueuer.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload any, opts ...queue.EnqueueOption) (uuid.UUID, error)
}

// Notifier is satisfied by *notifier.Notifier.
type Notifier interface {
	SendReminder(ctx context.Context, to, subscriptionName string, nextChargeDate time.Time) error
	SendMonthlySummary(ctx context.Context, to string, summary subscriptions.Summary) error
	SendRegistrationEmail(ctx context.Context, to, username string) error
}

// Service holds the job functions. Orchestrators discover work and enqueue one
// task per item; item jobs handle a single subscription or user.
type Service struct {
	store    subscriptions.Store
	notifier Notifier
	enqueuer Enqueuer
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithConfig(cfg Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now, used to derive "today" and the report month.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(store subscriptions.Store, notifier Notifier, enqueuer Enqueuer, opts ...Option) *Service {
	s := &Service{
		store:    store,
		notifier: notifier,
		enqueuer: enqueuer,
		cfg:      DefaultConfig(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("jobs"))
	return s
}

// Handlers returns the queue handlers for every task this service runs.
func (s *Service) Handlers() []queue.Handler {
	return []queue.Handler{
		queue.NewPeriodicTaskHandler(TaskCheckUpcomingPayments, s.CheckUpcomingPayments),
		queue.NewPeriodicTaskHandler(TaskGenerateMonthlyReport, s.GenerateMonthlyReport),
		queue.NewNamedTaskHandler[ReminderPayload](TaskSendPaymentReminder, s.SendPaymentReminder),
		queue.NewNamedTaskHandler[ReportPayload](TaskSendMonthlyReport, s.SendMonthlyReport),
		queue.NewNamedTaskHandler[RegistrationPayload](TaskSendRegistrationEmail, s.SendRegistrationEmail),
	}
}

// itemOptions is the retry policy shared by per-item jobs.
func (s *Service) itemOptions(queueName, taskName string) []queue.EnqueueOption {
	return []queue.EnqueueOption{
		queue.WithQueue(queueName),
		queue.WithTaskName(taskName),
		queue.WithRetryPolicy(queue.RetryPolicy{MaxRetries: s.cfg.MaxRetries, Backoff: s.cfg.Backoff}),
		queue.WithTimeout(s.cfg.Timeout),
	}
}
