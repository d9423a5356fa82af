package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/a-h/templ"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/subtracker/pkg/email"
	"github.com/dmitrymomot/subtracker/pkg/email/templates"
	"github.com/dmitrymomot/subtracker/pkg/logger"
	"github.com/dmitrymomot/subtracker/svc/subscriptions"
)

// Email tags, used by the provider for per-type stats.
const (
	TagReminder     = "payment-reminder"
	TagSummary      = "monthly-summary"
	TagRegistration = "registration"
)

const dateLayout = "2006-01-02"

var ErrRender = errors.New("notifier: failed to render email")

// Notifier composes user-facing emails and hands them to an email.EmailSender.
// Errors from the sender keep their email.ErrTemporaryFailure or
// email.ErrPermanentFailure classification.
type Notifier struct {
	sender email.EmailSender
	logger *slog.Logger
}

type Option func(*Notifier)

func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

func New(sender email.EmailSender, opts ...Option) *Notifier {
	n := &Notifier{
		sender: sender,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.With(logger.Component("notifier"))
	return n
}

// SendReminder notifies about an upcoming charge.
func (n *Notifier) SendReminder(ctx context.Context, to, subscriptionName string, nextChargeDate time.Time) error {
	subject := "Upcoming payment reminder: " + subscriptionName
	body := reminderEmail(subscriptionName, nextChargeDate.Format(dateLayout))
	return n.send(ctx, to, subject, TagReminder, body)
}

// SendMonthlySummary sends the spending breakdown for summary.Month.
func (n *Notifier) SendMonthlySummary(ctx context.Context, to string, summary subscriptions.Summary) error {
	subject := "Your subscription summary for " + summary.Month
	return n.send(ctx, to, subject, TagSummary, summaryEmail(summary))
}

// SendRegistrationEmail confirms a new account.
func (n *Notifier) SendRegistrationEmail(ctx context.Context, to, username string) error {
	return n.send(ctx, to, "Successfully signed up", TagRegistration, registrationEmail(username))
}

func (n *Notifier) send(ctx context.Context, to, subject, tag string, body templ.Component) error {
	html, err := templates.Render(ctx, templates.Layout(subject, body))
	if err != nil {
		return errors.Join(ErrRender, email.ErrPermanentFailure, err)
	}

	err = n.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   to,
		Subject:  subject,
		BodyHTML: html,
		Tag:      tag,
	})
	if err != nil {
		n.logger.DebugContext(ctx, "email not sent",
			slog.String("tag", tag),
			slog.Bool("temporary", email.IsTemporary(err)),
			logger.Error(err),
		)
		return fmt.Errorf("send %s email: %w", tag, err)
	}
	return nil
}

type categoryRow struct {
	Category string
	Amount   string
}

// categoryRows orders categories alphabetically for the summary table.
func categoryRows(byCategory map[string]decimal.Decimal) []categoryRow {
	names := make([]string, 0, len(byCategory))
	for name := range byCategory {
		names = append(names, name)
	}
	slices.Sort(names)

	rows := make([]categoryRow, 0, len(names))
	for _, name := range names {
		rows = append(rows, categoryRow{Category: name, Amount: byCategory[name].StringFixed(2)})
	}
	return rows
}
