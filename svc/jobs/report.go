package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrymomot/subtracker/pkg/email"
	"github.com/dmitrymomot/subtracker/pkg/logger"
	"github.com/dmitrymomot/subtracker/pkg/queue"
	"github.com/dmitrymomot/subtracker/svc/subscriptions"
)

// GenerateMonthlyReport enqueues a report for every user covering the month
// before the current UTC month.
func (s *Service) GenerateMonthlyReport(ctx context.Context) error {
	month := subscriptions.PreviousMonth(s.now())

	users, err := s.store.AllUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	var enqueued int
	for _, u := range users {
		_, err := s.enqueuer.Enqueue(ctx,
			ReportPayload{UserID: u.ID, Month: month},
			s.itemOptions(QueueReports, TaskSendMonthlyReport)...,
		)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to enqueue monthly report",
				logger.UserID(u.ID),
				logger.Month(month),
				logger.Error(err),
			)
			continue
		}
		enqueued++
	}

	s.logger.InfoContext(ctx, "monthly reports enqueued",
		logger.Month(month),
		logger.Count(enqueued),
	)
	return nil
}

// SendMonthlyReport emails one user's spending summary. Users who spent nothing
// get no email.
func (s *Service) SendMonthlyReport(ctx context.Context, p ReportPayload) error {
	log := s.logger.With(logger.UserID(p.UserID), logger.Month(p.Month))

	summary, err := subscriptions.MonthlySummary(ctx, s.store, p.UserID, p.Month)
	if errors.Is(err, subscriptions.ErrInvalidMonth) {
		return errors.Join(queue.ErrSkipRetry, err)
	}
	if err != nil {
		return fmt.Errorf("summarize %s for user %d: %w", p.Month, p.UserID, err)
	}

	if summary.IsZero() {
		return nil
	}

	user, err := s.store.UserByID(ctx, p.UserID)
	if errors.Is(err, subscriptions.ErrUserNotFound) {
		log.WarnContext(ctx, "user not found, skipping monthly report")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load user %d: %w", p.UserID, err)
	}

	err = s.notifier.SendMonthlySummary(ctx, user.Email, summary)
	switch {
	case err == nil:
		log.InfoContext(ctx, "monthly report sent")
		return nil
	case email.IsTemporary(err):
		log.WarnContext(ctx, "temporary failure sending monthly report, will retry", logger.Error(err))
		return err
	default:
		log.ErrorContext(ctx, "failed to send monthly report", logger.Error(err))
		return nil
	}
}
