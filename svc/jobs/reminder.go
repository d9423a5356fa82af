package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/subtracker/pkg/email"
	"github.com/dmitrymomot/subtracker/pkg/logger"
	"github.com/dmitrymomot/subtracker/svc/subscriptions"
)

// CheckUpcomingPayments enqueues one reminder per subscription charged in
// ReminderOffsets days. A failed enqueue is logged and the loop moves on; only a
// failed lookup fails the run.
func (s *Service) CheckUpcomingPayments(ctx context.Context) error {
	subs, err := s.store.SubscriptionsDueIn(ctx, s.now(), ReminderOffsets())
	if err != nil {
		return fmt.Errorf("find subscriptions due: %w", err)
	}

	if len(subs) == 0 {
		s.logger.InfoContext(ctx, "no upcoming payments found")
		return nil
	}

	var enqueued int
	for _, sub := range subs {
		_, err := s.enqueuer.Enqueue(ctx,
			ReminderPayload{SubscriptionID: sub.ID},
			s.itemOptions(QueueReminders, TaskSendPaymentReminder)...,
		)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to enqueue payment reminder",
				logger.SubscriptionID(sub.ID),
				logger.Error(err),
			)
			continue
		}
		enqueued++
	}

	s.logger.InfoContext(ctx, "payment reminders enqueued",
		logger.Count(enqueued),
		slog.Int("due", len(subs)),
	)
	return nil
}

// SendPaymentReminder emails the owner of one subscription and records the
// outcome. Temporary delivery failures are returned so the queue retries them,
// and no log entry is written for those attempts.
func (s *Service) SendPaymentReminder(ctx context.Context, p ReminderPayload) error {
	log := s.logger.With(logger.SubscriptionID(p.SubscriptionID))

	sub, err := s.store.SubscriptionByID(ctx, p.SubscriptionID)
	if errors.Is(err, subscriptions.ErrSubscriptionNotFound) {
		log.WarnContext(ctx, "subscription not found, skipping reminder")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load subscription %d: %w", p.SubscriptionID, err)
	}

	user, err := s.store.UserByID(ctx, sub.UserID)
	if errors.Is(err, subscriptions.ErrUserNotFound) {
		log.WarnContext(ctx, "subscription owner not found, skipping reminder", logger.UserID(sub.UserID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load user %d: %w", sub.UserID, err)
	}

	err = s.notifier.SendReminder(ctx, user.Email, sub.Name, sub.NextChargeDate)
	switch {
	case err == nil:
		s.writeReminderLog(ctx, subscriptions.ReminderLog{
			SubscriptionID: sub.ID,
			Message:        "Reminder sent for " + sub.Name,
			Success:        true,
		})
		log.InfoContext(ctx, "payment reminder sent",
			logger.UserID(user.ID),
			slog.String("next_charge_date", sub.NextChargeDate.Format(time.DateOnly)),
		)
		return nil

	case email.IsTemporary(err):
		log.WarnContext(ctx, "temporary failure sending reminder, will retry", logger.Error(err))
		return err

	default:
		s.writeReminderLog(ctx, subscriptions.ReminderLog{
			SubscriptionID: sub.ID,
			Message:        err.Error(),
			Success:        false,
		})
		log.ErrorContext(ctx, "failed to send payment reminder", logger.Error(err))
		return nil
	}
}

func (s *Service) writeReminderLog(ctx context.Context, entry subscriptions.ReminderLog) {
	if _, err := s.store.CreateReminderLog(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to write reminder log",
			logger.SubscriptionID(entry.SubscriptionID),
			logger.Error(err),
		)
	}
}
