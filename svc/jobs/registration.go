package jobs

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/subtracker/pkg/email"
	"github.com/dmitrymomot/subtracker/pkg/logger"
)

// EnqueueRegistrationEmail queues the sign-up confirmation on the emails queue.
func (s *Service) EnqueueRegistrationEmail(ctx context.Context, to, username string) (uuid.UUID, error) {
	return s.enqueuer.Enqueue(ctx,
		RegistrationPayload{Email: to, Username: username},
		s.itemOptions(QueueEmails, TaskSendRegistrationEmail)...,
	)
}

// SendRegistrationEmail sends the sign-up confirmation. Only temporary failures
// are returned for retry.
func (s *Service) SendRegistrationEmail(ctx context.Context, p RegistrationPayload) error {
	err := s.notifier.SendRegistrationEmail(ctx, p.Email, p.Username)
	switch {
	case err == nil:
		return nil
	case email.IsTemporary(err):
		s.logger.WarnContext(ctx, "temporary failure sending registration email, will retry", logger.Error(err))
		return err
	default:
		s.logger.ErrorContext(ctx, "failed to send registration email", logger.Error(err))
		return nil
	}
}
