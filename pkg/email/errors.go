package email

import "errors"

var (
	ErrFailedToSendEmail = errors.New("mailer.errors.failed_to_send_email")
	ErrInvalidConfig     = errors.New("mailer.errors.invalid_config")
	ErrInvalidParams     = errors.New("mailer.errors.invalid_params")

	// ErrTemporaryFailure marks delivery failures worth retrying:
	// network errors, provider rate limits and maintenance windows.
	ErrTemporaryFailure = errors.New("mailer.errors.temporary_failure")

	// ErrPermanentFailure marks failures that will repeat on retry,
	// e.g. an invalid or inactive recipient.
	ErrPermanentFailure = errors.New("mailer.errors.permanent_failure")
)

// IsTemporary reports whether err is a delivery failure that may succeed on retry.
func IsTemporary(err error) bool {
	return errors.Is(err, ErrTemporaryFailure)
}
