package email

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// EmailSender represents an interface for sending emails.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams represents the parameters for sending an email.
type SendEmailParams struct {
	SendTo   string `json:"send_to"`       // Email address of the recipient
	Subject  string `json:"subject"`       // Subject of the email
	BodyHTML string `json:"body_html"`     // HTML body of the email
	Tag      string `json:"tag,omitempty"` // Optional
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Validate checks the required fields. Invalid params are never worth retrying,
// so the error is also a permanent failure.
func (p SendEmailParams) Validate() error {
	switch {
	case strings.TrimSpace(p.SendTo) == "":
		return invalidParams("SendTo is required")
	case !emailRegex.MatchString(strings.TrimSpace(p.SendTo)):
		return invalidParams("SendTo must be a valid email address")
	case strings.TrimSpace(p.Subject) == "":
		return invalidParams("Subject is required")
	case strings.TrimSpace(p.BodyHTML) == "":
		return invalidParams("BodyHTML is required")
	}
	return nil
}

func invalidParams(msg string) error {
	return fmt.Errorf("%w: %w: %s", ErrInvalidParams, ErrPermanentFailure, msg)
}
