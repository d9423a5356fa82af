package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

type postmarkClient struct {
	client *postmark.Client
	config Config
}

// NewPostmarkClient validates cfg and returns a Postmark-backed sender.
func NewPostmarkClient(cfg Config) (EmailSender, error) {
	if err := cfg.validatePostmark(); err != nil {
		return nil, err
	}
	return &postmarkClient{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		config: cfg,
	}, nil
}

// MustNewPostmarkClient is NewPostmarkClient that panics on invalid config.
func MustNewPostmarkClient(cfg Config) EmailSender {
	client, err := NewPostmarkClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// SendEmail sends through Postmark with open and HTML link tracking.
// Replies go to SupportEmail.
func (c *postmarkClient) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	resp, err := c.client.SendEmail(ctx, postmark.Email{
		From:       c.config.SenderEmail,
		ReplyTo:    c.config.SupportEmail,
		To:         params.SendTo,
		Subject:    params.Subject,
		Tag:        params.Tag,
		HTMLBody:   params.BodyHTML,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	return classifyPostmarkResult(resp, err)
}

// Postmark API error codes that clear up on their own.
// See https://postmarkapp.com/developer/api/overview#error-codes
const (
	postmarkMaintenance = 100
	postmarkRateLimited = 429
)

// classifyPostmarkResult maps a Postmark result onto the temporary/permanent
// failure taxonomy. The client reports rejections in two shapes: an APIError
// for HTTP 4xx/5xx, or an ErrorCode in a 200 response body. Both are classified
// by code. Anything else (timeouts, resets, undecodable bodies) is temporary.
func classifyPostmarkResult(resp postmark.EmailResponse, err error) error {
	if resp.ErrorCode != 0 {
		return postmarkCodeError(resp.ErrorCode, resp.Message)
	}

	var apiErr postmark.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode != 0 {
		return postmarkCodeError(apiErr.ErrorCode, apiErr.Message)
	}

	if err != nil {
		return errors.Join(ErrFailedToSendEmail, ErrTemporaryFailure, err)
	}
	return nil
}

func postmarkCodeError(code int64, message string) error {
	kind := ErrPermanentFailure
	if code == postmarkMaintenance || code == postmarkRateLimited {
		kind = ErrTemporaryFailure
	}
	return errors.Join(ErrFailedToSendEmail, kind, fmt.Errorf("postmark error: %d - %s", code, message))
}
