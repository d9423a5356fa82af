package email

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mrz1836/postmark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyPostmarkResult(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, classifyPostmarkResult(postmark.EmailResponse{}, nil))
	})

	t.Run("transport error is temporary", func(t *testing.T) {
		t.Parallel()
		cause := errors.New("connection reset by peer")
		err := classifyPostmarkResult(postmark.EmailResponse{}, cause)
		assert.ErrorIs(t, err, ErrFailedToSendEmail)
		assert.ErrorIs(t, err, cause)
		assert.True(t, IsTemporary(err))
	})

	t.Run("api error carries the code", func(t *testing.T) {
		t.Parallel()
		err := classifyPostmarkResult(postmark.EmailResponse{}, postmark.APIError{ErrorCode: 406, Message: "inactive recipient"})
		assert.ErrorIs(t, err, ErrPermanentFailure)
		assert.False(t, IsTemporary(err))
		assert.Contains(t, err.Error(), "406")
	})

	t.Run("rate limited api error is temporary", func(t *testing.T) {
		t.Parallel()
		err := classifyPostmarkResult(postmark.EmailResponse{}, postmark.APIError{ErrorCode: 429, Message: "too many requests"})
		assert.True(t, IsTemporary(err))
		assert.NotErrorIs(t, err, ErrPermanentFailure)
	})

	t.Run("code in a 200 body wins over the wrapped error", func(t *testing.T) {
		t.Parallel()
		err := classifyPostmarkResult(
			postmark.EmailResponse{ErrorCode: 300, Message: "Invalid email request"},
			errors.New("300 Invalid email request"),
		)
		assert.ErrorIs(t, err, ErrPermanentFailure)
		assert.False(t, IsTemporary(err))
	})

	t.Run("maintenance in a 200 body is temporary", func(t *testing.T) {
		t.Parallel()
		err := classifyPostmarkResult(postmark.EmailResponse{ErrorCode: 100, Message: "maintenance"}, errors.New("100 maintenance"))
		assert.True(t, IsTemporary(err))
	})
}

func TestPostmarkClient_SendEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   bool
		temporary bool
	}{
		{"accepted", http.StatusOK, `{"To":"ann@example.com","MessageID":"b7bc2f4a","ErrorCode":0,"Message":"OK"}`, false, false},
		{"inactive recipient", http.StatusUnprocessableEntity, `{"ErrorCode":406,"Message":"You tried to send to a recipient that has been marked as inactive."}`, true, false},
		{"bad server token", http.StatusUnauthorized, `{"ErrorCode":10,"Message":"No Account or Server API tokens were supplied."}`, true, false},
		{"rejected in a 200 body", http.StatusOK, `{"ErrorCode":300,"Message":"Invalid email request"}`, true, false},
		{"rate limited", http.StatusTooManyRequests, `{"ErrorCode":429,"Message":"Rate limit exceeded"}`, true, true},
		{"maintenance", http.StatusServiceUnavailable, `{"ErrorCode":100,"Message":"Maintenance"}`, true, true},
		{"server error without json", http.StatusBadGateway, `<html>bad gateway</html>`, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/email", r.URL.Path)
				assert.Equal(t, "server", r.Header.Get("X-Postmark-Server-Token"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			sender, err := NewPostmarkClient(Config{
				Driver:               DriverPostmark,
				PostmarkServerToken:  "server",
				PostmarkAccountToken: "account",
				SenderEmail:          "noreply@example.com",
				SupportEmail:         "support@example.com",
			})
			require.NoError(t, err)
			sender.(*postmarkClient).client.BaseURL = srv.URL

			err = sender.SendEmail(context.Background(), SendEmailParams{
				SendTo:   "ann@example.com",
				Subject:  "Payment reminder: Netflix",
				BodyHTML: "<p>due tomorrow</p>",
				Tag:      "payment_reminder",
			})
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrFailedToSendEmail)
			assert.Equal(t, tt.temporary, IsTemporary(err))
			assert.Equal(t, !tt.temporary, errors.Is(err, ErrPermanentFailure))
		})
	}
}

func TestValidateIsPermanent(t *testing.T) {
	t.Parallel()

	err := SendEmailParams{}.Validate()
	assert.ErrorIs(t, err, ErrInvalidParams)
	assert.ErrorIs(t, err, ErrPermanentFailure)
	assert.False(t, IsTemporary(err))
}

func TestNewSender(t *testing.T) {
	t.Parallel()

	t.Run("dev is the default", func(t *testing.T) {
		t.Parallel()
		s, err := NewSender(Config{DevDir: t.TempDir()})
		assert.NoError(t, err)
		assert.IsType(t, &DevSender{}, s)
	})

	t.Run("postmark validates config", func(t *testing.T) {
		t.Parallel()
		_, err := NewSender(Config{Driver: DriverPostmark})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("postmark", func(t *testing.T) {
		t.Parallel()
		s, err := NewSender(Config{
			Driver:               DriverPostmark,
			PostmarkServerToken:  "server",
			PostmarkAccountToken: "account",
			SenderEmail:          "noreply@example.com",
			SupportEmail:         "support@example.com",
		})
		assert.NoError(t, err)
		assert.IsType(t, &postmarkClient{}, s)
	})

	t.Run("unknown driver", func(t *testing.T) {
		t.Parallel()
		_, err := NewSender(Config{Driver: "smtp"})
		assert.ErrorIs(t, err, ErrInvalidConfig)
		assert.Contains(t, err.Error(), "smtp")
	})
}
