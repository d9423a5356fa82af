package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/subtracker/pkg/logger"
	"github.com/dmitrymomot/subtracker/svc/subscriptions"
)

// bcrypt ignores input past 72 bytes, so longer passwords are rejected outright.
const (
	minPasswordLen = 8
	maxPasswordLen = 72
)

// RegisterParams is a sign-up request.
type RegisterParams struct {
	Username string
	Email    string
	Password string
}

// AfterRegisterFunc runs once the user row exists.
type AfterRegisterFunc func(ctx context.Context, user subscriptions.User) error

type Service struct {
	users         subscriptions.UserCreator
	bcryptCost    int
	afterRegister AfterRegisterFunc
	logger        *slog.Logger
}

type Option func(*Service)

// WithBcryptCost overrides bcrypt.DefaultCost. Out-of-range costs are ignored.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

// WithAfterRegister sets the hook run after a successful registration.
// Its error is logged; the registration still succeeds.
func WithAfterRegister(fn AfterRegisterFunc) Option {
	return func(s *Service) { s.afterRegister = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(users subscriptions.UserCreator, opts ...Option) *Service {
	s := &Service{
		users:      users,
		bcryptCost: bcrypt.DefaultCost,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("accounts"))
	return s
}

// Register creates the account. The email is trimmed and lowercased before it is
// checked and stored.
func (s *Service) Register(ctx context.Context, p RegisterParams) (subscriptions.User, error) {
	p.Username = strings.TrimSpace(p.Username)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))

	if err := p.validate(); err != nil {
		return subscriptions.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), s.bcryptCost)
	if err != nil {
		return subscriptions.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, subscriptions.NewUser{
		Username:     p.Username,
		Email:        p.Email,
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, subscriptions.ErrEmailTaken) {
			return subscriptions.User{}, ErrEmailTaken
		}
		return subscriptions.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered", logger.UserID(user.ID))

	if s.afterRegister != nil {
		if err := s.afterRegister(ctx, user); err != nil {
			s.logger.ErrorContext(ctx, "after register hook failed",
				logger.UserID(user.ID),
				logger.Error(err))
		}
	}

	return user, nil
}

func (p RegisterParams) validate() error {
	if p.Username == "" {
		return ErrUsernameRequired
	}
	if addr, err := mail.ParseAddress(p.Email); err != nil || addr.Address != p.Email {
		return ErrInvalidEmail
	}
	if n := len(p.Password); n < minPasswordLen || n > maxPasswordLen {
		return ErrWeakPassword
	}
	return nil
}
