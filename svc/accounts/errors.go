package accounts

import "errors"

var (
	ErrUsernameRequired = errors.New("accounts: username is required")
	ErrInvalidEmail     = errors.New("accounts: invalid email address")
	ErrWeakPassword     = errors.New("accounts: password must be 8 to 72 bytes long")
	ErrEmailTaken       = errors.New("accounts: a user with that email already exists")
)
