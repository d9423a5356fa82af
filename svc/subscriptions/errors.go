package subscriptions

import "errors"

var (
	ErrSubscriptionNotFound = errors.New("subscriptions: subscription not found")
	ErrUserNotFound         = errors.New("subscriptions: user not found")
	ErrEmailTaken           = errors.New("subscriptions: a user with that email already exists")
	ErrInvalidMonth         = errors.New("subscriptions: month must be YYYY-MM with month 01..12")
	ErrInvalidAmount        = errors.New("subscriptions: invalid amount")
	ErrStoreFailure         = errors.New("subscriptions: store failure")
)
