package redis

import "errors"

var (
	ErrEmptyConnectionURL           = errors.New("redis: empty connection url, set REDIS_URL")
	ErrFailedToParseRedisConnString = errors.New("redis: failed to parse connection url")
	ErrRedisNotReady                = errors.New("redis: server not ready before connect timeout")
	ErrHealthcheckFailed            = errors.New("redis: healthcheck failed")
)
