package redis

import "errors"

var (
	ErrEmptyConnectionURL = errors.New("empty redis connection URL, set REDIS_URL")
	ErrParseConnectionURL = errors.New("failed to parse redis connection URL")
	ErrRedisNotReady      = errors.New("redis did not answer within the connect timeout")
	ErrHealthcheckFailed  = errors.New("redis healthcheck failed")
)
