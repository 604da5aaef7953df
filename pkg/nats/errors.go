package nats

import "errors"

var (
	ErrFailedToConnect   = errors.New("failed to connect to nats")
	ErrHealthcheckFailed = errors.New("nats healthcheck failed")
)
