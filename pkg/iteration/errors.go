package iteration

import "errors"

var (
	// ErrInvalidCronExpression is returned when a cron expression cannot be parsed
	ErrInvalidCronExpression = errors.New("invalid cron expression")

	// ErrInvalidBackoff is returned when fibonacci bounds are not positive or floor exceeds ceiling
	ErrInvalidBackoff = errors.New("invalid fibonacci backoff bounds")
)
