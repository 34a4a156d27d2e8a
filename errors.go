package aishield

import (
	"errors"
	"fmt"
)

// ErrUpstreamUnavailable is returned when an upstream's circuit breaker is
// open and the call was rejected without being attempted. Callers should
// retry after a short delay.
var ErrUpstreamUnavailable = errors.New("upstream temporarily unavailable")

// RateLimitedError reports an admission denial. It carries the user-facing
// message of the rule that fired and how long the caller should wait.
type RateLimitedError struct {
	Class             string
	Message           string
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited (%s): retry after %ds", e.Class, e.RetryAfterSeconds)
}
