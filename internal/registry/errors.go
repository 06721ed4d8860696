package registry

import (
	"errors"
	"fmt"
)

// ErrRateLimited marks an upstream 429. It is surfaced verbatim to the
// caller and never retried here.
var ErrRateLimited = errors.New("registry: rate limit exceeded")

// UpstreamError is any other non-success upstream response or transport
// failure, carrying the HTTP status when one was received.
type UpstreamError struct {
	Registry string
	Status   int
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("registry: %s returned status %d", e.Registry, e.Status)
	}
	return fmt.Sprintf("registry: %s: %v", e.Registry, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
