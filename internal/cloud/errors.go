package cloud

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInactive is returned by every call on a service that has no
	// credentials or connection.
	ErrInactive = errors.New("cloud: service is not active")

	// ErrNoData means the feed exists but holds no value yet.
	ErrNoData = errors.New("cloud: no data")

	// ErrEmptyKey is returned for a blank feed name or key.
	ErrEmptyKey = errors.New("cloud: feed name or key is empty")

	// ErrFeedExists is returned by CreateFeed in strict mode.
	ErrFeedExists = errors.New("cloud: feed already exists")
)

// RequestError is a non-2xx response other than throttling.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("cloud: request failed with status %d: %s", e.Status, e.Body)
}

// Permanent reports whether retrying the same request cannot succeed.
func (e *RequestError) Permanent() bool {
	return e.Status >= 400 && e.Status < 500
}

// ThrottlingError means the service asked the client to slow down.
type ThrottlingError struct {
	RetryAfter time.Duration
}

func (e *ThrottlingError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("cloud: throttled, retry after %v", e.RetryAfter)
	}
	return "cloud: throttled"
}
