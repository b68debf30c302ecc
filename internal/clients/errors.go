package clients

import (
	"errors"
	"fmt"
)

var (
	ErrStreamUnavailable = errors.New("stream not available")
	ErrEmptyCompletion   = errors.New("completion has no content")
)

// StatusError is a non-2xx response from an endpoint we call directly.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status code %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, e.Body)
}

// PermanentError marks a failure that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }
