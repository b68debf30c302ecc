package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/openai/openai-go"
)

var retryableStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	Clock        clockwork.Clock
	OnRetry      func(attempt int, err error, delay time.Duration)
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   MAX_RETRIES,
		InitialDelay: INITIAL_BACKOFF,
		Clock:        clockwork.NewRealClock(),
	}
}

// DoWithRetry runs op up to MaxRetries times. After failed attempt i it waits
// InitialDelay * 2^i. Fatal errors come back wrapped in *PermanentError.
func DoWithRetry[T any](ctx context.Context, p RetryPolicy, op func() (T, error)) (T, error) {
	var zero T

	attempts := max(p.MaxRetries, 1)
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	delay := p.InitialDelay

	for attempt := 0; attempt < attempts; attempt++ {
		val, err := op()
		if err == nil {
			return val, nil
		}

		if IsFatal(err) {
			var permanent *PermanentError
			if errors.As(err, &permanent) {
				return zero, err
			}
			return zero, &PermanentError{Err: err}
		}

		if attempt == attempts-1 {
			return zero, fmt.Errorf("failed after %d attempts: %w", attempts, err)
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err, delay)
		}

		select {
		case <-clock.After(delay):
			delay *= 2
		case <-ctx.Done():
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}

	return zero, fmt.Errorf("failed after %d attempts", attempts)
}

// StatusCode digs an HTTP status out of an SDK or direct-call error.
func StatusCode(err error) (int, bool) {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, true
	}

	return 0, false
}

// IsRetryable reports whether err is a rate limit or one of the transient
// gateway statuses, either as a typed status or in the message text.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if status, ok := StatusCode(err); ok {
		return retryableStatuses[status]
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "rate limit") {
		return true
	}
	for status := range retryableStatuses {
		if strings.Contains(msg, strconv.Itoa(status)) {
			return true
		}
	}
	return false
}

// IsFatal reports errors that must not be retried: explicit permanent errors,
// cancellation, and any 4xx outside the retryable set.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var permanent *PermanentError
	if errors.As(err, &permanent) {
		return true
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	if IsRetryable(err) {
		return false
	}

	status, ok := StatusCode(err)
	return ok && status >= 400 && status < 500
}
