package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sony/gobreaker"
	"github.com/spacesedan/xpulse/internal/metrics"
	"golang.org/x/time/rate"
)

type GrokConfig struct {
	APIKey            string
	BaseURL           string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	Retry             RetryPolicy
	HTTPClient        *http.Client
}

// GrokClient talks to the xAI chat completions endpoint through the OpenAI SDK.
// The SDK's own retries are off; DoWithRetry owns the policy.
type GrokClient struct {
	client         openai.Client
	limiter        *rate.Limiter
	breaker        *gobreaker.CircuitBreaker
	retry          RetryPolicy
	requestTimeout time.Duration
}

func NewGrokClient(cfg GrokConfig) *GrokClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = GROK_DEFAULT_BASEURL
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
		option.WithHeader("User-Agent", USER_AGENT),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	retry := cfg.Retry
	userOnRetry := retry.OnRetry
	retry.OnRetry = func(attempt int, err error, delay time.Duration) {
		slog.Warn("[GrokClient] Request failed, will retry",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
			slog.String("error", err.Error()))
		metrics.GrokRetriesTotal.Inc()
		if userOnRetry != nil {
			userOnRetry(attempt, err, delay)
		}
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "grok",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("[GrokClient] Circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	slog.Info("[GrokClient] Client initialized",
		slog.String("base_url", baseURL),
		slog.Duration("request_timeout", cfg.RequestTimeout),
		slog.Float64("requests_per_second", cfg.RequestsPerSecond))

	return &GrokClient{
		client:         openai.NewClient(opts...),
		limiter:        rate.NewLimiter(limit, 1),
		breaker:        breaker,
		retry:          retry,
		requestTimeout: cfg.RequestTimeout,
	}
}

// Complete sends a non-streaming request and returns the first choice's content.
func (c *GrokClient) Complete(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	start := time.Now()

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return DoWithRetry(ctx, c.retry, func() (string, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", &PermanentError{Err: err}
			}

			var opts []option.RequestOption
			var raw *http.Response
			opts = append(opts, option.WithResponseInto(&raw))
			if c.requestTimeout > 0 {
				opts = append(opts, option.WithRequestTimeout(c.requestTimeout))
			}

			completion, err := c.client.Chat.Completions.New(ctx, params, opts...)
			if err != nil {
				return "", withStatus(err, raw)
			}
			if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
				return "", &PermanentError{Err: ErrEmptyCompletion}
			}
			return completion.Choices[0].Message.Content, nil
		})
	})
	if err != nil {
		metrics.GrokRequestsTotal.WithLabelValues("complete", "error").Inc()
		slog.Error("[GrokClient] Completion request failed",
			slog.String("model", params.Model),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("grok completion: %w", err)
	}

	metrics.GrokRequestsTotal.WithLabelValues("complete", "ok").Inc()
	slog.Debug("[GrokClient] Completion request successful",
		slog.String("model", params.Model),
		slog.Duration("elapsed", time.Since(start)))

	return out.(string), nil
}

// Stream opens a server-sent event stream and hands back the unread body.
// The caller owns closing it. Cancelling ctx aborts the read.
func (c *GrokClient) Stream(ctx context.Context, params openai.ChatCompletionNewParams) (io.ReadCloser, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return DoWithRetry(ctx, c.retry, func() (io.ReadCloser, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, &PermanentError{Err: err}
			}

			var raw *http.Response
			_, err := c.client.Chat.Completions.New(ctx, params,
				option.WithJSONSet("stream", true),
				option.WithHeader("Accept", "text/event-stream"),
				option.WithResponseBodyInto(&raw))
			if err != nil {
				return nil, withStatus(err, raw)
			}
			if raw == nil || raw.Body == nil {
				return nil, &PermanentError{Err: ErrStreamUnavailable}
			}
			return raw.Body, nil
		})
	})
	if err != nil {
		metrics.GrokRequestsTotal.WithLabelValues("stream", "error").Inc()
		slog.Error("[GrokClient] Stream request failed",
			slog.String("model", params.Model),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("grok stream: %w", err)
	}

	metrics.GrokRequestsTotal.WithLabelValues("stream", "ok").Inc()
	return out.(io.ReadCloser), nil
}

func (c *GrokClient) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// withStatus keeps the HTTP status visible when the SDK could not decode an
// error body into *openai.Error.
func withStatus(err error, raw *http.Response) error {
	if _, ok := StatusCode(err); ok {
		return err
	}
	if raw != nil && raw.StatusCode >= 400 {
		return &StatusError{StatusCode: raw.StatusCode, Body: err.Error()}
	}
	return err
}
