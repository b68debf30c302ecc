package clients

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

type ImageClient struct {
	Client   *http.Client
	retry    RetryPolicy
	maxBytes int64
}

func NewImageClient(timeout time.Duration, retry RetryPolicy) *ImageClient {
	slog.Info("[ImageClient] Initializing Client",
		slog.Duration("timeout", timeout))
	return &ImageClient{
		Client:   &http.Client{Timeout: timeout},
		retry:    retry,
		maxBytes: MAX_IMAGE_BYTES,
	}
}

// FetchBase64 downloads an image and returns its body base64 encoded, without
// a data URI prefix.
func (c *ImageClient) FetchBase64(ctx context.Context, url string) (string, error) {
	start := time.Now()

	body, err := DoWithRetry(ctx, c.retry, func() ([]byte, error) {
		return c.get(ctx, url)
	})
	if err != nil {
		slog.Error("[ImageClient] Failed to fetch image",
			slog.String("url", url),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("failed to fetch image: %w", err)
	}
	if len(body) == 0 {
		return "", fmt.Errorf("failed to fetch image: empty body from %s", url)
	}

	slog.Debug("[ImageClient] Image fetched",
		slog.String("url", url),
		slog.Int("bytes", len(body)),
		slog.Duration("elapsed", time.Since(start)))

	return base64.StdEncoding.EncodeToString(body), nil
}

func (c *ImageClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &PermanentError{Err: fmt.Errorf("failed to build request: %w", err)}
	}
	req.Header.Set("User-Agent", USER_AGENT)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Warn("[ImageClient] Request failed",
			slog.String("url", url),
			slog.String("error", errMsg(nil, resp)),
			getPreview(preview))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(preview)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > c.maxBytes {
		return nil, &PermanentError{Err: fmt.Errorf("image larger than %d bytes", c.maxBytes)}
	}

	return body, nil
}

func getPreview(respBody []byte) slog.Attr {
	raw := string(respBody)
	if len(raw) > 50 {
		raw = raw[:50]
	}
	return slog.String("raw_response", raw)
}

func errMsg(err error, resp *http.Response) string {
	if err != nil {
		return err.Error()
	}
	if resp != nil {
		return fmt.Sprintf("status code %d", resp.StatusCode)
	}
	return "unknown error"
}
