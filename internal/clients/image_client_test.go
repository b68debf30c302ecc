package clients

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestImageClient() *ImageClient {
	return NewImageClient(5*time.Second, RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond})
}

func TestImageClient_FetchBase64(t *testing.T) {
	payload := []byte{0xff, 0xd8, 0xff, 0xe0, 'j', 'p', 'g'}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, USER_AGENT, r.Header.Get("User-Agent"))
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	got, err := newTestImageClient().FetchBase64(context.Background(), server.URL+"/a.jpg")

	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(payload), got)
}

func TestImageClient_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := newTestImageClient().FetchBase64(context.Background(), server.URL)

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestImageClient_ServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("img"))
	}))
	defer server.Close()

	got, err := newTestImageClient().FetchBase64(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "aW1n", got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestImageClient_RejectsOversizedImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer server.Close()

	client := newTestImageClient()
	client.maxBytes = 16

	_, err := client.FetchBase64(context.Background(), server.URL)

	var permanent *PermanentError
	assert.ErrorAs(t, err, &permanent)
}
