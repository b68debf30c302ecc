package sentiment

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spacesedan/xpulse/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sseEvent renders one chat.completion.chunk event carrying delta.
func sseEvent(delta string) string {
	raw, _ := json.Marshal(map[string]any{
		"id":      "chunk-1",
		"object":  "chat.completion.chunk",
		"created": 1,
		"model":   "vision-model",
		"choices": []map[string]any{{
			"index": 0,
			"delta": map[string]any{"content": delta},
		}},
	})
	return "data: " + string(raw) + "\n\n"
}

// sseBody splits content into deltas of at most size runes and terminates the
// stream with [DONE].
func sseBody(content string, size int) string {
	var b strings.Builder
	runes := []rune(content)
	for len(runes) > 0 {
		n := min(size, len(runes))
		b.WriteString(sseEvent(string(runes[:n])))
		runes = runes[n:]
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

func collect(s *ResultStream) []string {
	var out []string
	for _, raw := range s.Elements() {
		out = append(out, string(raw))
	}
	return out
}

func TestResultStream_AccumulatesContent(t *testing.T) {
	content := `[{"score": 0.5}, {"score": -0.2}]`
	s := NewResultStream(strings.NewReader(sseBody(content, 7)), nil)

	got := collect(s)

	assert.Equal(t, []string{`{"score": 0.5}`, `{"score": -0.2}`}, got)
	assert.Equal(t, content, s.Content())
	assert.Equal(t, StreamComplete, s.State())
	assert.NoError(t, s.Err())
}

func TestResultStream_OneByteReadsMatchSingleRead(t *testing.T) {
	content := `[{"score": 0.9, "reasoning": "café vibes 🎉"}, {"score": -0.4, "reasoning": "naïve take"}]`
	body := sseBody(content, 11)

	whole := NewResultStream(strings.NewReader(body), nil)
	wholeElements := collect(whole)

	bytewise := NewResultStream(iotest.OneByteReader(strings.NewReader(body)), nil)
	bytewiseElements := collect(bytewise)

	assert.Equal(t, wholeElements, bytewiseElements)
	assert.Equal(t, content, bytewise.Content())
	assert.Contains(t, bytewise.Content(), "café vibes 🎉")
}

func TestResultStream_LineHandling(t *testing.T) {
	body := ": keep-alive\r\n" +
		"event: message\r\n" +
		"data:" + strings.TrimPrefix(sseEvent(`[{"score": 1}`), "data: ") +
		strings.ReplaceAll(sseEvent(`]`), "\n\n", "\r\n\r\n") +
		"data: [DONE]"

	s := NewResultStream(strings.NewReader(body), nil)

	assert.Equal(t, []string{`{"score": 1}`}, collect(s))
	assert.Equal(t, `[{"score": 1}]`, s.Content())
	assert.Zero(t, s.Skipped())
}

func TestResultStream_FinalLineWithoutNewline(t *testing.T) {
	body := strings.TrimSuffix(sseEvent(`[{"score": 0.3}]`), "\n\n")

	s := NewResultStream(strings.NewReader(body), nil)

	assert.Equal(t, []string{`{"score": 0.3}`}, collect(s))
	assert.Equal(t, StreamComplete, s.State())
}

func TestResultStream_SkipsMalformedEvents(t *testing.T) {
	before := testutil.ToFloat64(metrics.StreamEventsSkippedTotal)
	body := sseEvent(`[{"score": 0.1},`) +
		"data: {not json\n\n" +
		sseEvent(` {"score": 0.2}]`) +
		"data: [DONE]\n\n"

	s := NewResultStream(strings.NewReader(body), nil)

	assert.Len(t, collect(s), 2)
	assert.Equal(t, 1, s.Skipped())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.StreamEventsSkippedTotal))
}

func TestResultStream_ReadError(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader(sseEvent(`[{"score": 0.1},`)), iotest.ErrReader(boom))

	s := NewResultStream(r, nil)
	got := collect(s)

	assert.Len(t, got, 1)
	assert.Equal(t, StreamFailed, s.State())
	assert.ErrorIs(t, s.Err(), boom)
}

func TestResultStream_SinglePass(t *testing.T) {
	s := NewResultStream(strings.NewReader(sseBody(`[1, 2]`, 100)), nil)

	require.Len(t, collect(s), 2)
	assert.Empty(t, collect(s))
}

func TestResultStream_EarlyStop(t *testing.T) {
	s := NewResultStream(strings.NewReader(sseBody(`[1, 2, 3]`, 1)), nil)

	for i := range s.Elements() {
		if i == 0 {
			break
		}
	}

	assert.Equal(t, StreamStreaming, s.State())
}

func TestResultStream_IndicesWithinOneRead(t *testing.T) {
	s := NewResultStream(strings.NewReader(sseBody(`[{"score":0.1},{"score":0.2},{"score":0.3}]`, 100)), nil)

	var indices []int
	for i := range s.Elements() {
		indices = append(indices, i)
	}

	assert.Equal(t, []int{0, 1, 2}, indices)
}

func TestResultStream_LogsToGivenLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})).
		With(slog.String("request_id", "req-1"))
	body := "data: {not json\n\n" + sseBody(`[1]`, 10)

	s := NewResultStream(strings.NewReader(body), log)
	collect(s)

	assert.Contains(t, buf.String(), "Skipping malformed event")
	assert.Contains(t, buf.String(), "request_id=req-1")
}
