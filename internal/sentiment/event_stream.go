package sentiment

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/spacesedan/xpulse/internal/metrics"
)

const STREAM_READ_SIZE = 4096

type StreamState int

const (
	StreamStreaming StreamState = iota
	StreamComplete
	StreamFailed
)

func (s StreamState) String() string {
	switch s {
	case StreamStreaming:
		return "streaming"
	case StreamComplete:
		return "complete"
	case StreamFailed:
		return "failed"
	}
	return "unknown"
}

var (
	dataPrefix   = []byte("data:")
	doneSentinel = []byte("[DONE]")
)

// ResultStream decodes a server-sent chat completion stream. Bytes are split
// on '\n' only after they are buffered, so a read that ends mid-line or
// mid-rune loses nothing. Content deltas are fed to an ArrayScanner as they
// arrive.
type ResultStream struct {
	r       io.Reader
	carry   []byte
	content strings.Builder
	scanner ArrayScanner
	state   StreamState
	err     error
	skipped int
	read    bool
	log     *slog.Logger
}

// NewResultStream reads events from r. A nil log means slog.Default.
func NewResultStream(r io.Reader, log *slog.Logger) *ResultStream {
	if log == nil {
		log = slog.Default()
	}
	return &ResultStream{r: r, log: log}
}

// Elements reads the stream to the end, yielding each top-level array element
// with its index as soon as it closes. It can be ranged over once; stopping
// early leaves the stream in StreamStreaming.
func (s *ResultStream) Elements() iter.Seq2[int, json.RawMessage] {
	return func(yield func(int, json.RawMessage) bool) {
		if s.read {
			return
		}
		s.read = true

		buf := make([]byte, STREAM_READ_SIZE)
		for {
			n, err := s.r.Read(buf)
			if n > 0 && !s.yieldEach(s.consume(buf[:n]), yield) {
				return
			}

			if errors.Is(err, io.EOF) {
				if len(s.carry) > 0 {
					line := s.carry
					s.carry = nil
					if !s.yieldEach(s.handleLine(line), yield) {
						return
					}
				}
				s.state = StreamComplete
				return
			}
			if err != nil {
				s.state = StreamFailed
				s.err = err
				return
			}
		}
	}
}

// yieldEach yields elements closed by the latest feed. They are the last
// len(elements) the scanner counted, so each keeps its own array index.
func (s *ResultStream) yieldEach(elements []json.RawMessage, yield func(int, json.RawMessage) bool) bool {
	base := s.scanner.Count() - len(elements)
	for j, element := range elements {
		if !yield(base+j, element) {
			return false
		}
	}
	return true
}

// consume appends raw bytes to the carry buffer and handles every complete line.
func (s *ResultStream) consume(chunk []byte) []json.RawMessage {
	s.carry = append(s.carry, chunk...)

	var out []json.RawMessage
	rest := s.carry
	for {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			break
		}
		out = append(out, s.handleLine(rest[:i])...)
		rest = rest[i+1:]
	}
	s.carry = append(s.carry[:0], rest...)

	return out
}

func (s *ResultStream) handleLine(line []byte) []json.RawMessage {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if !bytes.HasPrefix(line, dataPrefix) {
		return nil
	}

	payload := bytes.TrimPrefix(line[len(dataPrefix):], []byte(" "))
	if bytes.Equal(payload, doneSentinel) {
		return nil
	}

	var chunk openai.ChatCompletionChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		s.skipped++
		metrics.StreamEventsSkippedTotal.Inc()
		s.log.Debug("[ResultStream] Skipping malformed event",
			slog.Int("bytes", len(payload)),
			slog.String("error", err.Error()))
		return nil
	}
	if len(chunk.Choices) == 0 {
		return nil
	}

	delta := chunk.Choices[0].Delta.Content
	if delta == "" {
		return nil
	}
	s.content.WriteString(delta)
	return s.scanner.Feed(delta)
}

// Content is every delta received so far, concatenated.
func (s *ResultStream) Content() string { return s.content.String() }

func (s *ResultStream) State() StreamState { return s.state }

// Err is the read error that moved the stream to StreamFailed.
func (s *ResultStream) Err() error { return s.err }

// Skipped counts malformed events that were ignored.
func (s *ResultStream) Skipped() int { return s.skipped }
