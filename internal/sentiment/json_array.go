package sentiment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spacesedan/xpulse/internal/models"
)

var (
	ErrNoJSONArray  = errors.New("no JSON array in response")
	ErrNoJSONObject = errors.New("no JSON object in response")
)

// ArrayScanner tokenizes a JSON array that arrives in pieces. Each top-level
// element is returned by Feed as soon as it closes, so the buffered text is
// never re-parsed. Anything before the first '[' (markdown fences, prose) is
// skipped and anything after the matching ']' is ignored.
type ArrayScanner struct {
	cur      []byte
	depth    int
	count    int
	started  bool
	done     bool
	inString bool
	escaped  bool
}

// Feed consumes the next piece of content and returns the elements it closed.
func (s *ArrayScanner) Feed(chunk string) []json.RawMessage {
	var out []json.RawMessage

	for i := 0; i < len(chunk) && !s.done; i++ {
		c := chunk[i]

		if !s.started {
			if c == '[' {
				s.started = true
				s.depth = 1
			}
			continue
		}

		if s.inString {
			s.cur = append(s.cur, c)
			switch {
			case s.escaped:
				s.escaped = false
			case c == '\\':
				s.escaped = true
			case c == '"':
				s.inString = false
			}
			continue
		}

		if s.depth == 1 {
			switch {
			case c == ',' || c == ']':
				if len(s.cur) > 0 {
					out = append(out, s.emit())
				}
				if c == ']' {
					s.depth = 0
					s.done = true
				}
				continue
			case c == ' ' || c == '\n' || c == '\r' || c == '\t':
				if len(s.cur) > 0 {
					s.cur = append(s.cur, c)
				}
				continue
			case c == '}':
				// stray close at the top level, kept so the element fails to parse
				s.cur = append(s.cur, c)
				continue
			}
		}

		s.cur = append(s.cur, c)
		switch c {
		case '"':
			s.inString = true
		case '{', '[':
			s.depth++
		case '}', ']':
			s.depth--
			if s.depth == 1 {
				out = append(out, s.emit())
			}
		}
	}

	return out
}

// Count is the number of elements emitted so far.
func (s *ArrayScanner) Count() int { return s.count }

// Done reports whether the top-level array has closed.
func (s *ArrayScanner) Done() bool { return s.done }

func (s *ArrayScanner) emit() json.RawMessage {
	raw := bytes.Clone(bytes.TrimSpace(s.cur))
	s.cur = s.cur[:0]
	s.count++
	return raw
}

// ExtractArray parses the widest [...] span of content.
func ExtractArray(content string) ([]json.RawMessage, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end < start {
		return nil, ErrNoJSONArray
	}

	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(content[start:end+1]), &elements); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoJSONArray, err)
	}
	return elements, nil
}

// ExtractObject parses the widest {...} span of content.
func ExtractObject(content string) (json.RawMessage, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return nil, ErrNoJSONObject
	}

	raw := json.RawMessage(content[start : end+1])
	if !json.Valid(raw) {
		return nil, ErrNoJSONObject
	}
	return raw, nil
}

// ExtractResults reads the model's answer as an array, or as a lone object
// when no array is present.
func ExtractResults(content string) ([]json.RawMessage, error) {
	elements, arrErr := ExtractArray(content)
	if arrErr == nil {
		return elements, nil
	}

	obj, objErr := ExtractObject(content)
	if objErr != nil {
		return nil, errors.Join(arrErr, objErr)
	}
	return []json.RawMessage{obj}, nil
}

// ParseElement decodes one array element. Anything that is not an object with
// a numeric score is reported as unresolved.
func ParseElement(raw json.RawMessage) (models.SentimentResult, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return models.SentimentResult{}, false
	}

	var remote models.RemoteResult
	if err := json.Unmarshal(trimmed, &remote); err != nil || !remote.HasScore() {
		return models.SentimentResult{}, false
	}
	return remote.Normalize(), true
}
