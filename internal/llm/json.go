package llm

import (
	"errors"
	"strings"
)

// ErrNoJSON is returned when no JSON object can be found in a model reply.
var ErrNoJSON = errors.New("no JSON object in response")

// ExtractJSONObject returns the first balanced top-level JSON object in s.
// Models sometimes wrap their JSON in prose or markdown fences even when a
// JSON response format was requested, so the extractor scans for a balanced
// brace pair instead of trusting the reply to be clean JSON.
func ExtractJSONObject(s string) (string, error) {
	s = strings.TrimSpace(s)
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", ErrNoJSON
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", ErrNoJSON
}
