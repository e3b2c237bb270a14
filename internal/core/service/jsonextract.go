package service

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/codepilot/assistant-api/internal/core/domain"
)

// ExtractJSONObject returns the first well-formed top-level JSON object in
// text. Models often wrap their answer in prose or code fences, so every
// balanced {...} span is tried in order.
func ExtractJSONObject(text string) (json.RawMessage, error) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end := matchBrace(text, start); end > 0 {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				var buf bytes.Buffer
				if err := json.Compact(&buf, []byte(candidate)); err == nil {
					return json.RawMessage(buf.Bytes()), nil
				}
			}
		}

		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, domain.ErrMalformedAIResponse
}

// matchBrace returns the index of the brace closing the one at start, or -1.
// Braces inside JSON strings are ignored.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
