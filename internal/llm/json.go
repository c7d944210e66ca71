package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when a reply contains no parseable JSON value
var ErrNoJSON = errors.New("llm: no JSON value in reply")

var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)\\s*```")

// ExtractJSON pulls the first complete JSON object or array out of a model reply.
// Markdown fences and surrounding prose are tolerated.
func ExtractJSON(reply string) (string, error) {
	text := strings.TrimSpace(reply)
	if m := fencePattern.FindStringSubmatch(text); len(m) > 1 {
		if candidate, ok := firstBalanced(m[1]); ok {
			return candidate, nil
		}
	}
	if candidate, ok := firstBalanced(text); ok {
		return candidate, nil
	}
	return "", ErrNoJSON
}

// firstBalanced returns the first balanced {...} or [...] span that is valid JSON
func firstBalanced(text string) (string, bool) {
	for start := 0; start < len(text); start++ {
		if text[start] != '{' && text[start] != '[' {
			continue
		}
		end := matchClose(text, start)
		if end < 0 {
			continue
		}
		candidate := text[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}
	return "", false
}

// matchClose finds the index closing the bracket at start, skipping string literals
func matchClose(text string, start int) int {
	var stack []byte
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
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}

// DecodeJSON extracts the first JSON value from reply and unmarshals it into v
func DecodeJSON(reply string, v any) error {
	raw, err := ExtractJSON(reply)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return errors.Join(ErrNoJSON, err)
	}
	return nil
}
