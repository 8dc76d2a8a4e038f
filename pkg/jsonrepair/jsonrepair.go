// Package jsonrepair decodes JSON out of LLM output that may be fenced,
// wrapped in prose, or truncated mid-generation.
package jsonrepair

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrUndecodable means no repair step produced valid JSON.
var ErrUndecodable = errors.New("no JSON object could be recovered")

// Decode tries progressively harsher repairs and unmarshals the first
// candidate that parses: the raw input, the unfenced input, the first
// brace-balanced object, that object with missing closers appended, and
// finally the object with its trailing partial element dropped.
func Decode(raw string, v any) error {
	stripped := StripFences(raw)
	outer := outermostObject(stripped)

	candidates := []string{
		raw,
		stripped,
		outer,
		closeUnbalanced(outer),
		closeUnbalanced(dropTrailingPartial(outer)),
	}
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if err := json.Unmarshal([]byte(candidate), v); err == nil {
			return nil
		}
	}
	return ErrUndecodable
}

// StripFences unwraps a markdown code fence, with or without a language
// tag, tolerating a missing closing fence.
func StripFences(raw string) string {
	start := strings.Index(raw, "```")
	if start < 0 {
		return raw
	}
	rest := raw[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(rest[:nl])
		if firstLine == "" || !strings.ContainsAny(firstLine, "{[") {
			rest = rest[nl+1:]
		}
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// outermostObject extracts the first brace-balanced object. If the
// object never closes the unbalanced tail is returned for later repair.
func outermostObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{' || c == '[':
			depth++
		case c == '}' || c == ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}

// closeUnbalanced appends whatever closers a truncated candidate is
// missing, including a dangling string quote.
func closeUnbalanced(s string) string {
	if s == "" {
		return ""
	}
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			stack = append(stack, '}')
		case c == '[':
			stack = append(stack, ']')
		case c == '}' || c == ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	out := s
	if inString {
		out += `"`
	}
	out = strings.TrimRight(out, ", \n\t")
	for i := len(stack) - 1; i >= 0; i-- {
		out += string(stack[i])
	}
	return out
}

// dropTrailingPartial truncates after the last complete object. An
// object opened but never closed is dropped entirely.
func dropTrailingPartial(s string) string {
	lastClose := strings.LastIndexByte(s, '}')
	lastOpen := strings.LastIndexByte(s, '{')
	switch {
	case lastOpen > lastClose:
		s = s[:lastOpen]
	case lastClose >= 0:
		s = s[:lastClose+1]
	}
	return strings.TrimRight(s, ", \n\t")
}
