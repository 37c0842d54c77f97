// Package partialjson closes JSON text that was cut off mid-stream, so the
// complete part of a truncated object can still be decoded.
package partialjson

import (
	"encoding/json"
	"strings"
)

// maxBackoffs bounds how many earlier cut points Close tries.
const maxBackoffs = 48

type cutPoint struct {
	pos   int
	stack string
}

// Close returns the longest prefix of s that is valid JSON once its open
// containers are closed. s must start with '{' or '['. A fully closed value
// ends the scan and is returned as is.
//
// With keepOpenString an unterminated trailing string is closed and kept,
// which suits live progress. Without it the value being written is dropped
// and only values that were complete in s survive.
func Close(s string, keepOpenString bool) (string, bool) {
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return "", false
	}
	var (
		stack    []byte
		inString bool
		escaped  bool
		cuts     []cutPoint
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
				cuts = append(cuts, cutPoint{pos: i + 1, stack: string(stack)})
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
			cuts = append(cuts, cutPoint{pos: i + 1, stack: string(stack)})
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			cuts = append(cuts, cutPoint{pos: i + 1, stack: string(stack)})
			if len(stack) == 0 {
				if out := s[:i+1]; json.Valid([]byte(out)) {
					return out, true
				}
				return "", false
			}
		case ',':
			cuts = append(cuts, cutPoint{pos: i, stack: string(stack)})
		}
	}

	if !inString || keepOpenString {
		tail := s
		if inString {
			if escaped {
				tail = tail[:len(tail)-1]
			}
			tail += `"`
		}
		if out := closeWith(tail, string(stack)); json.Valid([]byte(out)) {
			return out, true
		}
	}
	for i, tries := len(cuts)-1, 0; i >= 0 && tries < maxBackoffs; i, tries = i-1, tries+1 {
		if out := closeWith(s[:cuts[i].pos], cuts[i].stack); json.Valid([]byte(out)) {
			return out, true
		}
	}
	return "", false
}

func closeWith(prefix, stack string) string {
	prefix = strings.TrimRight(prefix, " \t\r\n")
	prefix = strings.TrimSuffix(prefix, ",")
	var b strings.Builder
	b.Grow(len(prefix) + len(stack))
	b.WriteString(prefix)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}
