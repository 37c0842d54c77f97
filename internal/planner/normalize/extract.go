package normalize

import (
	"regexp"
	"strings"

	"github.com/yungbote/travelplanner-backend/internal/planner/partialjson"
)

const (
	// Upper bound on embedded objects decoded per candidate string.
	maxBalancedTries = 16
	// Upper bound on '{' positions scanned, closed or not.
	maxBraceScans    = 256
)

var fencePattern = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*[ \t]*\r?\n?(.*?)```")

// extractValue pulls a JSON value out of model text. It tries, in order: the
// whole string, a fenced code block, then the first balanced {...} that parses.
func extractValue(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	if v, ok := parseContainer(s); ok {
		return v, true
	}
	for _, m := range fencePattern.FindAllStringSubmatch(s, -1) {
		if v, ok := parseContainer(strings.TrimSpace(m[1])); ok {
			return v, true
		}
	}
	if strings.HasPrefix(s, "```") {
		// unterminated fence from a truncated reply
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			if v, ok := parseContainer(strings.TrimSpace(s[nl+1:])); ok {
				return v, true
			}
		}
	}
	if body, isJSON := jsonBody(s); isJSON {
		if _, closed := balancedEnd(body, 0); !closed {
			// truncated reply; inner objects are fragments, not the report
			return nil, false
		}
	}
	return firstBalancedObject(s)
}

// parseContainer accepts objects and arrays. A JSON string holding JSON is unwrapped once.
func parseContainer(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	v, err := decodeOrdered([]byte(s))
	if err != nil {
		return nil, false
	}
	switch t := v.(type) {
	case *object, []any:
		return t, true
	case string:
		inner, err := decodeOrdered([]byte(strings.TrimSpace(t)))
		if err != nil {
			return nil, false
		}
		if obj, ok := inner.(*object); ok {
			return obj, true
		}
	}
	return nil, false
}

func firstBalancedObject(s string) (any, bool) {
	pos, tries := 0, 0
	for scans := 0; scans < maxBraceScans && tries < maxBalancedTries; scans++ {
		i := strings.IndexByte(s[pos:], '{')
		if i < 0 {
			return nil, false
		}
		start := pos + i
		end, ok := balancedEnd(s, start)
		if !ok {
			// unclosed brace, the object may start later
			pos = start + 1
			continue
		}
		tries++
		if v, err := decodeOrdered([]byte(s[start:end])); err == nil {
			if obj, ok := v.(*object); ok {
				return obj, true
			}
		}
		pos = start + 1
	}
	return nil, false
}

// balancedEnd returns the index just past the bracket closing the one at
// start. Brackets inside string literals are ignored.
func balancedEnd(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// jsonBody returns the JSON part of a reply that is a bare or fenced JSON
// value rather than prose. The value may be truncated.
func jsonBody(text string) (string, bool) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		nl := strings.IndexByte(s, '\n')
		if nl < 0 {
			return "", false
		}
		s = strings.TrimSpace(s[nl+1:])
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return "", false
	}
	return s, true
}

// salvageTruncated keeps the values that were complete before a JSON reply
// was cut off, typically at the token limit. At least one section must have
// survived, otherwise the result would be fallback filler.
func salvageTruncated(body string) (any, bool) {
	closed, ok := partialjson.Close(body, false)
	if !ok {
		return nil, false
	}
	v, err := decodeOrdered([]byte(closed))
	if err != nil {
		return nil, false
	}
	switch t := v.(type) {
	case *object:
		if secs, ok := t.lookup(sectionsKeys); ok {
			if arr, ok := secs.([]any); ok && len(arr) > 0 {
				return t, true
			}
		}
	case []any:
		if len(t) > 0 {
			return t, true
		}
	}
	return nil, false
}
