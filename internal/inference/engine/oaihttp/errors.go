package oaihttp

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCompletion   = errors.New("empty upstream completion")
	ErrMalformedResponse = errors.New("malformed upstream response")
)

// HTTPError is a non-2xx upstream response. Body is capped at 1 MiB.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "upstream http error"
	}
	if e.Body == "" {
		return fmt.Sprintf("upstream http error: status=%d", e.StatusCode)
	}
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("upstream http error: status=%d body=%s", e.StatusCode, body)
}
