package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeInvalidRequest  = "invalid_request"
	CodeUnauthenticated = "unauthenticated"
	CodeRateLimited     = "rate_limited"
	CodeInternal        = "internal_error"
)

// Error carries the HTTP semantics of a failure surfaced to a caller.
// RetryAfter is only meaningful for 429s and is expressed in whole seconds.
type Error struct {
	Status     int
	Code       string
	Err        error
	RetryAfter int
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func BadRequest(err error) *Error {
	return New(http.StatusBadRequest, CodeInvalidRequest, err)
}

func Unauthorized(err error) *Error {
	return New(http.StatusUnauthorized, CodeUnauthenticated, err)
}

func RateLimited(retryAfterSeconds int) *Error {
	if retryAfterSeconds < 1 {
		retryAfterSeconds = 1
	}
	e := New(http.StatusTooManyRequests, CodeRateLimited, errors.New("too many generation requests, try again later"))
	e.RetryAfter = retryAfterSeconds
	return e
}

func Internal(err error) *Error {
	return New(http.StatusInternalServerError, CodeInternal, err)
}

// From maps any error onto an *Error. Unknown errors become 500s.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}
