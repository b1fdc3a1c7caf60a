package httpclient

import (
	goerrors "errors"

	"github.com/cartpulse/cartpulse/internal/errors"
)

// Error is returned for responses with a 4xx or 5xx status. The raw
// response body is kept so callers can inspect provider error payloads.
type Error struct {
	*errors.InternalError
	StatusCode int
	Response   []byte
}

func (e *Error) Unwrap() error {
	return e.InternalError.Unwrap()
}

func (e *Error) Error() string {
	return e.InternalError.Error()
}

// NewError wraps a non-2xx response as an Error.
func NewError(statusCode int, response []byte) *Error {
	return &Error{
		InternalError: errors.New(errors.ErrCodeHTTPClient, "http client error"),
		StatusCode:    statusCode,
		Response:      response,
	}
}

// IsHTTPError extracts an *Error from an error chain when present.
func IsHTTPError(err error) (*Error, bool) {
	var httpErr *Error
	if goerrors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}
