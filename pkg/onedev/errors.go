package onedev

import (
	"fmt"
	"net/http"
)

// PreconditionError means a request was never attempted because a required
// credential field was missing or unusable.
type PreconditionError struct {
	Field  string
	Reason string
}

func (e *PreconditionError) Error() string {
	if len(e.Reason) > 0 {
		return fmt.Sprintf("invalid credential field %s: %s", e.Field, e.Reason)
	}
	return "missing credential field: " + e.Field
}

// TransportError means no response was obtained at all: DNS failure, refused
// connection, timeout, or a body that could not be read.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "request failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError is a response with a non-2xx status.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// ParseError means the response body was not the JSON shape we asked for.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "malformed response: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// NotFoundError means a lookup that requires a match got an empty result.
type NotFoundError struct {
	ProjectPath string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no project found with path %q", e.ProjectPath)
}
