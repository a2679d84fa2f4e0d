// Package apierr turns domain errors into HTTP responses: handlers pass
// errors to WriteJSON, which picks the status code from the error's Kind.
// Two responses are written outside it: the 401s of
// middleware.AuthMiddleware and the 409 TooLate body of the matchmaking
// dequeue handler.
package apierr

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind is a closed set of error categories the HTTP layer knows how to
// translate. Nothing outside this package should branch on status codes.
type Kind string

const (
	Validation Kind = "VALIDATION"
	NotFound   Kind = "NOT_FOUND"
	Permission Kind = "PERMISSION"
	Conflict   Kind = "CONFLICT"
	Upstream   Kind = "UPSTREAM"
	Internal   Kind = "INTERNAL"
)

var statusByKind = map[Kind]int{
	Validation: http.StatusBadRequest,
	NotFound:   http.StatusNotFound,
	Permission: http.StatusForbidden,
	Conflict:   http.StatusConflict,
	Upstream:   http.StatusServiceUnavailable,
	Internal:   http.StatusInternalServerError,
}

// Error is the error type every internal package returns across a package
// boundary once it knows how the failure should be reported.
type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return string(e.Kind) + ": " + e.Code
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// NewValidation builds a Validation error with a stable machine-readable code.
func NewValidation(code, msg string) *Error { return newErr(Validation, code, msg) }

// NewNotFound builds a NotFound error.
func NewNotFound(code, msg string) *Error { return newErr(NotFound, code, msg) }

// NewPermission builds a Permission error.
func NewPermission(code, msg string) *Error { return newErr(Permission, code, msg) }

// NewConflict builds a Conflict error.
func NewConflict(code, msg string) *Error { return newErr(Conflict, code, msg) }

// NewUpstream builds an Upstream error, wrapping the underlying transport
// or remote-service failure for logging.
func NewUpstream(code, msg string, cause error) *Error {
	e := newErr(Upstream, code, msg)
	e.Err = cause
	return e
}

// NewInternal builds an Internal error, wrapping the underlying cause.
func NewInternal(cause error) *Error {
	e := newErr(Internal, "internal_error", "an internal error occurred")
	e.Err = cause
	return e
}

// WriteJSON maps an error to an HTTP status code and response body by its
// Kind; an error that is not an *Error is reported as Internal.
func WriteJSON(c *gin.Context, err error) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		apiErr = NewInternal(err)
	}
	status, ok := statusByKind[apiErr.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	body := gin.H{
		"error": apiErr.Code,
		"message": apiErr.Msg,
	}
	if apiErr.Code == "" {
		body["error"] = string(apiErr.Kind)
	}
	c.JSON(status, body)
}
