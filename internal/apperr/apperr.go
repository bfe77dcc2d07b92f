// Package apperr defines the error taxonomy shared by every component.
// A component may only convert an error to a less specific Code by losing
// detail — never invent specificity it doesn't have. Only the store
// gateway may produce UpstreamDown/UpstreamTimeout.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is one of the error categories from the error handling design.
type Code string

const (
	CodeValidation  Code = "VALIDATION_ERROR"
	CodeConflict    Code = "CONFLICT_ERROR"
	CodeUpstream    Code = "UPSTREAM_DOWN"
	CodeTimeout     Code = "UPSTREAM_TIMEOUT"
	CodeRateLimited Code = "RATE_LIMITED"
	CodeNotFound    Code = "NOT_FOUND"
	CodeInternal    Code = "INTERNAL"
	CodeQuery       Code = "QUERY_ERROR"
	CodeConstraint  Code = "CONSTRAINT_VIOLATION"
)

// Error is the typed error every component boundary converts into before it
// reaches an HTTP handler.
type Error struct {
	Code     Code
	Message  string
	Upstream string // set only for UPSTREAM_* codes, e.g. "store"
	cause    error
}

func (e *Error) Error() string {
	if e.Upstream != "" {
		return fmt.Sprintf("%s: %s (upstream=%s)", e.Code, e.Message, e.Upstream)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an *Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds an *Error that preserves err for errors.Is/As chains.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// Upstream builds an UPSTREAM_DOWN error tagged with the failing collaborator.
func Upstream(upstream, message string, err error) *Error {
	return &Error{Code: CodeUpstream, Message: message, Upstream: upstream, cause: err}
}

// Timeout builds an UPSTREAM_TIMEOUT error tagged with the failing collaborator.
func Timeout(upstream, message string, err error) *Error {
	return &Error{Code: CodeTimeout, Message: message, Upstream: upstream, cause: err}
}

// As extracts an *Error from err, if present anywhere in its chain.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// HTTPStatus maps a Code to the status code the original design assigns it.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeUpstream, CodeTimeout:
		return http.StatusServiceUnavailable
	case CodeNotFound:
		return http.StatusNotFound
	case CodeQuery, CodeConstraint:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
