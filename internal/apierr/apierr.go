// Package apierr defines the gateway's error taxonomy. Every failure that
// crosses the orchestrator boundary is carried as an *Error so callers and the
// usage ledger see a stable code instead of a free-form message.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeNotFound      Code = "NOT_FOUND"
	CodeMissingAPIKey Code = "MISSING_API_KEY"
	CodeAuth          Code = "AUTH_ERROR"
	CodeRateLimit     Code = "RATE_LIMIT"
	CodeBadRequest    Code = "BAD_REQUEST"
	CodeTimeout       Code = "TIMEOUT"
	CodeInternal      Code = "INTERNAL_ERROR"
)

type Error struct {
	Code       Code
	Message    string
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Status maps the error code to its HTTP response status.
func (e *Error) Status() int {
	switch e.Code {
	case CodeValidation, CodeMissingAPIKey, CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAuth:
		return http.StatusUnauthorized
	case CodeRateLimit:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return New(CodeValidation, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(CodeNotFound, format, args...)
}

func Internal(format string, args ...any) *Error {
	return New(CodeInternal, format, args...)
}

// From normalizes any error into an *Error; unclassified errors become
// INTERNAL_ERROR. The orchestrator calls this exactly once per request.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{Code: CodeInternal, Message: err.Error()}
}
