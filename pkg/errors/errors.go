package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a domain error that knows its HTTP status.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches a code and status to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

var (
	ErrNotFound         = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrUnauthorized     = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrValidation       = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrConflict         = New("CONFLICT", http.StatusConflict, "resource is in use")
	ErrCapacityExceeded = New("CAPACITY_EXCEEDED", http.StatusConflict, "host family has no remaining capacity")
	ErrCommitFailed     = New("COMMIT_FAILED", http.StatusBadGateway, "saving assignments failed")
	ErrSessionNotFound  = New("SESSION_NOT_FOUND", http.StatusNotFound, "assignment session not found")
	ErrRateLimited      = New("RATE_LIMITED", http.StatusTooManyRequests, "daily request limit reached")
	ErrInternal         = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// FromError normalises any error into an *Error. The message of the outermost
// error is kept so wrapped context (ids, causes) reaches the caller.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if err == error(e) {
			return e
		}
		return &Error{Code: e.Code, Status: e.Status, Message: err.Error()}
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
