// internal/apperrors/errors.go
package apperrors

import (
	"errors"
	"fmt"
)

// Code identifies a failure class. Every error the engines return carries
// exactly one code; the HTTP layer maps codes to statuses.
type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeInvalidState      Code = "INVALID_STATE"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeNotFound          Code = "NOT_FOUND"
	CodeExpired           Code = "EXPIRED"
	CodeConflict          Code = "CONFLICT"
)

type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(format string, args ...interface{}) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(format string, args ...interface{}) *Error {
	return &Error{Code: CodeUnauthorized, Message: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...interface{}) *Error {
	return &Error{Code: CodeInvalidState, Message: fmt.Sprintf(format, args...)}
}

func InvalidTransition(entity string, from, to interface{}) *Error {
	return &Error{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("%s cannot move from %v to %v", entity, from, to),
	}
}

func NotFound(resource string, id interface{}) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s %v not found", resource, id)}
}

func Expired(format string, args ...interface{}) *Error {
	return &Error{Code: CodeExpired, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...interface{}) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause while keeping the code matchable.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the failure code, if err belongs to the taxonomy.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
