package errors

import (
	stdErrors "errors"
	"fmt"
)

// ErrorCode is a stable, machine-checkable error classification, distinct
// from the free-form message text so callers (HTTP mapping, metrics,
// logging) can switch on it without parsing strings.
type ErrorCode string

const (
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeConflict           ErrorCode = "CONFLICT"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	ErrCodeValidation  ErrorCode = "VALIDATION_ERROR"
	ErrCodeDuplicate   ErrorCode = "DUPLICATE_ERROR"
	ErrCodeDependency  ErrorCode = "DEPENDENCY_ERROR"
	ErrCodeConcurrency ErrorCode = "CONCURRENCY_ERROR"

	ErrCodeDatabase ErrorCode = "DATABASE_ERROR"
)

// IError is the error contract the saga coordination core's packages
// (sagastore, eventlog, participant, httpapi) are expected to satisfy
// or wrap into, so the HTTP layer can map one ErrorCode vocabulary onto
// status codes instead of switching on package-local sentinel errors.
type IError interface {
	error

	Code() ErrorCode
	Message() string
	Cause() error
	Is(target error) bool
}

// AppError is the concrete IError. It never itself chooses an HTTP
// status; httpapi.statusForSagaCode/the Normalize-then-switch in
// server.go owns that mapping, keeping the error type itself
// transport-agnostic.
type AppError struct {
	code    ErrorCode
	message string
	cause   error
}

// NewError creates a fresh AppError with no wrapped cause.
func NewError(code ErrorCode, message string) IError {
	return &AppError{code: code, message: message}
}

// NewErrorWithCause creates an AppError that wraps an underlying error,
// preserving it for errors.Is/errors.As and for Unwrap.
func NewErrorWithCause(code ErrorCode, message string, cause error) IError {
	return &AppError{code: code, message: message, cause: cause}
}

// WrapError promotes any error into an AppError carrying code and a
// saga-coordination-specific message, keeping the original as cause.
func WrapError(err error, code ErrorCode, message string) IError {
	if err == nil {
		return nil
	}
	return &AppError{code: code, message: message, cause: err}
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

func (e *AppError) Code() ErrorCode { return e.code }
func (e *AppError) Message() string { return e.message }
func (e *AppError) Cause() error    { return e.cause }
func (e *AppError) Unwrap() error   { return e.cause }

// Is treats two AppErrors as equal when their codes match, and falls
// through to the wrapped cause otherwise, so errors.Is(err, someStdErr)
// keeps working across a WrapError boundary.
func (e *AppError) Is(target error) bool {
	if target == nil {
		return false
	}
	if appErr, ok := target.(*AppError); ok {
		return e.code == appErr.code
	}
	if e.cause != nil {
		return stdErrors.Is(e.cause, target)
	}
	return false
}

// IsNotFound reports whether err is (or wraps) an AppError with ErrCodeNotFound.
func IsNotFound(err error) bool {
	return IsErrorCode(err, ErrCodeNotFound)
}

// IsErrorCode reports whether err is (or wraps) an AppError with code.
func IsErrorCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if stdErrors.As(err, &appErr) {
		return appErr.code == code
	}
	return false
}

// GetErrorCode returns err's AppError code, or ErrCodeInternal if err
// is not an AppError.
func GetErrorCode(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stdErrors.As(err, &appErr) {
		return appErr.code
	}
	return ErrCodeInternal
}
