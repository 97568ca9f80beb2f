package errors

import (
	"context"
	"fmt"
	"runtime"

	"github.com/logichill/sagaforge/logging"
)

// Wrap promotes err to an AppError carrying code, without emitting a
// log line. Use at a package boundary (store/producer/client -> caller)
// where the caller decides whether and how loudly to log.
func Wrap(_ context.Context, err error, code ErrorCode, msg string) error {
	if err == nil {
		return nil
	}
	return WrapError(err, code, msg)
}

// WrapWithLog wraps err and immediately emits a warning with the call
// site attached, for errors that should be visible the moment they
// happen rather than only if/when a caller decides to log them.
func WrapWithLog(ctx context.Context, err error, code ErrorCode, msg string, fields ...logging.Field) error {
	if err == nil {
		return nil
	}
	_, file, line, _ := runtime.Caller(1)
	wrapped := WrapError(err, code, msg)

	allFields := append([]logging.Field{
		logging.Error(err),
		logging.String("error_code", string(code)),
		logging.String("location", fmt.Sprintf("%s:%d", file, line)),
	}, fields...)
	logging.GetLogger().Warn(ctx, msg, allFields...)

	return wrapped
}

// WrapDatabaseError classifies a sagastore/sqlstore error: a not-found
// row passes through as ErrCodeNotFound (so httpapi maps it to 404
// rather than 500), everything else becomes a logged ErrCodeDatabase
// error.
func WrapDatabaseError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}
	if IsNotFound(Normalize(err)) {
		return WrapError(err, ErrCodeNotFound, operation)
	}
	return WrapWithLog(ctx, err, ErrCodeDatabase,
		fmt.Sprintf("database operation failed: %s", operation),
		logging.String("operation", operation),
	)
}

// New creates an error carrying code and the call site, for errors
// originating in this package's callers rather than wrapping one
// already returned by a dependency.
func New(code ErrorCode, msg string) error {
	_, file, line, _ := runtime.Caller(1)
	return NewError(code, fmt.Sprintf("%s (location: %s:%d)", msg, file, line))
}

// NewValidationError is New with ErrCodeValidation, the common case for
// rejecting a malformed ExecuteSaga request.
func NewValidationError(msg string) error {
	return New(ErrCodeValidation, msg)
}
