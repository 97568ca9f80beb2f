package errors

import (
	stdErrors "errors"
)

// notFoundError / concurrencyError / unavailableError let Normalize
// recognize sentinel errors from saga/sagastore/eventlog/participant
// without importing those packages. Each package's errors satisfy one of
// these optional interfaces; the marker method's result decides the match.
type notFoundError interface {
	error
	NotFound() bool
}

type concurrencyError interface {
	error
	Concurrency() bool
}

type unavailableError interface {
	error
	Unavailable() bool
}

// Normalize converts errors originating in the saga coordination core
// (sagastore, eventlog, participant) into AppError with a single
// taxonomy: validation / not-found / concurrency / infrastructure.
//
// Design goal:
//   - present one ErrorCode vocabulary to the HTTP layer instead of a grab
//     bag of package-local sentinel errors;
//   - preserve the original error as cause for logs/debugging;
//   - leave unrecognized errors alone rather than force-wrap them.
func Normalize(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := err.(IError); ok {
		return err
	}

	var nf notFoundError
	if stdErrors.As(err, &nf) && nf.NotFound() {
		return WrapError(err, ErrCodeNotFound, "saga resource not found")
	}

	var conc concurrencyError
	if stdErrors.As(err, &conc) && conc.Concurrency() {
		return WrapError(err, ErrCodeConcurrency, "saga state concurrency conflict")
	}

	var unavail unavailableError
	if stdErrors.As(err, &unavail) && unavail.Unavailable() {
		return WrapError(err, ErrCodeServiceUnavailable, "saga backend unavailable")
	}

	return err
}
