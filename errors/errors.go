package errors

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// DriverError is a wrapper around a system errno code with a customizable
// message and, optionally, the lower-level error it was derived from (a
// block device I/O failure, say).
type DriverError interface {
	error
	Errno() Errno
	Unwrap() error
	WithMessage(message string) DriverError
	Wrap(cause error) DriverError
}

type driverError struct {
	errno         Errno
	message       string
	originalError error
}

// Error implements the `error` interface.
func (e driverError) Error() string {
	if e.message != "" {
		return e.message
	}
	return StrError(e.errno)
}

func (e driverError) Errno() Errno {
	return e.errno
}

func (e driverError) Unwrap() error {
	return e.originalError
}

// WithMessage returns a copy of e with message appended, keeping the same
// Errno.
func (e driverError) WithMessage(message string) DriverError {
	return driverError{
		errno:         e.errno,
		message:       fmt.Sprintf("%s: %s", e.Error(), message),
		originalError: e.originalError,
	}
}

// Wrap returns a copy of e that also carries cause. Both the errno-level
// error and cause remain reachable via errors.Is/errors.As on the returned
// value, via go-multierror, so an underlying OS error is never lost behind
// the canonical errno.
func (e driverError) Wrap(cause error) DriverError {
	merged := multierror.Append(multierror.Append(new(multierror.Error), error(e)), cause)
	return driverError{
		errno:         e.errno,
		message:       fmt.Sprintf("%s: %s", e.Error(), cause.Error()),
		originalError: merged,
	}
}

// New creates a DriverError with the default message for errnoCode.
func New(errnoCode Errno) DriverError {
	return driverError{errno: errnoCode, message: StrError(errnoCode)}
}

// NewWithMessage creates a DriverError from errnoCode with a custom message.
func NewWithMessage(errnoCode Errno, message string) DriverError {
	return driverError{
		errno:   errnoCode,
		message: fmt.Sprintf("%s: %s", StrError(errnoCode), message),
	}
}
