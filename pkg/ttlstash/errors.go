package ttlstash

import (
	"errors"
	"fmt"
)

// Error is a classified storage failure.
//
// Two errors are equal under errors.Is when their codes match, so callers
// can test against the sentinels below:
//
//	if errors.Is(err, ttlstash.ErrQuotaExceeded) { ... }
type Error struct {
	Code    Status // Classified status
	Message string // Human-readable message
	Cause   error  // Native backend error (if any)
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the native backend error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *Error) WithCause(cause error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Cause:   cause,
	}
}

func newError(code Status, message string) *Error {
	return &Error{Code: code, Message: message}
}

var (
	// ErrNotAvailable indicates the host has no backend for the engine.
	ErrNotAvailable = newError(StatusNotAvailable, "storage not supported")

	// ErrDisabled indicates the backend is present but unusable.
	ErrDisabled = newError(StatusDisabled, "storage is disabled")

	// ErrQuotaExceeded indicates the backend is out of space.
	ErrQuotaExceeded = newError(StatusQuotaExceeded, "storage quota exceeded")

	// ErrException matches any unclassified backend failure.
	ErrException = newError(StatusException, "storage exception")
)

// ErrBackendClosed is returned by backends used after Close. It classifies
// as StatusDisabled.
var ErrBackendClosed = errors.New("ttlstash: backend closed")

// StatusOf extracts the status code from err. A nil error is StatusReady;
// errors that are not *Error are StatusException.
func StatusOf(err error) Status {
	if err == nil {
		return StatusReady
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return StatusException
}
