package bridge

import (
	"context"
	"errors"

	"litertd/internal/engine"
)

// notFoundError signals an unknown or released session id for 404 mapping.
type notFoundError struct{ id string }

func (e notFoundError) Error() string { return "session not found: " + e.id }

// ErrNotFound constructs a notFoundError.
func ErrNotFound(id string) error { return notFoundError{id: id} }

// IsNotFound reports whether err indicates an unknown session id.
func IsNotFound(err error) bool {
	var e notFoundError
	return errors.As(err, &e)
}

// alreadyReleasedError signals a second Release on the same session id.
type alreadyReleasedError struct{ id string }

func (e alreadyReleasedError) Error() string { return "session already released: " + e.id }

// ErrAlreadyReleased constructs an alreadyReleasedError.
func ErrAlreadyReleased(id string) error { return alreadyReleasedError{id: id} }

// IsAlreadyReleased reports whether err indicates a duplicate release.
func IsAlreadyReleased(err error) bool {
	var e alreadyReleasedError
	return errors.As(err, &e)
}

// alreadyAbortedError signals a context that was canceled before the
// generation was issued; no native call is made in that case.
type alreadyAbortedError struct{}

func (alreadyAbortedError) Error() string { return "aborted before generation started" }

// ErrAlreadyAborted constructs an alreadyAbortedError.
func ErrAlreadyAborted() error { return alreadyAbortedError{} }

// IsAlreadyAborted reports whether err indicates pre-call cancellation.
func IsAlreadyAborted(err error) bool {
	var e alreadyAbortedError
	return errors.As(err, &e)
}

// abortedError signals caller cancellation mid-generation. Distinct from
// engineError so callers can treat it as expected cancellation.
type abortedError struct{}

func (abortedError) Error() string { return "generation aborted" }

// ErrAborted constructs an abortedError.
func ErrAborted() error { return abortedError{} }

// IsAborted reports whether err indicates caller cancellation, before or
// during the generation.
func IsAborted(err error) bool {
	var during abortedError
	if errors.As(err, &during) {
		return true
	}
	return IsAlreadyAborted(err)
}

// engineError carries a native failure message verbatim.
type engineError struct{ msg string }

func (e engineError) Error() string { return e.msg }

// ErrEngine wraps a native error message.
func ErrEngine(msg string) error { return engineError{msg: msg} }

// IsEngineError reports whether err originated in the native runtime.
func IsEngineError(err error) bool {
	var e engineError
	return errors.As(err, &e)
}

// unsupportedError signals a missing engine capability. Never retried.
type unsupportedError struct{ op string }

func (e unsupportedError) Error() string { return "engine does not support " + e.op }

// ErrUnsupported constructs an unsupportedError.
func ErrUnsupported(op string) error { return unsupportedError{op: op} }

// IsUnsupported reports whether err indicates a missing engine capability.
func IsUnsupported(err error) bool {
	var e unsupportedError
	return errors.As(err, &e) || errors.Is(err, engine.ErrUnsupportedOperation)
}

// tooBusyError signals admission timeout/overflow for 429 mapping.
type tooBusyError struct{ id string }

func (e tooBusyError) Error() string { return "too busy: " + e.id }

// ErrTooBusy constructs a tooBusyError.
func ErrTooBusy(id string) error { return tooBusyError{id: id} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

// canceled reports whether err is a context cancellation in any form.
func canceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
