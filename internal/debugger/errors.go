package debugger

import (
	"errors"
	"fmt"
)

// Error kinds. Every *Error matches exactly one of these with errors.Is.
var (
	// ErrMalformedEvent indicates an event missing a required field.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrUnsupportedBreakpointKind indicates a breakpoint kind the view cannot show.
	ErrUnsupportedBreakpointKind = errors.New("not yet implemented for this kind of breakpoint")

	// ErrDesync indicates view state that no longer matches the backend.
	ErrDesync = errors.New("view out of sync with debugger")

	// ErrBackendQuery indicates a failed query to the debugger backend.
	ErrBackendQuery = errors.New("debugger query failed")
)

// Error is a non-fatal failure while synchronizing view state.
type Error struct {
	Kind   error  // One of the Err* kinds above
	Op     string // Operation, e.g. "breakpoint.removed"
	Detail string // Human readable detail
	Err    error  // Underlying cause, may be nil
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches the error kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	return target == e.Kind
}

// Malformed returns an ErrMalformedEvent error.
func Malformed(op, detail string) *Error {
	return &Error{Kind: ErrMalformedEvent, Op: op, Detail: detail}
}

// Unsupported returns an ErrUnsupportedBreakpointKind error for loc.
func Unsupported(op string, loc Location) *Error {
	return &Error{Kind: ErrUnsupportedBreakpointKind, Op: op, Detail: loc.String()}
}

// Desync returns an ErrDesync error.
func Desync(op string, format string, args ...any) *Error {
	return &Error{Kind: ErrDesync, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// BackendQuery wraps err as an ErrBackendQuery error.
func BackendQuery(op string, err error) *Error {
	return &Error{Kind: ErrBackendQuery, Op: op, Err: err}
}

// IsDesync reports whether err is a desync error.
func IsDesync(err error) bool {
	return errors.Is(err, ErrDesync)
}
