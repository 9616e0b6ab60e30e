// Package debugger defines the contract between the debugger view and a
// debugger backend.
//
// A backend implements Proxy, usually by embedding a *Hub for the event half
// and answering the blocking queries itself. The view never talks to a backend
// process directly; it subscribes to the five event streams and calls back
// through the query methods.
//
// # Events
//
//   - SessionEvent: launched, suspended, resumed, will-terminate, terminated
//   - BreakpointEvent: inserted, removed, enabled, disabled, moved,
//     condition-added, condition-removed
//   - TargetEvent: program output
//   - VariableEvent: entered-scope, left-scope, updated
//   - FrameChangeEvent: the selected stack frame changed
//
// # Errors
//
// Synchronization failures are *Error values carrying one of four kinds:
// ErrMalformedEvent, ErrUnsupportedBreakpointKind, ErrDesync and
// ErrBackendQuery. None of them is fatal; callers report them and carry on.
package debugger
