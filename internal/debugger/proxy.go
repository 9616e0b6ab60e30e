package debugger

import (
	"context"

	"github.com/dshills/dbgview/internal/event"
)

// Subscription is the handle returned by every On* method.
type Subscription = event.Subscription

// Proxy is the view's connection to a debugger backend.
//
// Callbacks are invoked synchronously, in emission order, on the goroutine
// that emits. Backends emit from the application loop.
type Proxy interface {
	OnSessionEvent(fn func(SessionEvent) error) Subscription
	OnBreakpointEvent(fn func(BreakpointEvent) error) Subscription
	OnTargetEvent(fn func(TargetEvent) error) Subscription
	OnVariableEvent(fn func(VariableEvent) error) Subscription
	OnFrameChange(fn func(FrameChangeEvent) error) Subscription

	// FindBreakpoint returns the breakpoint at loc.
	FindBreakpoint(loc Location) (*Breakpoint, bool)

	// RemoveBreakpoint removes bp and reports whether it existed. The backend
	// follows up with a removed event.
	RemoveBreakpoint(bp *Breakpoint) bool

	// CallStack returns the frames of the suspended thread.
	CallStack(ctx context.Context) ([]StackFrame, error)

	// SelectedFrame returns the currently selected frame.
	SelectedFrame(ctx context.Context) (StackFrame, error)

	// SetSelectedFrame selects a frame. It does not wait; the backend fires a
	// frame change event once the selection took effect.
	SetSelectedFrame(level int)

	// VariableChildren returns the children of v.
	VariableChildren(ctx context.Context, v Variable) ([]Variable, error)
}

// VariableLister is implemented by backends that serve the whole top-level
// variable list for the selected frame on request.
type VariableLister interface {
	VariableList(ctx context.Context) ([]Variable, error)
}

// Controller is the handle passed to the panel on activation.
type Controller interface {
	Proxy() Proxy
}

// ControllerFunc adapts a function to Controller.
type ControllerFunc func() Proxy

// Proxy calls f.
func (f ControllerFunc) Proxy() Proxy {
	return f()
}

// StaticController returns a Controller for an existing proxy.
func StaticController(p Proxy) Controller {
	return ControllerFunc(func() Proxy { return p })
}
