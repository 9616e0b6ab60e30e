package debugger

import (
	"github.com/dshills/dbgview/internal/event"
)

// Hub implements the subscription half of Proxy. Backends embed a *Hub and
// call the Emit methods; handler failures go to the hub's error handler.
type Hub struct {
	session    *event.Emitter[SessionEvent]
	breakpoint *event.Emitter[BreakpointEvent]
	target     *event.Emitter[TargetEvent]
	variable   *event.Emitter[VariableEvent]
	frame      *event.Emitter[FrameChangeEvent]
}

// NewHub creates a hub with no subscribers.
func NewHub() *Hub {
	return &Hub{
		session:    event.NewEmitter[SessionEvent]("session"),
		breakpoint: event.NewEmitter[BreakpointEvent]("breakpoint"),
		target:     event.NewEmitter[TargetEvent]("target"),
		variable:   event.NewEmitter[VariableEvent]("variable"),
		frame:      event.NewEmitter[FrameChangeEvent]("frame"),
	}
}

// SetErrorHandler routes handler errors and recovered panics of every topic
// to h.
func (h *Hub) SetErrorHandler(fn event.ErrorHandler) {
	h.session.SetErrorHandler(fn)
	h.breakpoint.SetErrorHandler(fn)
	h.target.SetErrorHandler(fn)
	h.variable.SetErrorHandler(fn)
	h.frame.SetErrorHandler(fn)
}

func (h *Hub) OnSessionEvent(fn func(SessionEvent) error) Subscription {
	return h.session.Subscribe(fn)
}

func (h *Hub) OnBreakpointEvent(fn func(BreakpointEvent) error) Subscription {
	return h.breakpoint.Subscribe(fn)
}

func (h *Hub) OnTargetEvent(fn func(TargetEvent) error) Subscription {
	return h.target.Subscribe(fn)
}

func (h *Hub) OnVariableEvent(fn func(VariableEvent) error) Subscription {
	return h.variable.Subscribe(fn)
}

func (h *Hub) OnFrameChange(fn func(FrameChangeEvent) error) Subscription {
	return h.frame.Subscribe(fn)
}

// EmitSession delivers ev and returns the number of failed handlers.
func (h *Hub) EmitSession(ev SessionEvent) int {
	return h.session.Emit(ev)
}

// EmitBreakpoint delivers ev and returns the number of failed handlers.
func (h *Hub) EmitBreakpoint(ev BreakpointEvent) int {
	return h.breakpoint.Emit(ev)
}

// EmitTarget delivers ev and returns the number of failed handlers.
func (h *Hub) EmitTarget(ev TargetEvent) int {
	return h.target.Emit(ev)
}

// EmitVariable delivers ev and returns the number of failed handlers.
func (h *Hub) EmitVariable(ev VariableEvent) int {
	return h.variable.Emit(ev)
}

// EmitFrameChange delivers ev and returns the number of failed handlers.
func (h *Hub) EmitFrameChange(ev FrameChangeEvent) int {
	return h.frame.Emit(ev)
}

// Subscribers returns the total number of live subscriptions.
func (h *Hub) Subscribers() int {
	return h.session.Len() + h.breakpoint.Len() + h.target.Len() +
		h.variable.Len() + h.frame.Len()
}
