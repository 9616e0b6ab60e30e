package panel

import (
	"github.com/dshills/dbgview/internal/breakpoints"
	"github.com/dshills/dbgview/internal/callstack"
	"github.com/dshills/dbgview/internal/debugger"
	"github.com/dshills/dbgview/internal/editor"
	"github.com/dshills/dbgview/internal/scope"
	"github.com/dshills/dbgview/internal/session"
)

// Snapshot is a complete, renderable copy of the panel.
type Snapshot struct {
	Active      bool                     `json:"active"`
	Layout      Layout                   `json:"layout"`
	Session     SessionView              `json:"session"`
	Breakpoints breakpoints.View         `json:"breakpoints"`
	CallStack   []callstack.Frame        `json:"callStack"`
	ScopeModel  string                   `json:"scopeModel,omitempty"`
	Scope       []scope.NodeView         `json:"scope"`
	Console     []string                 `json:"console"`
	Signs       map[string][]editor.Sign `json:"signs,omitempty"`
}

// SessionView is the session header.
type SessionView struct {
	State         session.State           `json:"state"`
	Reason        string                  `json:"reason,omitempty"`
	ExecutionLine *debugger.ExecutionLine `json:"executionLine,omitempty"`
}

// Snapshot copies the current state of every section.
func (p *Panel) Snapshot() Snapshot {
	s := Snapshot{
		Active:      p.active,
		Layout:      p.layout,
		Breakpoints: breakpoints.View{Projects: []breakpoints.ProjectView{}, Placeholder: true},
		CallStack:   []callstack.Frame{},
		Scope:       []scope.NodeView{},
		Console:     []string{},
	}
	if !p.active {
		return s
	}

	s.Session = SessionView{State: p.session.State(), Reason: p.session.Reason()}
	if line, ok := p.session.ExecutionLine(); ok {
		s.Session.ExecutionLine = &line
	}
	s.Breakpoints = p.breakpoints.View()
	s.CallStack = p.callstack.Frames()
	s.ScopeModel = p.scopeModel
	s.Scope = p.scope.View()
	if lines := p.console.Lines(); lines != nil {
		s.Console = lines
	}
	if p.opts.Signs != nil {
		s.Signs = p.opts.Signs.AllSigns()
	}
	return s
}
