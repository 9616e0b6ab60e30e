// Package debuggertest provides a scriptable in-memory debugger.Proxy.
package debuggertest

import (
	"context"
	"errors"
	"sync"

	"github.com/dshills/dbgview/internal/debugger"
)

// ErrNoResult is returned by queries with nothing configured.
var ErrNoResult = errors.New("debuggertest: no result configured")

// Proxy is a fake backend. Query results are set through the exported fields
// before use; Gate, when set, blocks every query until it is closed.
type Proxy struct {
	*debugger.Hub

	mu sync.Mutex

	Stack       []debugger.StackFrame
	StackErr    error
	Selected    debugger.StackFrame
	SelectedErr error

	// Children maps a variable ID to its children.
	Children    map[string][]debugger.Variable
	ChildrenErr error

	Variables    []debugger.Variable
	VariablesErr error

	Breakpoints map[debugger.Location]*debugger.Breakpoint

	Gate chan struct{}

	calls          map[string]int
	selectedLevels []int
	removed        []debugger.Location
}

var (
	_ debugger.Proxy          = (*Proxy)(nil)
	_ debugger.VariableLister = (*Proxy)(nil)
)

// New creates an empty fake.
func New() *Proxy {
	return &Proxy{
		Hub:         debugger.NewHub(),
		Children:    make(map[string][]debugger.Variable),
		Breakpoints: make(map[debugger.Location]*debugger.Breakpoint),
		calls:       make(map[string]int),
	}
}

// Calls returns how many times the named method was called.
func (p *Proxy) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

// SelectedLevels returns the levels passed to SetSelectedFrame.
func (p *Proxy) SelectedLevels() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.selectedLevels...)
}

// RemovedLocations returns the locations passed to RemoveBreakpoint.
func (p *Proxy) RemovedLocations() []debugger.Location {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]debugger.Location(nil), p.removed...)
}

// AddBreakpoint registers bp and emits an inserted event.
func (p *Proxy) AddBreakpoint(bp *debugger.Breakpoint) {
	p.mu.Lock()
	p.Breakpoints[bp.Location] = bp
	p.mu.Unlock()
	p.EmitBreakpoint(debugger.BreakpointEvent{Type: debugger.BreakpointInserted, Breakpoint: bp})
}

func (p *Proxy) FindBreakpoint(loc debugger.Location) (*debugger.Breakpoint, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["FindBreakpoint"]++
	bp, ok := p.Breakpoints[loc]
	return bp, ok
}

// RemoveBreakpoint deletes the breakpoint and emits a removed event.
func (p *Proxy) RemoveBreakpoint(bp *debugger.Breakpoint) bool {
	p.mu.Lock()
	p.calls["RemoveBreakpoint"]++
	p.removed = append(p.removed, bp.Location)
	_, ok := p.Breakpoints[bp.Location]
	delete(p.Breakpoints, bp.Location)
	p.mu.Unlock()

	if ok {
		p.EmitBreakpoint(debugger.BreakpointEvent{Type: debugger.BreakpointRemoved, Breakpoint: bp})
	}
	return ok
}

func (p *Proxy) CallStack(ctx context.Context) ([]debugger.StackFrame, error) {
	if err := p.enter(ctx, "CallStack"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.StackErr != nil {
		return nil, p.StackErr
	}
	return append([]debugger.StackFrame(nil), p.Stack...), nil
}

func (p *Proxy) SelectedFrame(ctx context.Context) (debugger.StackFrame, error) {
	if err := p.enter(ctx, "SelectedFrame"); err != nil {
		return debugger.StackFrame{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Selected, p.SelectedErr
}

// SetSelectedFrame records level. It does not emit a frame change; tests do
// that explicitly with EmitFrameChange to control ordering.
func (p *Proxy) SetSelectedFrame(level int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["SetSelectedFrame"]++
	p.selectedLevels = append(p.selectedLevels, level)
}

func (p *Proxy) VariableChildren(ctx context.Context, v debugger.Variable) ([]debugger.Variable, error) {
	if err := p.enter(ctx, "VariableChildren"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ChildrenErr != nil {
		return nil, p.ChildrenErr
	}
	children, ok := p.Children[v.ID]
	if !ok {
		return nil, ErrNoResult
	}
	return append([]debugger.Variable(nil), children...), nil
}

func (p *Proxy) VariableList(ctx context.Context) ([]debugger.Variable, error) {
	if err := p.enter(ctx, "VariableList"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.VariablesErr != nil {
		return nil, p.VariablesErr
	}
	return append([]debugger.Variable(nil), p.Variables...), nil
}

// SetStack replaces the canned call stack and selected frame.
func (p *Proxy) SetStack(frames []debugger.StackFrame, selected debugger.StackFrame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Stack = frames
	p.Selected = selected
}

// enter counts the call and waits on Gate.
func (p *Proxy) enter(ctx context.Context, method string) error {
	p.mu.Lock()
	p.calls[method]++
	gate := p.Gate
	p.mu.Unlock()

	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
