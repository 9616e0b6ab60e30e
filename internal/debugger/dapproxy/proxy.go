// Package dapproxy implements debugger.Proxy on top of a Debug Adapter
// Protocol connection.
//
// Adapter events are translated into session, breakpoint, target, variable
// and frame events and emitted on the loop. Queries (call stack, scopes,
// variables) run on worker goroutines and are safe for concurrent use.
package dapproxy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/go-dap"

	"github.com/dshills/dbgview/internal/debugger"
	"github.com/dshills/dbgview/internal/logging"
	"github.com/dshills/dbgview/internal/loop"
)

var (
	// ErrNotStopped is returned by queries while the target runs.
	ErrNotStopped = errors.New("target is not stopped")
	// ErrUnknownVariable is returned for a variable this proxy did not produce.
	ErrUnknownVariable = errors.New("unknown variable")
	// ErrNoBreakpoint is returned when changing a breakpoint that does not exist.
	ErrNoBreakpoint = errors.New("no breakpoint at location")
)

// DefaultTimeout bounds adapter requests when Options.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Options configures a Proxy.
type Options struct {
	Loop    *loop.Loop
	Logger  *logging.Logger
	Timeout time.Duration

	// PushVariables diffs the top-level variables after every stop and frame
	// change and emits entered-scope, left-scope and updated events.
	PushVariables bool
}

// Proxy is a debugger.Proxy backed by a debug adapter.
type Proxy struct {
	*debugger.Hub

	loop    *loop.Loop
	log     *logging.Logger
	timeout time.Duration
	push    bool
	client  *Client

	ctx    context.Context
	cancel context.CancelFunc

	initialized chan struct{}
	initOnce    sync.Once

	// Loop-owned.
	gen         uint64
	running     bool
	ended       bool
	terminating bool
	pushed      []debugger.Variable

	mu          sync.Mutex
	caps        dap.Capabilities
	connected   bool
	threadID    int
	frames      []dap.StackFrame
	selected    int
	refs        map[string]int
	breakpoints map[debugger.Location]*debugger.Breakpoint
	byID        map[int]debugger.Location
}

var (
	_ debugger.Proxy          = (*Proxy)(nil)
	_ debugger.VariableLister = (*Proxy)(nil)
)

// New creates a proxy speaking DAP over t.
func New(t Transport, opts Options) *Proxy {
	if opts.Logger == nil {
		opts.Logger = logging.Null()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Proxy{
		Hub:         debugger.NewHub(),
		loop:        opts.Loop,
		log:         opts.Logger.WithComponent("dapproxy"),
		timeout:     opts.Timeout,
		push:        opts.PushVariables,
		ctx:         ctx,
		cancel:      cancel,
		initialized: make(chan struct{}),
		refs:        make(map[string]int),
		breakpoints: make(map[debugger.Location]*debugger.Breakpoint),
		byID:        make(map[int]debugger.Location),
	}
	p.client = NewClient(t, p.receiveEvent, opts.Logger)
	go func() {
		<-p.client.Done()
		_ = p.loop.Post(p.onDisconnected)
	}()
	return p
}

// receiveEvent runs on the client's receive goroutine.
func (p *Proxy) receiveEvent(ev dap.EventMessage) {
	if _, ok := ev.(*dap.InitializedEvent); ok {
		p.initOnce.Do(func() { close(p.initialized) })
		return
	}
	_ = p.loop.Post(func() { p.handleEvent(ev) })
}

// Capabilities returns what the adapter reported on initialize.
func (p *Proxy) Capabilities() dap.Capabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.caps
}

// Launch starts preset's adapter session for lc. It blocks until the
// adapter accepted the configuration and must not run on the loop.
func (p *Proxy) Launch(ctx context.Context, preset Preset, lc LaunchConfig) error {
	args, err := preset.LaunchArguments(lc)
	if err != nil {
		return fmt.Errorf("encode launch arguments: %w", err)
	}
	return p.start(ctx, preset, &dap.LaunchRequest{
		Request:   dap.Request{Command: "launch"},
		Arguments: args,
	})
}

// Attach attaches preset's adapter to a running process.
func (p *Proxy) Attach(ctx context.Context, preset Preset, pid int) error {
	args, err := preset.AttachArguments(pid)
	if err != nil {
		return fmt.Errorf("encode attach arguments: %w", err)
	}
	return p.start(ctx, preset, &dap.AttachRequest{
		Request:   dap.Request{Command: "attach"},
		Arguments: args,
	})
}

// start runs the initialize, launch/attach, configure handshake. The launch
// response may only arrive after configurationDone, so it is awaited last.
func (p *Proxy) start(ctx context.Context, preset Preset, launch dap.RequestMessage) error {
	initResp, err := call[*dap.InitializeResponse](ctx, p.client, &dap.InitializeRequest{
		Request: dap.Request{Command: "initialize"},
		Arguments: dap.InitializeRequestArguments{
			ClientID:             "dbgview",
			ClientName:           "dbgview",
			AdapterID:            preset.AdapterID,
			Locale:               "en-US",
			LinesStartAt1:        true,
			ColumnsStartAt1:      true,
			PathFormat:           "path",
			SupportsVariableType: true,
		},
	})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	p.mu.Lock()
	p.caps = initResp.Body
	p.mu.Unlock()

	launchDone := make(chan error, 1)
	go func() {
		_, err := p.client.Call(ctx, launch)
		launchDone <- err
	}()

	select {
	case <-p.initialized:
	case err := <-launchDone:
		if err != nil {
			return fmt.Errorf("%s: %w", launch.GetRequest().Command, err)
		}
		select {
		case <-p.initialized:
		case <-ctx.Done():
			return ctx.Err()
		}
		launchDone <- nil
	case <-ctx.Done():
		return ctx.Err()
	}

	_ = p.loop.Post(func() {
		p.ended = false
		p.EmitSession(debugger.SessionEvent{Type: debugger.SessionLaunched})
	})

	p.mu.Lock()
	p.connected = true
	files := p.filesLocked()
	syncs := make([]fileSync, 0, len(files))
	for _, f := range files {
		syncs = append(syncs, p.fileRequestLocked(f))
	}
	fns := p.functionRequestLocked()
	supportsDone := p.caps.SupportsConfigurationDoneRequest
	p.mu.Unlock()

	for _, fs := range syncs {
		fs := fs
		bps, err := p.sendBreakpoints(ctx, fs)
		if err != nil {
			p.log.Warn("set breakpoints in %s: %v", fs.path, err)
			continue
		}
		_ = p.loop.Post(func() { p.applyVerified(fs, bps) })
	}
	if len(fns.locs) > 0 {
		if _, err := p.sendBreakpoints(ctx, fns); err != nil {
			p.log.Warn("set function breakpoints: %v", err)
		}
	}

	if supportsDone {
		if _, err := p.request(ctx, &dap.ConfigurationDoneRequest{
			Request: dap.Request{Command: "configurationDone"},
		}); err != nil {
			return fmt.Errorf("configurationDone: %w", err)
		}
	}

	select {
	case err := <-launchDone:
		if err != nil {
			return fmt.Errorf("%s: %w", launch.GetRequest().Command, err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	p.log.Info("%s session started", preset.Name)
	return nil
}

// Terminate ends the debuggee and closes the connection.
func (p *Proxy) Terminate(ctx context.Context) error {
	_ = p.loop.Post(func() { p.terminating = true })
	_, err := p.request(ctx, &dap.DisconnectRequest{
		Request:   dap.Request{Command: "disconnect"},
		Arguments: &dap.DisconnectArguments{TerminateDebuggee: true},
	})
	if cerr := p.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close drops the connection without asking the adapter to stop.
func (p *Proxy) Close() error {
	p.cancel()
	return p.client.Close()
}

// request sends req with the configured timeout.
func (p *Proxy) request(ctx context.Context, req dap.RequestMessage) (dap.ResponseMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.client.Call(ctx, req)
}

func (p *Proxy) thread() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.threadID
}

// Continue resumes the stopped thread.
func (p *Proxy) Continue(ctx context.Context) error {
	_, err := p.request(ctx, &dap.ContinueRequest{
		Request:   dap.Request{Command: "continue"},
		Arguments: dap.ContinueArguments{ThreadId: p.thread()},
	})
	return p.resumed(err)
}

// Next steps over.
func (p *Proxy) Next(ctx context.Context) error {
	_, err := p.request(ctx, &dap.NextRequest{
		Request:   dap.Request{Command: "next"},
		Arguments: dap.NextArguments{ThreadId: p.thread()},
	})
	return p.resumed(err)
}

// StepIn steps into the call on the current line.
func (p *Proxy) StepIn(ctx context.Context) error {
	_, err := p.request(ctx, &dap.StepInRequest{
		Request:   dap.Request{Command: "stepIn"},
		Arguments: dap.StepInArguments{ThreadId: p.thread()},
	})
	return p.resumed(err)
}

// StepOut runs until the current function returns.
func (p *Proxy) StepOut(ctx context.Context) error {
	_, err := p.request(ctx, &dap.StepOutRequest{
		Request:   dap.Request{Command: "stepOut"},
		Arguments: dap.StepOutArguments{ThreadId: p.thread()},
	})
	return p.resumed(err)
}

// Pause interrupts the running thread.
func (p *Proxy) Pause(ctx context.Context) error {
	_, err := p.request(ctx, &dap.PauseRequest{
		Request:   dap.Request{Command: "pause"},
		Arguments: dap.PauseArguments{ThreadId: p.thread()},
	})
	return err
}

// resumed reports a resume locally; adapters need not send continued for
// client-initiated resumes.
func (p *Proxy) resumed(err error) error {
	if err != nil {
		return err
	}
	_ = p.loop.Post(p.onContinued)
	return nil
}

func (p *Proxy) handleEvent(ev dap.EventMessage) {
	switch e := ev.(type) {
	case *dap.StoppedEvent:
		p.onStopped(e.Body)
	case *dap.ContinuedEvent:
		p.onContinued()
	case *dap.ExitedEvent:
		p.log.Info("debuggee exited with code %d", e.Body.ExitCode)
	case *dap.TerminatedEvent:
		p.onTerminated()
	case *dap.OutputEvent:
		if e.Body.Category == "telemetry" {
			return
		}
		p.EmitTarget(debugger.TargetEvent{Type: debugger.TargetOutput, Message: e.Body.Output})
	case *dap.BreakpointEvent:
		p.onBreakpointChanged(e.Body)
	default:
		p.log.Debug("ignoring %s event", ev.GetEvent().Event)
	}
}

func (p *Proxy) onStopped(body dap.StoppedEventBody) {
	p.mu.Lock()
	p.threadID = body.ThreadId
	p.frames = nil
	p.selected = 0
	p.refs = make(map[string]int)
	p.mu.Unlock()

	p.gen++
	gen := p.gen
	p.running = false
	reason := stopReason(body.Reason)

	loop.Await(p.loop, p.ctx, p.fetchFrames, func(frames []dap.StackFrame, err error) {
		if gen != p.gen {
			return
		}
		if err != nil {
			p.log.Error("stack trace after stop: %v", err)
			return
		}
		level, line, ok := executionLine(frames)
		if !ok {
			p.log.Warn("thread %d stopped outside known source", body.ThreadId)
			return
		}
		p.mu.Lock()
		p.selected = level
		p.mu.Unlock()
		p.EmitSession(debugger.SessionEvent{
			Type:          debugger.SessionSuspended,
			Reason:        reason,
			ExecutionLine: &line,
		})
		if p.push {
			p.pushVariables(gen)
		}
	})
}

func (p *Proxy) onContinued() {
	if p.running || p.ended {
		return
	}
	p.gen++
	p.running = true
	p.mu.Lock()
	p.frames = nil
	p.mu.Unlock()
	p.EmitSession(debugger.SessionEvent{Type: debugger.SessionResumed})
}

func (p *Proxy) onTerminated() {
	if p.ended {
		return
	}
	p.ended = true
	p.gen++
	p.pushed = nil
	reason := debugger.ReasonNormally
	if p.terminating {
		reason = debugger.ReasonInterrupt
	}
	p.EmitSession(debugger.SessionEvent{Type: debugger.SessionWillTerminate})
	p.EmitSession(debugger.SessionEvent{Type: debugger.SessionTerminated, Reason: reason})
}

func (p *Proxy) onDisconnected() {
	if err := p.client.Err(); err != nil && !errors.Is(err, ErrClientClosed) {
		p.log.Warn("adapter connection lost: %v", err)
		p.terminating = true
	}
	p.onTerminated()
}

// stopReason maps DAP stop reasons onto suspension reasons.
func stopReason(reason string) string {
	switch reason {
	case "breakpoint", "function breakpoint", "data breakpoint", "instruction breakpoint":
		return debugger.ReasonBreakpoint
	case "step", "entry", "goto":
		return debugger.ReasonStep
	default:
		return reason
	}
}

// executionLine picks the innermost frame that has a source file.
func executionLine(frames []dap.StackFrame) (int, debugger.ExecutionLine, bool) {
	for i, f := range frames {
		if f.Source != nil && f.Source.Path != "" && f.Line > 0 {
			return i, debugger.ExecutionLine{FilePath: f.Source.Path, BufferRow: f.Line - 1}, true
		}
	}
	return 0, debugger.ExecutionLine{}, false
}

func (p *Proxy) fetchFrames(ctx context.Context) ([]dap.StackFrame, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	tid := p.thread()
	resp, err := call[*dap.StackTraceResponse](ctx, p.client, &dap.StackTraceRequest{
		Request:   dap.Request{Command: "stackTrace"},
		Arguments: dap.StackTraceArguments{ThreadId: tid},
	})
	if err != nil {
		return nil, err
	}
	frames := resp.Body.StackFrames
	p.mu.Lock()
	if p.threadID == tid {
		p.frames = frames
	}
	p.mu.Unlock()
	return frames, nil
}

func (p *Proxy) stackFrames(ctx context.Context) ([]dap.StackFrame, error) {
	p.mu.Lock()
	frames := p.frames
	p.mu.Unlock()
	if frames != nil {
		return frames, nil
	}
	return p.fetchFrames(ctx)
}

// CallStack returns the frames of the stopped thread, innermost first.
func (p *Proxy) CallStack(ctx context.Context) ([]debugger.StackFrame, error) {
	frames, err := p.stackFrames(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]debugger.StackFrame, len(frames))
	for i, f := range frames {
		out[i] = convertFrame(i, f)
	}
	return out, nil
}

// SelectedFrame returns the selected frame.
func (p *Proxy) SelectedFrame(ctx context.Context) (debugger.StackFrame, error) {
	frames, err := p.stackFrames(ctx)
	if err != nil {
		return debugger.StackFrame{}, err
	}
	p.mu.Lock()
	level := p.selected
	p.mu.Unlock()
	if level >= len(frames) {
		return debugger.StackFrame{}, ErrNotStopped
	}
	return convertFrame(level, frames[level]), nil
}

// SetSelectedFrame selects the frame at level and emits a frame change on
// the loop.
func (p *Proxy) SetSelectedFrame(level int) {
	p.mu.Lock()
	p.selected = level
	p.mu.Unlock()
	_ = p.loop.Post(func() {
		p.EmitFrameChange(debugger.FrameChangeEvent{Level: level})
		if p.push && !p.running {
			p.pushVariables(p.gen)
		}
	})
}

func convertFrame(level int, f dap.StackFrame) debugger.StackFrame {
	sf := debugger.StackFrame{
		Level:    level,
		Address:  f.InstructionPointerReference,
		Function: f.Name,
	}
	if f.Source != nil && f.Source.Path != "" {
		sf.FilePath = f.Source.Path
		sf.BufferRow = max(f.Line-1, 0)
	}
	return sf
}

func (p *Proxy) selectedFrameID(ctx context.Context) (int, int, error) {
	frames, err := p.stackFrames(ctx)
	if err != nil {
		return 0, 0, err
	}
	p.mu.Lock()
	level := p.selected
	p.mu.Unlock()
	if level >= len(frames) {
		return 0, 0, ErrNotStopped
	}
	return level, frames[level].Id, nil
}

// VariableList returns one node per scope of the selected frame. Scope nodes
// have no value.
func (p *Proxy) VariableList(ctx context.Context) ([]debugger.Variable, error) {
	level, frameID, err := p.selectedFrameID(ctx)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	resp, err := call[*dap.ScopesResponse](ctx, p.client, &dap.ScopesRequest{
		Request:   dap.Request{Command: "scopes"},
		Arguments: dap.ScopesArguments{FrameId: frameID},
	})
	if err != nil {
		return nil, err
	}
	out := make([]debugger.Variable, 0, len(resp.Body.Scopes))
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range resp.Body.Scopes {
		id := fmt.Sprintf("%d/%s", level, s.Name)
		p.refs[id] = s.VariablesReference
		out = append(out, debugger.Variable{
			ID:          id,
			Name:        s.Name,
			HasChildren: s.VariablesReference > 0,
		})
	}
	return out, nil
}

// VariableChildren returns the members of v.
func (p *Proxy) VariableChildren(ctx context.Context, v debugger.Variable) ([]debugger.Variable, error) {
	p.mu.Lock()
	ref, ok := p.refs[v.ID]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownVariable, v.ID)
	}
	if ref == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	resp, err := call[*dap.VariablesResponse](ctx, p.client, &dap.VariablesRequest{
		Request:   dap.Request{Command: "variables"},
		Arguments: dap.VariablesArguments{VariablesReference: ref},
	})
	if err != nil {
		return nil, err
	}
	out := make([]debugger.Variable, 0, len(resp.Body.Variables))
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, dv := range resp.Body.Variables {
		id := v.ID + "/" + dv.Name
		p.refs[id] = dv.VariablesReference
		out = append(out, convertVariable(id, dv))
	}
	return out, nil
}

func convertVariable(id string, dv dap.Variable) debugger.Variable {
	v := debugger.Variable{
		ID:          id,
		Name:        dv.Name,
		Type:        dv.Type,
		HasChildren: dv.VariablesReference > 0,
		Value:       debugger.Unknown(),
	}
	if dv.Value != "" {
		v.Value = debugger.Known(dv.Value)
	}
	return v
}

// pushVariables fetches the top-level variables and emits the difference
// to the last pushed set.
func (p *Proxy) pushVariables(gen uint64) {
	loop.Await(p.loop, p.ctx, p.topLevelVariables, func(vars []debugger.Variable, err error) {
		if gen != p.gen {
			return
		}
		if err != nil {
			p.log.Warn("fetch variables: %v", err)
			return
		}
		p.emitVariableDiff(vars)
	})
}

// topLevelVariables flattens the cheap scopes of the selected frame.
func (p *Proxy) topLevelVariables(ctx context.Context) ([]debugger.Variable, error) {
	scopes, err := p.VariableList(ctx)
	if err != nil {
		return nil, err
	}
	var out []debugger.Variable
	for _, s := range scopes {
		children, err := p.VariableChildren(ctx, s)
		if err != nil {
			return nil, err
		}
		out = append(out, children...)
	}
	return out, nil
}

// emitVariableDiff reports how the top-level variables changed since the
// last stop. Variable references do not survive a resume, so a variable with
// children is always replaced rather than updated.
func (p *Proxy) emitVariableDiff(vars []debugger.Variable) {
	next := make(map[string]debugger.Variable, len(vars))
	for _, v := range vars {
		next[v.ID] = v
	}
	prev := make(map[string]debugger.Variable, len(p.pushed))
	for _, v := range p.pushed {
		prev[v.ID] = v
		if _, ok := next[v.ID]; !ok {
			p.EmitVariable(debugger.VariableEvent{Type: debugger.VariableLeftScope, Variable: v})
		}
	}
	for _, v := range vars {
		old, ok := prev[v.ID]
		switch {
		case !ok:
			p.EmitVariable(debugger.VariableEvent{Type: debugger.VariableEnteredScope, Variable: v})
		case old.HasChildren || v.HasChildren:
			p.EmitVariable(debugger.VariableEvent{Type: debugger.VariableLeftScope, Variable: old})
			p.EmitVariable(debugger.VariableEvent{Type: debugger.VariableEnteredScope, Variable: v})
		case old.Value != v.Value || old.Type != v.Type:
			p.EmitVariable(debugger.VariableEvent{Type: debugger.VariableUpdated, Variable: v})
		}
	}
	p.pushed = vars
}

// FindBreakpoint returns the breakpoint at loc.
func (p *Proxy) FindBreakpoint(loc debugger.Location) (*debugger.Breakpoint, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	bp, ok := p.breakpoints[loc]
	return bp, ok
}

// Breakpoints returns every breakpoint ordered by location.
func (p *Proxy) Breakpoints() []*debugger.Breakpoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*debugger.Breakpoint, 0, len(p.breakpoints))
	for _, bp := range p.breakpoints {
		out = append(out, bp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Location.String() < out[j].Location.String() })
	return out
}

// AddBreakpoint registers bp, emits inserted and sends it to the adapter.
// Adding an existing location replaces its attributes.
func (p *Proxy) AddBreakpoint(bp *debugger.Breakpoint) {
	bp = bp.Clone()
	p.mu.Lock()
	p.breakpoints[bp.Location] = bp
	p.mu.Unlock()
	p.EmitBreakpoint(debugger.BreakpointEvent{Type: debugger.BreakpointInserted, Breakpoint: bp})
	p.syncLocation(bp.Location)
}

// RemoveBreakpoint removes bp, emits removed and updates the adapter.
func (p *Proxy) RemoveBreakpoint(bp *debugger.Breakpoint) bool {
	p.mu.Lock()
	stored, ok := p.breakpoints[bp.Location]
	if ok {
		delete(p.breakpoints, bp.Location)
		for id, loc := range p.byID {
			if loc == bp.Location {
				delete(p.byID, id)
			}
		}
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	p.EmitBreakpoint(debugger.BreakpointEvent{Type: debugger.BreakpointRemoved, Breakpoint: stored})
	p.syncLocation(bp.Location)
	return true
}

// SetBreakpointEnabled enables or disables the breakpoint at loc.
func (p *Proxy) SetBreakpointEnabled(loc debugger.Location, enabled bool) error {
	typ := debugger.BreakpointDisabled
	if enabled {
		typ = debugger.BreakpointEnabled
	}
	return p.updateBreakpoint(loc, typ, func(bp *debugger.Breakpoint) bool {
		if bp.Enabled == enabled {
			return false
		}
		bp.Enabled = enabled
		return true
	})
}

// SetBreakpointCondition sets or clears the condition at loc.
func (p *Proxy) SetBreakpointCondition(loc debugger.Location, condition string) error {
	typ := debugger.BreakpointConditionRemoved
	if condition != "" {
		typ = debugger.BreakpointConditionAdded
	}
	return p.updateBreakpoint(loc, typ, func(bp *debugger.Breakpoint) bool {
		if bp.Condition == condition {
			return false
		}
		bp.Condition = condition
		return true
	})
}

func (p *Proxy) updateBreakpoint(loc debugger.Location, typ debugger.BreakpointEventType, apply func(*debugger.Breakpoint) bool) error {
	p.mu.Lock()
	bp, ok := p.breakpoints[loc]
	changed := ok && apply(bp)
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w %s", ErrNoBreakpoint, loc)
	}
	if !changed {
		return nil
	}
	p.EmitBreakpoint(debugger.BreakpointEvent{Type: typ, Breakpoint: bp})
	p.syncLocation(loc)
	return nil
}

// fileSync is a snapshot of the breakpoints sent in one request, in request
// order.
type fileSync struct {
	path string
	locs []debugger.Location
	req  dap.RequestMessage
}

// syncLocation resends the breakpoints sharing loc's file (or every
// function breakpoint) once connected.
func (p *Proxy) syncLocation(loc debugger.Location) {
	p.mu.Lock()
	if !p.connected {
		p.mu.Unlock()
		return
	}
	var fs fileSync
	if loc.IsLine() {
		fs = p.fileRequestLocked(loc.FilePath)
	} else {
		fs = p.functionRequestLocked()
	}
	p.mu.Unlock()

	loop.Await(p.loop, p.ctx, func(ctx context.Context) ([]dap.Breakpoint, error) {
		return p.sendBreakpoints(ctx, fs)
	}, func(bps []dap.Breakpoint, err error) {
		if err != nil {
			p.log.Warn("set breakpoints in %s: %v", fs.path, err)
			return
		}
		p.applyVerified(fs, bps)
	})
}

func (p *Proxy) filesLocked() []string {
	seen := make(map[string]bool)
	var files []string
	for loc := range p.breakpoints {
		if loc.IsLine() && !seen[loc.FilePath] {
			seen[loc.FilePath] = true
			files = append(files, loc.FilePath)
		}
	}
	sort.Strings(files)
	return files
}

func (p *Proxy) fileRequestLocked(path string) fileSync {
	var bps []*debugger.Breakpoint
	for loc, bp := range p.breakpoints {
		if loc.IsLine() && loc.FilePath == path && bp.Enabled {
			bps = append(bps, bp)
		}
	}
	sort.Slice(bps, func(i, j int) bool { return bps[i].Location.BufferRow < bps[j].Location.BufferRow })

	fs := fileSync{path: path}
	args := dap.SetBreakpointsArguments{
		Source:      dap.Source{Path: path},
		Breakpoints: make([]dap.SourceBreakpoint, 0, len(bps)),
	}
	for _, bp := range bps {
		fs.locs = append(fs.locs, bp.Location)
		args.Breakpoints = append(args.Breakpoints, dap.SourceBreakpoint{
			Line:      bp.Location.BufferRow + 1,
			Condition: bp.Condition,
		})
	}
	fs.req = &dap.SetBreakpointsRequest{
		Request:   dap.Request{Command: "setBreakpoints"},
		Arguments: args,
	}
	return fs
}

func (p *Proxy) functionRequestLocked() fileSync {
	var bps []*debugger.Breakpoint
	for loc, bp := range p.breakpoints {
		if !loc.IsLine() && bp.Enabled {
			bps = append(bps, bp)
		}
	}
	sort.Slice(bps, func(i, j int) bool { return bps[i].Location.Function < bps[j].Location.Function })

	fs := fileSync{path: "<functions>"}
	args := dap.SetFunctionBreakpointsArguments{Breakpoints: make([]dap.FunctionBreakpoint, 0, len(bps))}
	for _, bp := range bps {
		fs.locs = append(fs.locs, bp.Location)
		args.Breakpoints = append(args.Breakpoints, dap.FunctionBreakpoint{
			Name:      bp.Location.Function,
			Condition: bp.Condition,
		})
	}
	fs.req = &dap.SetFunctionBreakpointsRequest{
		Request:   dap.Request{Command: "setFunctionBreakpoints"},
		Arguments: args,
	}
	return fs
}

func (p *Proxy) sendBreakpoints(ctx context.Context, fs fileSync) ([]dap.Breakpoint, error) {
	resp, err := p.request(ctx, fs.req)
	if err != nil {
		return nil, err
	}
	switch r := resp.(type) {
	case *dap.SetBreakpointsResponse:
		return r.Body.Breakpoints, nil
	case *dap.SetFunctionBreakpointsResponse:
		return r.Body.Breakpoints, nil
	default:
		return nil, fmt.Errorf("unexpected response %T", resp)
	}
}

// applyVerified records adapter IDs and reports line adjustments. Runs on
// the loop.
func (p *Proxy) applyVerified(fs fileSync, bps []dap.Breakpoint) {
	for i, loc := range fs.locs {
		if i >= len(bps) {
			break
		}
		b := bps[i]
		p.mu.Lock()
		bp, ok := p.breakpoints[loc]
		if ok && b.Id > 0 {
			p.byID[b.Id] = loc
		}
		p.mu.Unlock()
		if ok && loc.IsLine() && b.Line > 0 {
			p.moveTo(bp, b.Line-1)
		}
	}
}

func (p *Proxy) onBreakpointChanged(body dap.BreakpointEventBody) {
	p.mu.Lock()
	loc, ok := p.byID[body.Breakpoint.Id]
	var bp *debugger.Breakpoint
	if ok {
		bp, ok = p.breakpoints[loc]
	}
	p.mu.Unlock()
	if !ok {
		p.log.Debug("%s event for unknown breakpoint %d", body.Reason, body.Breakpoint.Id)
		return
	}

	switch body.Reason {
	case "changed":
		if loc.IsLine() && body.Breakpoint.Line > 0 {
			p.moveTo(bp, body.Breakpoint.Line-1)
		}
	case "removed":
		p.RemoveBreakpoint(bp)
	}
}

// moveTo emits moved when the adapter placed bp on another row.
func (p *Proxy) moveTo(bp *debugger.Breakpoint, row int) {
	var active *int
	if row != bp.Location.BufferRow {
		active = &row
	}
	p.mu.Lock()
	same := (active == nil && bp.ActiveBufferRow == nil) ||
		(active != nil && bp.ActiveBufferRow != nil && *active == *bp.ActiveBufferRow)
	if !same {
		bp.ActiveBufferRow = active
	}
	p.mu.Unlock()
	if same {
		return
	}
	p.EmitBreakpoint(debugger.BreakpointEvent{Type: debugger.BreakpointMoved, Breakpoint: bp, BufferRow: &row})
}
