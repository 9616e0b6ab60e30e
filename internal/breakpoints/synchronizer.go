// Package breakpoints keeps the breakpoint tree and the breakpoint markers in
// step with the debugger's breakpoint events.
package breakpoints

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dshills/dbgview/internal/debugger"
	"github.com/dshills/dbgview/internal/editor"
	"github.com/dshills/dbgview/internal/event"
	"github.com/dshills/dbgview/internal/logging"
	"github.com/dshills/dbgview/internal/loop"
	"github.com/dshills/dbgview/internal/notify"
	"github.com/dshills/dbgview/internal/project"
)

// MissingMarkerMessage is the warning for removing a breakpoint without a
// marker.
const MissingMarkerMessage = "Tried to remove non-existent marker"

// Classes are the decoration classes for breakpoint markers.
type Classes struct {
	Enabled     string
	Disabled    string
	Conditional string
}

// DefaultClasses returns the built-in classes.
func DefaultClasses() Classes {
	return Classes{
		Enabled:     editor.ClassBreakpoint,
		Disabled:    editor.ClassBreakpointDisabled,
		Conditional: editor.ClassBreakpointConditional,
	}
}

func (c Classes) forBreakpoint(bp *debugger.Breakpoint) string {
	switch {
	case !bp.Enabled:
		return c.Disabled
	case bp.Condition != "":
		return c.Conditional
	default:
		return c.Enabled
	}
}

// BreakpointMarker joins a breakpoint to its marker in an open buffer.
type BreakpointMarker struct {
	Breakpoint *debugger.Breakpoint
	Marker     editor.Marker
	buffer     editor.Buffer
}

// Options configures a Synchronizer.
type Options struct {
	Loop      *loop.Loop
	Workspace editor.Workspace
	Projects  project.Relativizer
	Notifier  notify.Notifier
	Logger    *logging.Logger
	Classes   Classes
}

// Synchronizer maintains the breakpoint tree. All methods run on the loop.
type Synchronizer struct {
	loop     *loop.Loop
	ws       editor.Workspace
	projects project.Relativizer
	notes    notify.Notifier
	log      *logging.Logger
	classes  Classes

	ctx    context.Context
	cancel context.CancelFunc
	subs   event.Group
	proxy  debugger.Proxy

	tree    *Tree
	markers map[debugger.Location]*BreakpointMarker
	// pending holds the token of the buffer open in flight per location.
	pending map[debugger.Location]uint64
	token   uint64

	changed *event.Emitter[*Tree]
}

// New creates a synchronizer.
func New(opts Options) *Synchronizer {
	if opts.Logger == nil {
		opts.Logger = logging.Null()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Func{}
	}
	if opts.Projects == nil {
		opts.Projects = project.NewRoots()
	}
	if opts.Classes == (Classes{}) {
		opts.Classes = DefaultClasses()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Synchronizer{
		loop:     opts.Loop,
		ws:       opts.Workspace,
		projects: opts.Projects,
		notes:    opts.Notifier,
		log:      opts.Logger.WithComponent("breakpoints"),
		classes:  opts.Classes,
		ctx:      ctx,
		cancel:   cancel,
		tree:     NewTree(),
		markers:  make(map[debugger.Location]*BreakpointMarker),
		pending:  make(map[debugger.Location]uint64),
		changed:  event.NewEmitter[*Tree]("breakpoints.changed"),
	}
}

// Attach subscribes to p's breakpoint events.
func (s *Synchronizer) Attach(p debugger.Proxy) {
	s.proxy = p
	s.subs.Add(p.OnBreakpointEvent(notify.Reporting(s.notes, s.HandleBreakpointEvent)))
}

// OnChange registers fn to run after every tree change.
func (s *Synchronizer) OnChange(fn func(*Tree)) event.Subscription {
	return s.changed.SubscribeFunc(fn)
}

// Dispose unsubscribes, cancels pending opens and destroys every marker.
// The tree is kept.
func (s *Synchronizer) Dispose() {
	s.subs.Dispose()
	s.cancel()
	for loc, bm := range s.markers {
		bm.Marker.Destroy()
		delete(s.markers, loc)
	}
	clear(s.pending)
}

// Tree returns the breakpoint tree. Callers must not modify it.
func (s *Synchronizer) Tree() *Tree {
	return s.tree
}

// Marker returns the marker joined to the breakpoint at loc.
func (s *Synchronizer) Marker(loc debugger.Location) (*BreakpointMarker, bool) {
	bm, ok := s.markers[loc]
	return bm, ok
}

// MarkerCount returns the number of breakpoint markers.
func (s *Synchronizer) MarkerCount() int {
	return len(s.markers)
}

// SetClasses changes the decoration classes and redecorates existing markers.
func (s *Synchronizer) SetClasses(c Classes) {
	if c == s.classes {
		return
	}
	s.classes = c
	for _, bm := range s.markers {
		s.redecorate(bm)
	}
	s.changed.Emit(s.tree)
}

// HandleBreakpointEvent applies one breakpoint event.
func (s *Synchronizer) HandleBreakpointEvent(ev debugger.BreakpointEvent) error {
	op := "breakpoint." + string(ev.Type)
	if ev.Breakpoint == nil {
		return debugger.Malformed(op, "breakpoint is missing")
	}
	if !ev.Breakpoint.Location.IsLine() {
		return debugger.Unsupported(op, ev.Breakpoint.Location)
	}

	var err error
	switch ev.Type {
	case debugger.BreakpointInserted:
		err = s.insert(ev.Breakpoint.Clone())
	case debugger.BreakpointRemoved:
		err = s.remove(ev.Breakpoint)
	case debugger.BreakpointEnabled, debugger.BreakpointDisabled:
		err = s.update(op, ev.Breakpoint.Location, func(bp *debugger.Breakpoint) {
			bp.Enabled = ev.Type == debugger.BreakpointEnabled
		})
	case debugger.BreakpointConditionAdded:
		err = s.update(op, ev.Breakpoint.Location, func(bp *debugger.Breakpoint) {
			bp.Condition = ev.Breakpoint.Condition
		})
	case debugger.BreakpointConditionRemoved:
		err = s.update(op, ev.Breakpoint.Location, func(bp *debugger.Breakpoint) {
			bp.Condition = ""
		})
	case debugger.BreakpointMoved:
		if ev.BufferRow == nil || *ev.BufferRow < 0 {
			return debugger.Malformed(op, "bufferRow is missing or negative")
		}
		err = s.move(op, ev.Breakpoint.Location, *ev.BufferRow)
	default:
		return debugger.Malformed("breakpoint", fmt.Sprintf("unknown event type %q", ev.Type))
	}
	if err != nil {
		return err
	}
	s.changed.Emit(s.tree)
	return nil
}

// keys resolves the project and file keys for an absolute path.
func (s *Synchronizer) keys(path string) (ProjectKey, string, FileKey) {
	root, rel, in := s.projects.Relativize(path)
	pk := ProjectKey{Root: root, External: !in}
	name := project.Name(root)
	if !in {
		name = "External"
		rel = filepath.Clean(path)
	}
	return pk, name, FileKey{Project: pk, Path: rel}
}

func (s *Synchronizer) insert(bp *debugger.Breakpoint) error {
	loc := bp.Location
	pk, name, fk := s.keys(loc.FilePath)

	if row := s.tree.Find(fk, loc); row != nil {
		// Repeated insert: refresh attributes, keep the marker.
		row.Breakpoint.Enabled = bp.Enabled
		row.Breakpoint.Condition = bp.Condition
		row.Breakpoint.ActiveBufferRow = bp.ActiveBufferRow
		s.tree.Resort(fk)
		if bm, ok := s.markers[loc]; ok {
			s.redecorate(bm)
		}
		return nil
	}

	row := &Row{Breakpoint: bp}
	s.tree.Insert(pk, name, fk, loc.FilePath, row)
	s.log.Debug("inserted %s", loc)

	s.token++
	token := s.token
	s.pending[loc] = token

	loop.Await(s.loop, s.ctx, func(ctx context.Context) (editor.Buffer, error) {
		return s.ws.OpenBuffer(ctx, loc.FilePath)
	}, func(buf editor.Buffer, err error) {
		if cerr := s.attachMarker(fk, loc, token, buf, err); cerr != nil {
			s.notes.ReportError(cerr)
		}
	})
	return nil
}

// attachMarker is the continuation of an insert's buffer open.
func (s *Synchronizer) attachMarker(fk FileKey, loc debugger.Location, token uint64, buf editor.Buffer, openErr error) error {
	const op = "breakpoint.inserted"

	if s.ctx.Err() != nil {
		return nil
	}
	row := s.tree.Find(fk, loc)
	if row == nil {
		return debugger.Desync(op, "breakpoint at %s was removed before its buffer opened", loc)
	}
	if s.pending[loc] != token {
		s.log.Debug("discarding superseded open for %s", loc)
		return nil
	}
	delete(s.pending, loc)

	if openErr != nil {
		return fmt.Errorf("%s: open %s: %w", op, loc.FilePath, openErr)
	}

	row.Text, row.TextLoaded = buf.LineText(row.Breakpoint.EffectiveRow())

	if old, ok := s.markers[loc]; ok {
		old.Marker.Destroy()
	}
	bm := &BreakpointMarker{Breakpoint: row.Breakpoint, buffer: buf}
	s.markers[loc] = bm
	s.redecorate(bm)
	s.changed.Emit(s.tree)
	return nil
}

func (s *Synchronizer) remove(bp *debugger.Breakpoint) error {
	loc := bp.Location
	_, _, fk := s.keys(loc.FilePath)

	// Rows are matched by location only. Another breakpoint moved onto the
	// same line must survive a stale or repeated removal.
	row := s.tree.Find(fk, loc)

	_, wasPending := s.pending[loc]
	delete(s.pending, loc)

	if bm, ok := s.markers[loc]; ok {
		bm.Marker.Destroy()
		delete(s.markers, loc)
	} else if !wasPending {
		s.notes.ReportWarning(MissingMarkerMessage)
	}

	if row == nil {
		return debugger.Desync("breakpoint.removed", "no row for breakpoint at %s", loc)
	}
	if _, err := s.tree.Remove(fk, row.Line(), loc); err != nil {
		return err
	}
	s.log.Debug("removed %s", loc)
	return nil
}

func (s *Synchronizer) update(op string, loc debugger.Location, apply func(*debugger.Breakpoint)) error {
	_, _, fk := s.keys(loc.FilePath)
	row := s.tree.Find(fk, loc)
	if row == nil {
		return debugger.Desync(op, "no row for breakpoint at %s", loc)
	}
	apply(row.Breakpoint)
	if bm, ok := s.markers[loc]; ok {
		s.redecorate(bm)
	}
	return nil
}

// move records the row the backend actually uses for the breakpoint.
func (s *Synchronizer) move(op string, loc debugger.Location, bufferRow int) error {
	_, _, fk := s.keys(loc.FilePath)
	row := s.tree.Find(fk, loc)
	if row == nil {
		return debugger.Desync(op, "no row for breakpoint at %s", loc)
	}

	if bufferRow == loc.BufferRow {
		row.Breakpoint.ActiveBufferRow = nil
	} else {
		active := bufferRow
		row.Breakpoint.ActiveBufferRow = &active
	}
	s.tree.Resort(fk)

	if bm, ok := s.markers[loc]; ok {
		row.Text, row.TextLoaded = bm.buffer.LineText(bufferRow)
		s.redecorate(bm)
	}
	return nil
}

// redecorate replaces bm's marker with one at the breakpoint's effective row
// decorated for its current state.
func (s *Synchronizer) redecorate(bm *BreakpointMarker) {
	if bm.Marker != nil {
		bm.Marker.Destroy()
	}
	row := bm.Breakpoint.EffectiveRow()
	bm.Marker = bm.buffer.MarkRange(editor.RowRange(row), editor.MarkOptions{Invalidate: editor.InvalidateNever})
	bm.buffer.DecorateMarker(bm.Marker, editor.Decoration{
		Type:  editor.DecorationLineNumber,
		Class: s.classes.forBreakpoint(bm.Breakpoint),
	})
}

// RemoveRow asks the debugger to remove the breakpoint at loc. The tree is
// updated when the backend's removed event arrives.
func (s *Synchronizer) RemoveRow(loc debugger.Location) error {
	const op = "breakpoint.remove-row"
	if s.proxy == nil {
		return debugger.Desync(op, "no debugger attached")
	}
	bp, ok := s.proxy.FindBreakpoint(loc)
	if !ok {
		return debugger.Desync(op, "debugger has no breakpoint at %s", loc)
	}
	if !s.proxy.RemoveBreakpoint(bp) {
		return debugger.Desync(op, "debugger refused to remove breakpoint at %s", loc)
	}
	return nil
}

// Open shows the breakpoint's line in the editor.
func (s *Synchronizer) Open(loc debugger.Location) error {
	_, _, fk := s.keys(loc.FilePath)
	row := s.tree.Find(fk, loc)
	if row == nil {
		return debugger.Desync("breakpoint.open", "no row for breakpoint at %s", loc)
	}
	target := row.Breakpoint.EffectiveRow()

	loop.Await(s.loop, s.ctx, func(ctx context.Context) (editor.Buffer, error) {
		return s.ws.OpenBuffer(ctx, loc.FilePath)
	}, func(buf editor.Buffer, err error) {
		if err != nil {
			s.notes.ReportError(fmt.Errorf("breakpoint.open: %w", err))
			return
		}
		buf.ScrollTo(editor.Point{Row: target})
	})
	return nil
}
