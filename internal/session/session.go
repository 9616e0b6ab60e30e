// Package session tracks the debug session lifecycle and owns the execution
// line marker.
package session

import (
	"context"
	"fmt"

	"github.com/dshills/dbgview/internal/debugger"
	"github.com/dshills/dbgview/internal/editor"
	"github.com/dshills/dbgview/internal/event"
	"github.com/dshills/dbgview/internal/logging"
	"github.com/dshills/dbgview/internal/loop"
	"github.com/dshills/dbgview/internal/notify"
)

// FinishedMessage is shown when a session terminates.
const FinishedMessage = "Debugging session has finished."

// State is the session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateLaunched
	StateSuspended
	StateResumed
	StateTerminating
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLaunched:
		return "launched"
	case StateSuspended:
		return "suspended"
	case StateResumed:
		return "resumed"
	case StateTerminating:
		return "terminating"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Options configures a Tracker.
type Options struct {
	Loop      *loop.Loop
	Workspace editor.Workspace
	Notifier  notify.Notifier
	Logger    *logging.Logger

	// Class decorates the execution line. Defaults to editor.ClassExecutionLine.
	Class string
}

// Tracker follows session events. All methods run on the loop.
type Tracker struct {
	loop  *loop.Loop
	ws    editor.Workspace
	notes notify.Notifier
	log   *logging.Logger
	class string

	ctx    context.Context
	cancel context.CancelFunc
	subs   event.Group

	state    State
	reason   string
	gen      uint64
	line     *debugger.ExecutionLine
	marker   editor.Marker
	changed  *event.Emitter[State]
	disposed bool
}

// New creates a tracker. Call Attach to start following a proxy.
func New(opts Options) *Tracker {
	if opts.Logger == nil {
		opts.Logger = logging.Null()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Func{}
	}
	if opts.Class == "" {
		opts.Class = editor.ClassExecutionLine
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		loop:    opts.Loop,
		ws:      opts.Workspace,
		notes:   opts.Notifier,
		log:     opts.Logger.WithComponent("session"),
		class:   opts.Class,
		ctx:     ctx,
		cancel:  cancel,
		changed: event.NewEmitter[State]("session.changed"),
	}
}

// Attach subscribes to p's session events.
func (t *Tracker) Attach(p debugger.Proxy) {
	t.subs.Add(p.OnSessionEvent(notify.Reporting(t.notes, t.HandleSessionEvent)))
}

// OnChange registers fn to run after every state or marker change.
func (t *Tracker) OnChange(fn func(State)) event.Subscription {
	return t.changed.SubscribeFunc(fn)
}

// Dispose unsubscribes, cancels pending work and removes the marker.
func (t *Tracker) Dispose() {
	if t.disposed {
		return
	}
	t.disposed = true
	t.subs.Dispose()
	t.cancel()
	t.gen++
	t.destroyMarker()
}

// State returns the current state.
func (t *Tracker) State() State {
	return t.state
}

// Reason returns the reason of the last session event that carried one.
func (t *Tracker) Reason() string {
	return t.reason
}

// ExecutionLine returns where the target is suspended.
func (t *Tracker) ExecutionLine() (debugger.ExecutionLine, bool) {
	if t.line == nil {
		return debugger.ExecutionLine{}, false
	}
	return *t.line, true
}

// HasMarker reports whether the execution marker exists.
func (t *Tracker) HasMarker() bool {
	return t.marker != nil
}

// SetClass changes the decoration class used for new execution markers.
func (t *Tracker) SetClass(class string) {
	if class != "" {
		t.class = class
	}
}

// HandleSessionEvent applies one session event.
func (t *Tracker) HandleSessionEvent(ev debugger.SessionEvent) error {
	if ev.Reason != "" {
		t.reason = ev.Reason
	}

	switch ev.Type {
	case debugger.SessionLaunched:
		t.gen++
		t.line = nil
		t.destroyMarker()
		t.setState(StateLaunched)

	case debugger.SessionSuspended:
		if err := ev.Validate(); err != nil {
			return err
		}
		t.gen++
		line := *ev.ExecutionLine
		t.line = &line
		t.destroyMarker()
		t.setState(StateSuspended)
		t.showExecutionLine(t.gen, line)

	case debugger.SessionResumed:
		t.gen++
		t.line = nil
		t.destroyMarker()
		t.setState(StateResumed)

	case debugger.SessionWillTerminate:
		t.setState(StateTerminating)

	case debugger.SessionTerminated:
		t.gen++
		t.line = nil
		t.destroyMarker()
		t.setState(StateIdle)
		t.notes.ReportWarning(FinishedMessage)

	default:
		return debugger.Malformed("session", fmt.Sprintf("unknown event type %q", ev.Type))
	}
	return nil
}

// showExecutionLine opens the buffer and marks the line unless a newer
// session event arrived in the meantime.
func (t *Tracker) showExecutionLine(gen uint64, line debugger.ExecutionLine) {
	loop.Await(t.loop, t.ctx, func(ctx context.Context) (editor.Buffer, error) {
		return t.ws.OpenBuffer(ctx, line.FilePath)
	}, func(buf editor.Buffer, err error) {
		if gen != t.gen {
			t.log.Debug("discarding stale execution line %s:%d", line.FilePath, line.BufferRow+1)
			return
		}
		if err != nil {
			t.notes.ReportError(fmt.Errorf("show execution line: %w", err))
			return
		}

		t.destroyMarker()
		t.marker = buf.MarkRange(editor.RowRange(line.BufferRow), editor.MarkOptions{Invalidate: editor.InvalidateNever})
		buf.DecorateMarker(t.marker, editor.Decoration{Type: editor.DecorationLine, Class: t.class})
		buf.ScrollTo(editor.Point{Row: line.BufferRow})
		t.changed.Emit(t.state)
	})
}

func (t *Tracker) destroyMarker() {
	if t.marker == nil {
		return
	}
	t.marker.Destroy()
	t.marker = nil
}

func (t *Tracker) setState(s State) {
	if t.state != s {
		t.log.Debug("state %s -> %s", t.state, s)
	}
	t.state = s
	t.changed.Emit(s)
}
