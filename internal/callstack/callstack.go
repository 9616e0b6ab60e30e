// Package callstack keeps a snapshot of the suspended thread's call stack
// and the selected frame.
package callstack

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dshills/dbgview/internal/debugger"
	"github.com/dshills/dbgview/internal/event"
	"github.com/dshills/dbgview/internal/logging"
	"github.com/dshills/dbgview/internal/loop"
	"github.com/dshills/dbgview/internal/notify"
)

// ErrNotNavigable is returned when selecting a frame without source.
var ErrNotNavigable = errors.New("frame has no source location")

// Frame is a stack frame as shown in the panel.
type Frame struct {
	debugger.StackFrame
	Selected bool `json:"selected"`
	// Disabled frames have no source and cannot be selected.
	Disabled bool `json:"disabled"`
}

// Options configures a Tracker.
type Options struct {
	Loop     *loop.Loop
	Notifier notify.Notifier
	Logger   *logging.Logger
}

// Tracker follows the call stack. All methods run on the loop.
type Tracker struct {
	loop  *loop.Loop
	notes notify.Notifier
	log   *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	subs   event.Group
	proxy  debugger.Proxy

	frames   []debugger.StackFrame
	selected int
	gen      uint64
	changed  *event.Emitter[[]Frame]
}

// New creates a tracker.
func New(opts Options) *Tracker {
	if opts.Logger == nil {
		opts.Logger = logging.Null()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Func{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		loop:     opts.Loop,
		notes:    opts.Notifier,
		log:      opts.Logger.WithComponent("callstack"),
		ctx:      ctx,
		cancel:   cancel,
		selected: -1,
		changed:  event.NewEmitter[[]Frame]("callstack.changed"),
	}
}

// Attach subscribes to p's session and frame change events.
func (t *Tracker) Attach(p debugger.Proxy) {
	t.proxy = p
	t.subs.Add(
		p.OnSessionEvent(notify.Reporting(t.notes, t.HandleSessionEvent)),
		p.OnFrameChange(notify.Reporting(t.notes, t.HandleFrameChange)),
	)
}

// OnChange registers fn to run with the frames after every change.
func (t *Tracker) OnChange(fn func([]Frame)) event.Subscription {
	return t.changed.SubscribeFunc(fn)
}

// Dispose unsubscribes and drops pending fetches.
func (t *Tracker) Dispose() {
	t.subs.Dispose()
	t.cancel()
	t.gen++
}

// Frames returns the frames ordered by level.
func (t *Tracker) Frames() []Frame {
	out := make([]Frame, len(t.frames))
	for i, f := range t.frames {
		out[i] = Frame{StackFrame: f, Selected: f.Level == t.selected, Disabled: !f.Navigable()}
	}
	return out
}

// Selected returns the selected frame.
func (t *Tracker) Selected() (debugger.StackFrame, bool) {
	for _, f := range t.frames {
		if f.Level == t.selected {
			return f, true
		}
	}
	return debugger.StackFrame{}, false
}

// HandleSessionEvent refreshes on suspend and clears on resume or end.
func (t *Tracker) HandleSessionEvent(ev debugger.SessionEvent) error {
	switch ev.Type {
	case debugger.SessionSuspended:
		t.gen++
		t.refresh(t.gen)
	case debugger.SessionLaunched, debugger.SessionResumed, debugger.SessionTerminated:
		t.gen++
		t.clear()
	}
	return nil
}

// HandleFrameChange moves the selection to ev.Level.
func (t *Tracker) HandleFrameChange(ev debugger.FrameChangeEvent) error {
	if len(t.frames) == 0 {
		// Frames are still loading; the fetch reads the selection itself.
		return nil
	}
	if !t.hasLevel(ev.Level) {
		return debugger.Desync("callstack.frame-change", "no frame at level %d", ev.Level)
	}
	if t.selected != ev.Level {
		t.selected = ev.Level
		t.changed.Emit(t.Frames())
	}
	return nil
}

// Select asks the debugger to select the frame at level and marks it
// locally without waiting for the round trip.
func (t *Tracker) Select(level int) error {
	const op = "callstack.select"
	var frame *debugger.StackFrame
	for i := range t.frames {
		if t.frames[i].Level == level {
			frame = &t.frames[i]
			break
		}
	}
	if frame == nil {
		return debugger.Desync(op, "no frame at level %d", level)
	}
	if !frame.Navigable() {
		return fmt.Errorf("%s: level %d: %w", op, level, ErrNotNavigable)
	}
	if t.proxy == nil {
		return debugger.Desync(op, "no debugger attached")
	}

	t.proxy.SetSelectedFrame(level)
	if t.selected != level {
		t.selected = level
		t.changed.Emit(t.Frames())
	}
	return nil
}

func (t *Tracker) refresh(gen uint64) {
	p := t.proxy
	loop.Await2(t.loop, t.ctx, p.CallStack, p.SelectedFrame,
		func(res loop.Pair[[]debugger.StackFrame, debugger.StackFrame], err error) {
			if gen != t.gen {
				t.log.Debug("discarding stale call stack")
				return
			}
			if err != nil {
				t.notes.ReportError(debugger.BackendQuery("callstack.refresh", err))
				return
			}

			frames := res.First
			sort.SliceStable(frames, func(i, j int) bool { return frames[i].Level < frames[j].Level })
			t.frames = frames
			t.selected = res.Second.Level
			if !t.hasLevel(t.selected) && len(frames) > 0 {
				t.log.Warn("selected level %d not in stack, selecting %d", t.selected, frames[0].Level)
				t.selected = frames[0].Level
			}
			t.changed.Emit(t.Frames())
		})
}

func (t *Tracker) clear() {
	if len(t.frames) == 0 && t.selected == -1 {
		return
	}
	t.frames = nil
	t.selected = -1
	t.changed.Emit(nil)
}

func (t *Tracker) hasLevel(level int) bool {
	for _, f := range t.frames {
		if f.Level == level {
			return true
		}
	}
	return false
}
