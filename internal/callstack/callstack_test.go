package callstack

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dshills/dbgview/internal/debugger"
	"github.com/dshills/dbgview/internal/debugger/debuggertest"
	"github.com/dshills/dbgview/internal/loop"
	"github.com/dshills/dbgview/internal/notify"
)

type fixture struct {
	loop    *loop.Loop
	proxy   *debuggertest.Proxy
	notes   *notify.Recorder
	tracker *Tracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{loop: loop.New(), proxy: debuggertest.New(), notes: &notify.Recorder{}}
	f.tracker = New(Options{Loop: f.loop, Notifier: f.notes})
	f.tracker.Attach(f.proxy)
	t.Cleanup(f.tracker.Dispose)
	return f
}

func (f *fixture) settle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.loop.RunUntilIdle(ctx); err != nil {
		t.Fatalf("RunUntilIdle: %v", err)
	}
}

var suspended = debugger.SessionEvent{
	Type:          debugger.SessionSuspended,
	ExecutionLine: &debugger.ExecutionLine{FilePath: "/p/a.go", BufferRow: 3},
}

func twoFrames() []debugger.StackFrame {
	return []debugger.StackFrame{
		{Level: 1, Function: "main.main", FilePath: "/p/main.go", BufferRow: 9},
		{Level: 0, Function: "main.work", FilePath: "/p/a.go", BufferRow: 3},
	}
}

func selectedLevels(frames []Frame) []int {
	var out []int
	for _, f := range frames {
		if f.Selected {
			out = append(out, f.Level)
		}
	}
	return out
}

func TestTracker_SuspendFetchesAndSelects(t *testing.T) {
	f := newFixture(t)
	f.proxy.SetStack(twoFrames(), debugger.StackFrame{Level: 1})

	f.proxy.EmitSession(suspended)
	f.settle(t)

	frames := f.tracker.Frames()
	if len(frames) != 2 || frames[0].Level != 0 || frames[1].Level != 1 {
		t.Fatalf("frames not ordered by level: %+v", frames)
	}
	if got := selectedLevels(frames); len(got) != 1 || got[0] != 1 {
		t.Errorf("selected = %v, want [1]", got)
	}

	if err := f.tracker.Select(0); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := selectedLevels(f.tracker.Frames()); len(got) != 1 || got[0] != 0 {
		t.Errorf("selected after Select(0) = %v", got)
	}
	if levels := f.proxy.SelectedLevels(); len(levels) != 1 || levels[0] != 0 {
		t.Errorf("SetSelectedFrame calls = %v", levels)
	}
	if f.proxy.Calls("CallStack") != 1 {
		t.Errorf("Select caused a refetch: %d CallStack calls", f.proxy.Calls("CallStack"))
	}
}

func TestTracker_ResumeClears(t *testing.T) {
	f := newFixture(t)
	f.proxy.SetStack(twoFrames(), debugger.StackFrame{Level: 0})

	f.proxy.EmitSession(suspended)
	f.settle(t)
	f.proxy.EmitSession(debugger.SessionEvent{Type: debugger.SessionResumed})

	if len(f.tracker.Frames()) != 0 {
		t.Errorf("frames left after resume: %+v", f.tracker.Frames())
	}
	if _, ok := f.tracker.Selected(); ok {
		t.Error("selection left after resume")
	}
}

func TestTracker_NonNavigableFrame(t *testing.T) {
	f := newFixture(t)
	f.proxy.SetStack([]debugger.StackFrame{
		{Level: 0, Function: "main.work", FilePath: "/p/a.go"},
		{Level: 1, Function: "runtime.goexit", Address: "0x4a1b20"},
	}, debugger.StackFrame{Level: 0})

	f.proxy.EmitSession(suspended)
	f.settle(t)

	frames := f.tracker.Frames()
	if frames[0].Disabled || !frames[1].Disabled {
		t.Errorf("Disabled flags wrong: %+v", frames)
	}
	if err := f.tracker.Select(1); !errors.Is(err, ErrNotNavigable) {
		t.Errorf("expected ErrNotNavigable, got %v", err)
	}
	if err := f.tracker.Select(7); !errors.Is(err, debugger.ErrDesync) {
		t.Errorf("expected desync for unknown level, got %v", err)
	}
	if len(f.proxy.SelectedLevels()) != 0 {
		t.Error("rejected selection reached the backend")
	}
}

func TestTracker_FailureKeepsPriorState(t *testing.T) {
	f := newFixture(t)
	f.proxy.SetStack(twoFrames(), debugger.StackFrame{Level: 0})
	f.proxy.EmitSession(suspended)
	f.settle(t)

	f.proxy.StackErr = errors.New("thread gone")
	f.proxy.EmitSession(suspended)
	f.settle(t)

	if got := f.notes.ErrorsMatching(debugger.ErrBackendQuery); len(got) != 1 {
		t.Fatalf("expected backend query failure, got %v", f.notes.Errors())
	}
	if len(f.tracker.Frames()) != 2 {
		t.Errorf("prior frames lost: %+v", f.tracker.Frames())
	}
}

func TestTracker_StaleFetchDiscarded(t *testing.T) {
	f := newFixture(t)
	f.proxy.SetStack(twoFrames(), debugger.StackFrame{Level: 0})
	f.proxy.Gate = make(chan struct{})

	f.proxy.EmitSession(suspended)
	f.proxy.EmitSession(debugger.SessionEvent{Type: debugger.SessionResumed})
	close(f.proxy.Gate)
	f.settle(t)

	if len(f.tracker.Frames()) != 0 {
		t.Errorf("stale fetch applied: %+v", f.tracker.Frames())
	}
}

func TestTracker_FrameChangeMovesSelection(t *testing.T) {
	f := newFixture(t)
	f.proxy.SetStack(twoFrames(), debugger.StackFrame{Level: 0})
	f.proxy.EmitSession(suspended)
	f.settle(t)

	var seen [][]Frame
	f.tracker.OnChange(func(frames []Frame) { seen = append(seen, frames) })

	f.proxy.EmitFrameChange(debugger.FrameChangeEvent{Level: 1})
	if got := selectedLevels(f.tracker.Frames()); len(got) != 1 || got[0] != 1 {
		t.Errorf("selected = %v", got)
	}
	f.proxy.EmitFrameChange(debugger.FrameChangeEvent{Level: 1})
	if len(seen) != 1 {
		t.Errorf("expected one change notification, got %d", len(seen))
	}

	f.proxy.EmitFrameChange(debugger.FrameChangeEvent{Level: 5})
	if got := f.notes.ErrorsMatching(debugger.ErrDesync); len(got) != 1 {
		t.Errorf("expected desync for unknown level, got %v", f.notes.Errors())
	}
}
