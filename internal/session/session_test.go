package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dshills/dbgview/internal/debugger"
	"github.com/dshills/dbgview/internal/debugger/debuggertest"
	"github.com/dshills/dbgview/internal/editor"
	"github.com/dshills/dbgview/internal/loop"
	"github.com/dshills/dbgview/internal/notify"
)

type fixture struct {
	loop    *loop.Loop
	proxy   *debuggertest.Proxy
	ws      *editor.Memory
	notes   *notify.Recorder
	tracker *Tracker
}

func newFixture(t *testing.T, opts ...editor.MemoryOption) *fixture {
	t.Helper()
	f := &fixture{
		loop:  loop.New(),
		proxy: debuggertest.New(),
		ws: editor.NewMemory(editor.MapFileSystem{
			"/p/a.go": "package a\n\nfunc A() {}\n",
			"/p/b.go": "package b\n\nfunc B() {\n\tA()\n}\n",
		}, opts...),
		notes: &notify.Recorder{},
	}
	f.tracker = New(Options{Loop: f.loop, Workspace: f.ws, Notifier: f.notes})
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

func suspended(path string, row int) debugger.SessionEvent {
	return debugger.SessionEvent{
		Type:          debugger.SessionSuspended,
		Reason:        debugger.ReasonBreakpoint,
		ExecutionLine: &debugger.ExecutionLine{FilePath: path, BufferRow: row},
	}
}

func TestTracker_SuspendThenResume(t *testing.T) {
	f := newFixture(t)

	f.proxy.EmitSession(debugger.SessionEvent{Type: debugger.SessionLaunched})
	f.proxy.EmitSession(suspended("/p/b.go", 2))
	f.settle(t)

	markers := f.ws.MarkersWithClass(editor.ClassExecutionLine)
	if len(markers) != 1 {
		t.Fatalf("expected 1 execution marker, got %d", len(markers))
	}
	if row := markers[0].Range().Start.Row; row != 2 {
		t.Errorf("marker row = %d, want 2", row)
	}
	if markers[0].Invalidate() != editor.InvalidateNever {
		t.Errorf("marker invalidate = %q", markers[0].Invalidate())
	}
	if loc, ok := f.ws.LastScroll(); !ok || loc.Path != "/p/b.go" || loc.Point.Row != 2 {
		t.Errorf("LastScroll = %+v, %v", loc, ok)
	}
	if f.tracker.State() != StateSuspended || f.tracker.Reason() != debugger.ReasonBreakpoint {
		t.Errorf("state = %v, reason = %q", f.tracker.State(), f.tracker.Reason())
	}

	f.proxy.EmitSession(debugger.SessionEvent{Type: debugger.SessionResumed})
	f.settle(t)

	if n := len(f.ws.MarkersWithClass(editor.ClassExecutionLine)); n != 0 {
		t.Errorf("expected marker destroyed, %d left", n)
	}
	if f.tracker.HasMarker() {
		t.Error("tracker still holds a marker")
	}
	if len(f.notes.Errors()) != 0 {
		t.Errorf("unexpected errors: %v", f.notes.Errors())
	}
}

func TestTracker_AtMostOneMarker(t *testing.T) {
	f := newFixture(t)

	f.proxy.EmitSession(suspended("/p/a.go", 0))
	f.settle(t)
	f.proxy.EmitSession(suspended("/p/b.go", 3))
	f.settle(t)

	markers := f.ws.MarkersWithClass(editor.ClassExecutionLine)
	if len(markers) != 1 {
		t.Fatalf("expected 1 execution marker, got %d", len(markers))
	}
	if line, _ := f.tracker.ExecutionLine(); line.FilePath != "/p/b.go" || line.BufferRow != 3 {
		t.Errorf("ExecutionLine = %+v", line)
	}
}

func TestTracker_TerminatedWarnsAndClears(t *testing.T) {
	f := newFixture(t)

	f.proxy.EmitSession(suspended("/p/a.go", 1))
	f.settle(t)
	f.proxy.EmitSession(debugger.SessionEvent{Type: debugger.SessionWillTerminate})
	if f.tracker.State() != StateTerminating {
		t.Errorf("state = %v, want terminating", f.tracker.State())
	}
	f.proxy.EmitSession(debugger.SessionEvent{Type: debugger.SessionTerminated, Reason: debugger.ReasonNormally})
	f.proxy.EmitSession(debugger.SessionEvent{Type: debugger.SessionTerminated})
	f.settle(t)

	if f.ws.LiveMarkers() != 0 {
		t.Errorf("LiveMarkers = %d", f.ws.LiveMarkers())
	}
	warnings := f.notes.Warnings()
	if len(warnings) != 2 || warnings[0] != FinishedMessage {
		t.Errorf("Warnings = %v", warnings)
	}
	if f.tracker.State() != StateIdle {
		t.Errorf("state = %v, want idle", f.tracker.State())
	}
}

func TestTracker_MalformedSuspend(t *testing.T) {
	f := newFixture(t)

	f.proxy.EmitSession(debugger.SessionEvent{Type: debugger.SessionSuspended})
	f.proxy.EmitSession(debugger.SessionEvent{Type: debugger.SessionSuspended, ExecutionLine: &debugger.ExecutionLine{FilePath: "/p/a.go", BufferRow: -4}})
	f.settle(t)

	if got := f.notes.ErrorsMatching(debugger.ErrMalformedEvent); len(got) != 2 {
		t.Errorf("expected 2 malformed errors, got %v", f.notes.Errors())
	}
	if f.ws.LiveMarkers() != 0 {
		t.Error("malformed event created a marker")
	}
	if f.tracker.State() == StateSuspended {
		t.Error("malformed event changed state")
	}
}

func TestTracker_StaleOpenDiscarded(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, editor.WithOpenHook(func(ctx context.Context, path string) error {
		if path == "/p/a.go" {
			select {
			case <-release:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}))

	f.proxy.EmitSession(suspended("/p/a.go", 0))
	f.proxy.EmitSession(debugger.SessionEvent{Type: debugger.SessionResumed})
	close(release)
	f.settle(t)

	if f.ws.LiveMarkers() != 0 {
		t.Errorf("stale continuation created %d markers", f.ws.LiveMarkers())
	}
	if f.tracker.HasMarker() {
		t.Error("tracker holds a stale marker")
	}
}

func TestTracker_OpenFailureReported(t *testing.T) {
	f := newFixture(t)

	f.proxy.EmitSession(suspended("/p/missing.go", 0))
	f.settle(t)

	errs := f.notes.Errors()
	if len(errs) != 1 || !errors.Is(errs[0], editor.ErrNotFound) {
		t.Errorf("Errors = %v", errs)
	}
	if f.tracker.State() != StateSuspended {
		t.Errorf("state = %v", f.tracker.State())
	}
}

func TestTracker_DisposeUnsubscribes(t *testing.T) {
	f := newFixture(t)

	changes := 0
	f.tracker.OnChange(func(State) { changes++ })
	f.tracker.Dispose()
	f.tracker.Dispose()

	f.proxy.EmitSession(debugger.SessionEvent{Type: debugger.SessionLaunched})
	if changes != 0 || f.proxy.Subscribers() != 0 {
		t.Errorf("changes = %d, subscribers = %d", changes, f.proxy.Subscribers())
	}
}
