package editor

import (
	"context"
	"errors"
	"testing"
)

func TestMemory_OpenBuffer(t *testing.T) {
	fs := MapFileSystem{"/p/a.go": "package a\r\n\nfunc A() {}\n"}
	m := NewMemory(fs)

	buf, err := m.OpenBuffer(context.Background(), "/p/a.go")
	if err != nil {
		t.Fatalf("OpenBuffer: %v", err)
	}
	tests := []struct {
		row  int
		want string
		ok   bool
	}{
		{0, "package a", true},
		{1, "", true},
		{2, "func A() {}", true},
		{3, "", false},
		{-1, "", false},
	}
	for _, tt := range tests {
		got, ok := buf.LineText(tt.row)
		if got != tt.want || ok != tt.ok {
			t.Errorf("LineText(%d) = %q, %v; want %q, %v", tt.row, got, ok, tt.want, tt.ok)
		}
	}

	again, _ := m.OpenBuffer(context.Background(), "/p/a.go")
	if again != buf {
		t.Error("second open returned a different buffer")
	}
	if m.Opens("/p/a.go") != 2 {
		t.Errorf("Opens = %d, want 2", m.Opens("/p/a.go"))
	}

	if _, err := m.OpenBuffer(context.Background(), "/p/missing.go"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemory_OpenHook(t *testing.T) {
	boom := errors.New("denied")
	m := NewMemory(MapFileSystem{"/a": "x"}, WithOpenHook(func(context.Context, string) error {
		return boom
	}))
	if _, err := m.OpenBuffer(context.Background(), "/a"); !errors.Is(err, boom) {
		t.Errorf("expected hook error, got %v", err)
	}
}

func TestMemory_MarkersAndSigns(t *testing.T) {
	m := NewMemory(MapFileSystem{"/a": "1\n2\n3\n4\n"})
	b, _ := m.OpenBuffer(context.Background(), "/a")

	exec := b.MarkRange(RowRange(2), MarkOptions{Invalidate: InvalidateNever})
	b.DecorateMarker(exec, Decoration{Type: DecorationLine, Class: ClassExecutionLine})
	bp := b.MarkRange(RowRange(2), MarkOptions{Invalidate: InvalidateNever})
	b.DecorateMarker(bp, Decoration{Type: DecorationLineNumber, Class: ClassBreakpoint})
	other := b.MarkRange(RowRange(0), MarkOptions{})
	b.DecorateMarker(other, Decoration{Type: DecorationLine, Class: ClassBreakpointDisabled})
	b.ScrollTo(Point{Row: 2})

	signs := m.Signs("/a")
	want := []Sign{
		{Row: 0, Type: SignBreakpointDisabled},
		{Row: 2, Type: SignExecution},
		{Row: 2, Type: SignBreakpoint},
	}
	if len(signs) != len(want) {
		t.Fatalf("Signs = %v, want %v", signs, want)
	}
	for i := range want {
		if signs[i] != want[i] {
			t.Errorf("sign %d = %v, want %v", i, signs[i], want[i])
		}
	}

	if loc, ok := m.LastScroll(); !ok || loc.Path != "/a" || loc.Point.Row != 2 {
		t.Errorf("LastScroll = %+v, %v", loc, ok)
	}

	exec.Destroy()
	exec.Destroy()
	if !exec.IsDestroyed() {
		t.Error("marker not destroyed")
	}
	if m.LiveMarkers() != 2 {
		t.Errorf("LiveMarkers = %d, want 2", m.LiveMarkers())
	}
	if got := m.MarkersWithClass(ClassExecutionLine); len(got) != 0 {
		t.Errorf("execution markers left: %d", len(got))
	}
	if mk := bp.(*MemoryMarker); mk.Invalidate() != InvalidateNever {
		t.Errorf("Invalidate = %q", mk.Invalidate())
	}
}
