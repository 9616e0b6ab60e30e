package debugger

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestLocation_Equality(t *testing.T) {
	tests := []struct {
		name string
		a, b Location
		want bool
	}{
		{"same line", LineLocation("a.go", 5), LineLocation("a.go", 5), true},
		{"different row", LineLocation("a.go", 5), LineLocation("a.go", 6), false},
		{"different file", LineLocation("a.go", 5), LineLocation("b.go", 5), false},
		{"same function", FunctionLocation("main"), FunctionLocation("main"), true},
		{"line vs function", LineLocation("", 0), FunctionLocation(""), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a == tt.b; got != tt.want {
				t.Errorf("%v == %v = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}

	m := map[Location]int{LineLocation("a.go", 1): 1}
	if m[LineLocation("a.go", 1)] != 1 {
		t.Error("location not usable as map key")
	}
}

func TestBreakpoint_DisplayedLine(t *testing.T) {
	bp := NewBreakpoint(LineLocation("a.go", 5))
	if bp.DisplayedLine() != 6 {
		t.Errorf("DisplayedLine = %d, want 6", bp.DisplayedLine())
	}

	active := 7
	bp.ActiveBufferRow = &active
	if bp.DisplayedLine() != 8 {
		t.Errorf("DisplayedLine with active row = %d, want 8", bp.DisplayedLine())
	}

	clone := bp.Clone()
	*clone.ActiveBufferRow = 1
	if bp.DisplayedLine() != 8 {
		t.Error("Clone shares ActiveBufferRow")
	}
}

func TestSessionEvent_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ev      SessionEvent
		wantErr bool
	}{
		{"resumed needs nothing", SessionEvent{Type: SessionResumed}, false},
		{"suspended ok", SessionEvent{Type: SessionSuspended, ExecutionLine: &ExecutionLine{FilePath: "b.go", BufferRow: 2}}, false},
		{"suspended row zero", SessionEvent{Type: SessionSuspended, ExecutionLine: &ExecutionLine{FilePath: "b.go"}}, false},
		{"suspended missing line", SessionEvent{Type: SessionSuspended}, true},
		{"suspended empty path", SessionEvent{Type: SessionSuspended, ExecutionLine: &ExecutionLine{BufferRow: 2}}, true},
		{"suspended negative row", SessionEvent{Type: SessionSuspended, ExecutionLine: &ExecutionLine{FilePath: "b.go", BufferRow: -1}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ev.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrMalformedEvent) {
				t.Errorf("expected ErrMalformedEvent, got %v", err)
			}
		})
	}
}

func TestError_Kinds(t *testing.T) {
	cause := errors.New("connection reset")
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"malformed", Malformed("op", "x"), ErrMalformedEvent},
		{"unsupported", Unsupported("op", FunctionLocation("main")), ErrUnsupportedBreakpointKind},
		{"desync", Desync("op", "row %d", 3), ErrDesync},
		{"backend", BackendQuery("op", cause), ErrBackendQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.kind) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.kind)
			}
			for _, other := range []error{ErrMalformedEvent, ErrUnsupportedBreakpointKind, ErrDesync, ErrBackendQuery} {
				if other != tt.kind && errors.Is(tt.err, other) {
					t.Errorf("%v also matches %v", tt.err, other)
				}
			}
		})
	}

	if !errors.Is(BackendQuery("callstack", cause), cause) {
		t.Error("BackendQuery does not unwrap to its cause")
	}
	if got := Desync("breakpoint.removed", "no row for line %d", 6).Error(); got != "breakpoint.removed: view out of sync with debugger: no row for line 6" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestValue_States(t *testing.T) {
	var absent Value
	if !absent.IsAbsent() {
		t.Error("zero value should be absent")
	}
	if _, ok := absent.Text(); ok {
		t.Error("absent value should have no slot")
	}

	if s, ok := Unknown().Text(); !ok || s != UnknownText {
		t.Errorf("Unknown().Text() = %q, %v", s, ok)
	}
	if s, ok := Known("42").Text(); !ok || s != "42" {
		t.Errorf("Known(42).Text() = %q, %v", s, ok)
	}

	var v Variable
	if err := json.Unmarshal([]byte(`{"id":"1","name":"x","value":null}`), &v); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !v.Value.IsUnknown() {
		t.Error("null value should decode as unknown")
	}
	if err := json.Unmarshal([]byte(`{"id":"2","name":"y"}`), &v); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
}

func TestHub_DispatchAndErrors(t *testing.T) {
	h := NewHub()

	var errs []error
	h.SetErrorHandler(func(err error) { errs = append(errs, err) })

	var order []string
	h.OnSessionEvent(func(ev SessionEvent) error {
		order = append(order, "a:"+string(ev.Type))
		return errors.New("a failed")
	})
	sub := h.OnSessionEvent(func(ev SessionEvent) error {
		order = append(order, "b:"+string(ev.Type))
		return nil
	})

	h.EmitSession(SessionEvent{Type: SessionLaunched})
	h.EmitSession(SessionEvent{Type: SessionResumed})

	want := []string{"a:launched", "b:launched", "a:resumed", "b:resumed"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
	if len(errs) != 2 {
		t.Errorf("expected 2 handler errors, got %d", len(errs))
	}

	sub.Dispose()
	if h.Subscribers() != 1 {
		t.Errorf("Subscribers = %d, want 1", h.Subscribers())
	}
}
