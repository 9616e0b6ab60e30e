package debugger

import (
	"fmt"
)

// LocationKind tags a breakpoint location.
type LocationKind int

const (
	// LocationLine is a source line location.
	LocationLine LocationKind = iota
	// LocationFunction is a named function location.
	LocationFunction
)

// String returns the kind name.
func (k LocationKind) String() string {
	switch k {
	case LocationLine:
		return "line"
	case LocationFunction:
		return "function"
	default:
		return "unknown"
	}
}

// Location is where a breakpoint pauses execution: a source line or a
// function. It is a comparable value; two locations are equal iff they have
// the same kind and the same fields.
type Location struct {
	Kind LocationKind `json:"kind"`

	// FilePath and BufferRow are set for line locations. BufferRow is 0-based.
	FilePath  string `json:"filePath,omitempty"`
	BufferRow int    `json:"bufferRow,omitempty"`

	// Function is set for function locations.
	Function string `json:"function,omitempty"`
}

// LineLocation returns a line location.
func LineLocation(filePath string, bufferRow int) Location {
	return Location{Kind: LocationLine, FilePath: filePath, BufferRow: bufferRow}
}

// FunctionLocation returns a function location.
func FunctionLocation(function string) Location {
	return Location{Kind: LocationFunction, Function: function}
}

// IsLine reports whether l is a line location.
func (l Location) IsLine() bool {
	return l.Kind == LocationLine
}

// String formats the location like "main.go:42" (1-based) or "fn main.run".
func (l Location) String() string {
	if l.Kind == LocationFunction {
		return "fn " + l.Function
	}
	return fmt.Sprintf("%s:%d", l.FilePath, l.BufferRow+1)
}

// Breakpoint is identified by its location.
type Breakpoint struct {
	Location  Location `json:"location"`
	Enabled   bool     `json:"enabled"`
	Condition string   `json:"condition,omitempty"`

	// ActiveBufferRow is the row the backend actually uses when it differs
	// from the configured one (non-breakable line). Nil if not adjusted.
	ActiveBufferRow *int `json:"activeBufferRow,omitempty"`
}

// NewBreakpoint returns an enabled breakpoint at loc.
func NewBreakpoint(loc Location) *Breakpoint {
	return &Breakpoint{Location: loc, Enabled: true}
}

// Equal reports whether b and other have the same location.
func (b *Breakpoint) Equal(other *Breakpoint) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.Location == other.Location
}

// EffectiveRow returns the row execution stops on.
func (b *Breakpoint) EffectiveRow() int {
	if b.ActiveBufferRow != nil {
		return *b.ActiveBufferRow
	}
	return b.Location.BufferRow
}

// DisplayedLine returns the 1-based line shown for the breakpoint.
func (b *Breakpoint) DisplayedLine() int {
	return b.EffectiveRow() + 1
}

// Clone returns a deep copy.
func (b *Breakpoint) Clone() *Breakpoint {
	if b == nil {
		return nil
	}
	c := *b
	if b.ActiveBufferRow != nil {
		row := *b.ActiveBufferRow
		c.ActiveBufferRow = &row
	}
	return &c
}

// BreakpointEventType is the kind of breakpoint change.
type BreakpointEventType string

// Breakpoint event types.
const (
	BreakpointInserted         BreakpointEventType = "inserted"
	BreakpointRemoved          BreakpointEventType = "removed"
	BreakpointEnabled          BreakpointEventType = "enabled"
	BreakpointDisabled         BreakpointEventType = "disabled"
	BreakpointMoved            BreakpointEventType = "moved"
	BreakpointConditionAdded   BreakpointEventType = "condition-added"
	BreakpointConditionRemoved BreakpointEventType = "condition-removed"
)

// BreakpointEvent reports a change to one breakpoint.
type BreakpointEvent struct {
	Type       BreakpointEventType `json:"type"`
	Breakpoint *Breakpoint         `json:"breakpoint"`

	// BufferRow is the new row for moved events.
	BufferRow *int `json:"bufferRow,omitempty"`
}

// SessionEventType is the kind of session lifecycle change.
type SessionEventType string

// Session event types.
const (
	SessionLaunched      SessionEventType = "launched"
	SessionWillTerminate SessionEventType = "will-terminate"
	SessionTerminated    SessionEventType = "terminated"
	SessionResumed       SessionEventType = "resumed"
	SessionSuspended     SessionEventType = "suspended"
)

// Session event reasons.
const (
	ReasonNormally   = "normally"
	ReasonInterrupt  = "interrupt"
	ReasonBreakpoint = "breakpoint"
	ReasonStep       = "step"
)

// ExecutionLine is where a suspended target stopped. BufferRow is 0-based.
type ExecutionLine struct {
	FilePath  string `json:"filePath"`
	BufferRow int    `json:"bufferRow"`
}

// SessionEvent reports a session lifecycle change. ExecutionLine is required
// for suspended events and ignored otherwise.
type SessionEvent struct {
	Type          SessionEventType `json:"type"`
	Reason        string           `json:"reason,omitempty"`
	ExecutionLine *ExecutionLine   `json:"executionLine,omitempty"`
}

// Validate checks the fields required by the event type.
func (e SessionEvent) Validate() error {
	if e.Type != SessionSuspended {
		return nil
	}
	switch {
	case e.ExecutionLine == nil:
		return Malformed("session.suspended", "executionLine is missing")
	case e.ExecutionLine.FilePath == "":
		return Malformed("session.suspended", "executionLine.filePath is empty")
	case e.ExecutionLine.BufferRow < 0:
		return Malformed("session.suspended",
			fmt.Sprintf("executionLine.bufferRow %d is negative", e.ExecutionLine.BufferRow))
	}
	return nil
}

// TargetEventType is the kind of target event.
type TargetEventType string

// TargetOutput is emitted for program output.
const TargetOutput TargetEventType = "output"

// TargetEvent carries output from the debugged program.
type TargetEvent struct {
	Type    TargetEventType `json:"type"`
	Message string          `json:"message"`
}

// StackFrame is one call stack entry. Level 0 is the innermost frame.
type StackFrame struct {
	Level    int    `json:"level"`
	Address  string `json:"address,omitempty"`
	Function string `json:"function"`

	// FilePath is empty for frames without source; BufferRow is 0-based.
	FilePath  string `json:"filePath,omitempty"`
	BufferRow int    `json:"bufferRow,omitempty"`
}

// Navigable reports whether the frame has a source location.
func (f StackFrame) Navigable() bool {
	return f.FilePath != ""
}

// FrameChangeEvent reports a change of the selected stack frame.
type FrameChangeEvent struct {
	Level int `json:"level"`
}

// VariableEventType is the kind of variable event.
type VariableEventType string

// Variable event types.
const (
	VariableUpdated      VariableEventType = "updated"
	VariableLeftScope    VariableEventType = "left-scope"
	VariableEnteredScope VariableEventType = "entered-scope"
)

// VariableEvent reports a variable entering or leaving scope, or a new value.
type VariableEvent struct {
	Type     VariableEventType `json:"type"`
	Variable Variable          `json:"variable"`
}
