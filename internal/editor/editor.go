// Package editor defines the host editor primitives the debugger view needs:
// opening buffers, marking ranges and decorating markers.
//
// Buffer and Marker methods are called from the application loop only.
// Workspace.OpenBuffer may block and is called from worker goroutines.
package editor

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a buffer cannot be opened.
var ErrNotFound = errors.New("buffer not found")

// Point is a 0-based buffer position.
type Point struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// Range is a half-open span of buffer positions.
type Range struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// RowRange returns the empty range at the start of row.
func RowRange(row int) Range {
	p := Point{Row: row}
	return Range{Start: p, End: p}
}

// Invalidate controls when edits invalidate a marker.
type Invalidate string

// Invalidation strategies.
const (
	InvalidateNever    Invalidate = "never"
	InvalidateSurround Invalidate = "surround"
	InvalidateOverlap  Invalidate = "overlap"
	InvalidateInside   Invalidate = "inside"
	InvalidateTouch    Invalidate = "touch"
)

// MarkOptions configures a new marker.
type MarkOptions struct {
	Invalidate Invalidate
}

// Decoration types.
const (
	DecorationLine       = "line"
	DecorationLineNumber = "line-number"
	DecorationGutter     = "gutter"
)

// Default decoration classes.
const (
	ClassExecutionLine         = "debugger-execution-line"
	ClassBreakpoint            = "debugger-breakpoint-line"
	ClassBreakpointDisabled    = "debugger-breakpoint-disabled"
	ClassBreakpointConditional = "debugger-breakpoint-conditional"
)

// Decoration styles a marker.
type Decoration struct {
	Type  string
	Class string
}

// Marker is an opaque handle to a marked range.
type Marker interface {
	Range() Range
	Destroy()
	IsDestroyed() bool
}

// Buffer is an open text buffer.
type Buffer interface {
	Path() string

	// LineText returns the text of row without its line terminator.
	LineText(row int) (string, bool)

	MarkRange(r Range, opts MarkOptions) Marker
	DecorateMarker(m Marker, d Decoration)
	ScrollTo(p Point)
}

// Workspace opens buffers by absolute path.
type Workspace interface {
	OpenBuffer(ctx context.Context, path string) (Buffer, error)
}
