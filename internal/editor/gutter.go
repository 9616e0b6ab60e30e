package editor

import "sort"

// SignType is the kind of sign shown in the gutter for a marker.
type SignType uint8

const (
	SignNone SignType = iota
	SignExecution
	SignBreakpoint
	SignBreakpointDisabled
	SignBreakpointConditional
)

// String returns the sign name.
func (s SignType) String() string {
	switch s {
	case SignExecution:
		return "execution"
	case SignBreakpoint:
		return "breakpoint"
	case SignBreakpointDisabled:
		return "breakpoint-disabled"
	case SignBreakpointConditional:
		return "breakpoint-conditional"
	default:
		return "none"
	}
}

// MarshalText encodes the sign as its name.
func (s SignType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Sign is a gutter sign on a 0-based row.
type Sign struct {
	Row  int      `json:"row"`
	Type SignType `json:"type"`
}

// DefaultSignClasses maps the default decoration classes to signs.
func DefaultSignClasses() map[string]SignType {
	return map[string]SignType{
		ClassExecutionLine:         SignExecution,
		ClassBreakpoint:            SignBreakpoint,
		ClassBreakpointDisabled:    SignBreakpointDisabled,
		ClassBreakpointConditional: SignBreakpointConditional,
	}
}

// SetSignClasses replaces the class to sign mapping, e.g. after the
// decoration classes were reconfigured.
func (m *Memory) SetSignClasses(classes map[string]SignType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signClasses = classes
}

// Signs returns the gutter signs of the buffer at path, ordered by row. The
// execution sign sorts before breakpoint signs on the same row.
func (m *Memory) Signs(path string) []Sign {
	b, ok := m.Buffer(path)
	if !ok {
		return nil
	}

	m.mu.Lock()
	classes := m.signClasses
	m.mu.Unlock()

	var signs []Sign
	for _, mk := range b.Markers() {
		for _, d := range mk.Decorations() {
			if t, ok := classes[d.Class]; ok {
				signs = append(signs, Sign{Row: mk.Range().Start.Row, Type: t})
			}
		}
	}
	sort.SliceStable(signs, func(i, j int) bool {
		if signs[i].Row != signs[j].Row {
			return signs[i].Row < signs[j].Row
		}
		return signs[i].Type < signs[j].Type
	})
	return signs
}

// AllSigns returns the signs of every open buffer that has any.
func (m *Memory) AllSigns() map[string][]Sign {
	m.mu.Lock()
	paths := make([]string, 0, len(m.buffers))
	for p := range m.buffers {
		paths = append(paths, p)
	}
	m.mu.Unlock()

	out := make(map[string][]Sign)
	for _, p := range paths {
		if s := m.Signs(p); len(s) > 0 {
			out[p] = s
		}
	}
	return out
}
