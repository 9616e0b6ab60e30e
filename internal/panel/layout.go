package panel

import (
	"errors"
	"fmt"
)

// Section identifies a panel section.
type Section string

// Sections.
const (
	SectionScope       Section = "scope"
	SectionBreakpoints Section = "breakpoints"
	SectionCallStack   Section = "call-stack"
	SectionConsole     Section = "console"
)

// Side is the left or right half of the panel.
type Side string

// Sides.
const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// ErrInvalidPlacement is returned for a section that cannot go on a side.
var ErrInvalidPlacement = errors.New("invalid section placement")

var placements = map[Side][]Section{
	SideLeft:  {SectionScope},
	SideRight: {SectionBreakpoints, SectionCallStack, SectionConsole},
}

// Layout is which section shows on each side.
type Layout struct {
	Left  Section `json:"left"`
	Right Section `json:"right"`
}

// DefaultLayout shows the variables on the left and the call stack on the
// right.
func DefaultLayout() Layout {
	return Layout{Left: SectionScope, Right: SectionCallStack}
}

// Sections returns the sections allowed on side.
func Sections(side Side) []Section {
	return append([]Section(nil), placements[side]...)
}

// CheckPlacement returns ErrInvalidPlacement unless s may be shown on side.
func CheckPlacement(side Side, s Section) error {
	allowed, ok := placements[side]
	if !ok {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidPlacement, side)
	}
	for _, a := range allowed {
		if a == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %q on the %s", ErrInvalidPlacement, s, side)
}

// ParseLayout builds a layout from section names. Empty names keep the
// defaults.
func ParseLayout(left, right string) (Layout, error) {
	l := DefaultLayout()
	if left != "" {
		l.Left = Section(left)
	}
	if right != "" {
		l.Right = Section(right)
	}
	return l, l.Validate()
}

// Validate checks both placements.
func (l Layout) Validate() error {
	if err := CheckPlacement(SideLeft, l.Left); err != nil {
		return err
	}
	return CheckPlacement(SideRight, l.Right)
}

// With returns l with side set to s.
func (l Layout) With(side Side, s Section) (Layout, error) {
	if err := CheckPlacement(side, s); err != nil {
		return l, err
	}
	if side == SideLeft {
		l.Left = s
	} else {
		l.Right = s
	}
	return l, nil
}
