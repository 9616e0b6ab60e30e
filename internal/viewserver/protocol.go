package viewserver

import (
	"errors"
	"fmt"

	"github.com/dshills/dbgview/internal/debugger"
	"github.com/dshills/dbgview/internal/panel"
	"github.com/dshills/dbgview/internal/scope"
)

// CommandName names a UI command.
type CommandName string

// Commands accepted from renderers.
const (
	CmdSelectFrame      CommandName = "select-frame"
	CmdExpand           CommandName = "expand"
	CmdCollapse         CommandName = "collapse"
	CmdRemoveBreakpoint CommandName = "remove-breakpoint"
	CmdOpenBreakpoint   CommandName = "open-breakpoint"
	CmdSetSection       CommandName = "set-section"
)

var (
	// ErrUnknownCommand is returned for an unrecognized command name.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrMissingArgument is returned when a command lacks a required field.
	ErrMissingArgument = errors.New("missing argument")
)

// Command is a UI action sent by a renderer.
type Command struct {
	ID   string      `json:"id,omitempty"`
	Name CommandName `json:"name"`

	Level    *int               `json:"level,omitempty"`
	Path     []string           `json:"path,omitempty"`
	Location *debugger.Location `json:"location,omitempty"`
	Side     string             `json:"side,omitempty"`
	Section  string             `json:"section,omitempty"`
}

// MessageType tags outgoing messages.
type MessageType string

// Outgoing message types.
const (
	MsgSnapshot MessageType = "snapshot"
	MsgResult   MessageType = "result"
)

// Message is sent to renderers.
type Message struct {
	Type     MessageType     `json:"type"`
	Snapshot *panel.Snapshot `json:"snapshot,omitempty"`

	// Set on results.
	ID    string `json:"id,omitempty"`
	OK    bool   `json:"ok,omitempty"`
	Error string `json:"error,omitempty"`
}

// Execute applies cmd to p. It must run on the loop.
func Execute(p *panel.Panel, cmd Command) error {
	switch cmd.Name {
	case CmdSelectFrame:
		if cmd.Level == nil {
			return fmt.Errorf("%s: %w: level", cmd.Name, ErrMissingArgument)
		}
		return p.SelectFrame(*cmd.Level)
	case CmdExpand, CmdCollapse:
		if len(cmd.Path) == 0 {
			return fmt.Errorf("%s: %w: path", cmd.Name, ErrMissingArgument)
		}
		if cmd.Name == CmdExpand {
			return p.Expand(scope.Path(cmd.Path))
		}
		return p.Collapse(scope.Path(cmd.Path))
	case CmdRemoveBreakpoint, CmdOpenBreakpoint:
		if cmd.Location == nil {
			return fmt.Errorf("%s: %w: location", cmd.Name, ErrMissingArgument)
		}
		if cmd.Name == CmdRemoveBreakpoint {
			return p.RemoveBreakpoint(*cmd.Location)
		}
		return p.OpenBreakpoint(*cmd.Location)
	case CmdSetSection:
		if cmd.Side == "" || cmd.Section == "" {
			return fmt.Errorf("%s: %w: side and section", cmd.Name, ErrMissingArgument)
		}
		return p.SetSection(panel.Side(cmd.Side), panel.Section(cmd.Section))
	default:
		return fmt.Errorf("%w %q", ErrUnknownCommand, cmd.Name)
	}
}
