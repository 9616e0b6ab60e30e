package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/dbgview/internal/editor"
)

// Scope models.
const (
	ScopeModelPull = "pull"
	ScopeModelPush = "push"
)

// Config holds every dbgview setting.
type Config struct {
	Log         LogConfig         `toml:"log" yaml:"log"`
	Adapter     AdapterConfig     `toml:"adapter" yaml:"adapter"`
	Projects    ProjectsConfig    `toml:"projects" yaml:"projects"`
	Scope       ScopeConfig       `toml:"scope" yaml:"scope"`
	Decorations DecorationsConfig `toml:"decorations" yaml:"decorations"`
	Console     ConsoleConfig     `toml:"console" yaml:"console"`
	Server      ServerConfig      `toml:"server" yaml:"server"`
	Script      ScriptConfig      `toml:"script" yaml:"script"`
	Panel       PanelConfig       `toml:"panel" yaml:"panel"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" yaml:"level"`
	// File, if set, receives log output instead of stderr.
	File string `toml:"file" yaml:"file"`
}

// AdapterConfig selects and configures the debug adapter.
type AdapterConfig struct {
	// Type is a preset name: go, python or node.
	Type string `toml:"type" yaml:"type"`
	// Command overrides the preset's adapter executable.
	Command string   `toml:"command" yaml:"command"`
	Args    []string `toml:"args" yaml:"args"`
	// Address connects to a running adapter over TCP instead of spawning one.
	Address string `toml:"address" yaml:"address"`

	Program     string   `toml:"program" yaml:"program"`
	ProgramArgs []string `toml:"program_args" yaml:"program_args"`
	Cwd         string   `toml:"cwd" yaml:"cwd"`
	StopOnEntry bool     `toml:"stop_on_entry" yaml:"stop_on_entry"`

	// RequestTimeout bounds every adapter request.
	RequestTimeout Duration `toml:"request_timeout" yaml:"request_timeout"`
}

// ProjectsConfig lists the project roots used to group breakpoints.
type ProjectsConfig struct {
	Roots []string `toml:"roots" yaml:"roots"`
}

// ScopeConfig configures the variable tree.
type ScopeConfig struct {
	// Model is "pull" (refetch on suspend) or "push" (scope events).
	Model string `toml:"model" yaml:"model"`
}

// DecorationsConfig holds the marker decoration classes.
type DecorationsConfig struct {
	ExecutionLine         string `toml:"execution_line" yaml:"execution_line"`
	Breakpoint            string `toml:"breakpoint" yaml:"breakpoint"`
	BreakpointDisabled    string `toml:"breakpoint_disabled" yaml:"breakpoint_disabled"`
	BreakpointConditional string `toml:"breakpoint_conditional" yaml:"breakpoint_conditional"`
}

// SignClasses maps the configured classes to gutter signs.
func (d DecorationsConfig) SignClasses() map[string]editor.SignType {
	return map[string]editor.SignType{
		d.ExecutionLine:         editor.SignExecution,
		d.Breakpoint:            editor.SignBreakpoint,
		d.BreakpointDisabled:    editor.SignBreakpointDisabled,
		d.BreakpointConditional: editor.SignBreakpointConditional,
	}
}

// ConsoleConfig configures the program output console.
type ConsoleConfig struct {
	// Capacity is the number of bytes of output kept.
	Capacity int `toml:"capacity" yaml:"capacity"`
}

// ServerConfig configures the websocket view server.
type ServerConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Addr    string `toml:"addr" yaml:"addr"`
	// PushInterval throttles snapshot broadcasts.
	PushInterval Duration `toml:"push_interval" yaml:"push_interval"`
}

// ScriptConfig configures user Lua hooks.
type ScriptConfig struct {
	// Path to a Lua file defining on_session, on_breakpoint or on_output.
	Path string `toml:"path" yaml:"path"`
}

// PanelConfig configures the panel layout.
type PanelConfig struct {
	Left  string `toml:"left" yaml:"left"`
	Right string `toml:"right" yaml:"right"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Adapter: AdapterConfig{
			Type:           "go",
			RequestTimeout: Duration(10 * time.Second),
		},
		Scope: ScopeConfig{Model: ScopeModelPull},
		Decorations: DecorationsConfig{
			ExecutionLine:         editor.ClassExecutionLine,
			Breakpoint:            editor.ClassBreakpoint,
			BreakpointDisabled:    editor.ClassBreakpointDisabled,
			BreakpointConditional: editor.ClassBreakpointConditional,
		},
		Console: ConsoleConfig{Capacity: 64 * 1024},
		Server: ServerConfig{
			Addr:         "127.0.0.1:7391",
			PushInterval: Duration(50 * time.Millisecond),
		},
		Panel: PanelConfig{Left: "scope", Right: "call-stack"},
	}
}

// Validate checks every setting and returns the first failure.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ValidationError{Path: "log.level", Message: "must be debug, info, warn or error", Value: c.Log.Level}
	}

	if c.Adapter.Address == "" && c.Adapter.Type == "" && c.Adapter.Command == "" {
		return &ValidationError{Path: "adapter.type", Message: "type, command or address is required", Value: ""}
	}
	if c.Adapter.RequestTimeout < 0 {
		return &ValidationError{Path: "adapter.request_timeout", Message: "must not be negative", Value: c.Adapter.RequestTimeout}
	}

	if c.Scope.Model != ScopeModelPull && c.Scope.Model != ScopeModelPush {
		return &ValidationError{Path: "scope.model", Message: "must be pull or push", Value: c.Scope.Model}
	}

	classes := map[string]string{
		"decorations.execution_line":         c.Decorations.ExecutionLine,
		"decorations.breakpoint":             c.Decorations.Breakpoint,
		"decorations.breakpoint_disabled":    c.Decorations.BreakpointDisabled,
		"decorations.breakpoint_conditional": c.Decorations.BreakpointConditional,
	}
	seen := make(map[string]string, len(classes))
	for path, class := range classes {
		if strings.TrimSpace(class) == "" {
			return &ValidationError{Path: path, Message: "must not be empty", Value: class}
		}
		if other, dup := seen[class]; dup {
			return &ValidationError{Path: path, Message: "duplicates " + other, Value: class}
		}
		seen[class] = path
	}

	if c.Console.Capacity <= 0 {
		return &ValidationError{Path: "console.capacity", Message: "must be positive", Value: c.Console.Capacity}
	}

	if c.Server.Enabled && c.Server.Addr == "" {
		return &ValidationError{Path: "server.addr", Message: "required when server is enabled", Value: ""}
	}
	return nil
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Adapter.Args = append([]string(nil), c.Adapter.Args...)
	cp.Adapter.ProgramArgs = append([]string(nil), c.Adapter.ProgramArgs...)
	cp.Projects.Roots = append([]string(nil), c.Projects.Roots...)
	return &cp
}

// Duration is a time.Duration written as a string like "500ms" in files.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText encodes the duration as a string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes strings like "2s".
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML decodes a scalar duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a string", node.Line)
	}
	return d.UnmarshalText([]byte(node.Value))
}
