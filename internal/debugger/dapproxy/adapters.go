package dapproxy

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
)

// Preset describes how to start and launch a known debug adapter.
type Preset struct {
	Name      string
	AdapterID string
	Command   string
	Args      []string

	// launchArgs builds the launch request arguments.
	launchArgs func(LaunchConfig) map[string]any
}

// LaunchConfig is what to debug.
type LaunchConfig struct {
	Program     string
	Args        []string
	Cwd         string
	StopOnEntry bool
}

var presets = map[string]Preset{
	"go": {
		Name:      "Delve",
		AdapterID: "go",
		Command:   "dlv",
		Args:      []string{"dap"},
		launchArgs: func(lc LaunchConfig) map[string]any {
			return map[string]any{"mode": "debug", "stackTraceDepth": 50}
		},
	},
	"python": {
		Name:      "debugpy",
		AdapterID: "python",
		Command:   "python3",
		Args:      []string{"-m", "debugpy.adapter"},
		launchArgs: func(lc LaunchConfig) map[string]any {
			return map[string]any{"console": "internalConsole", "justMyCode": true}
		},
	},
	"node": {
		Name:      "js-debug",
		AdapterID: "pwa-node",
		Command:   "js-debug-adapter",
		launchArgs: func(lc LaunchConfig) map[string]any {
			return map[string]any{"type": "pwa-node", "console": "internalConsole"}
		},
	},
}

// LookupPreset returns the preset for an adapter type: go, python or node.
func LookupPreset(name string) (Preset, error) {
	p, ok := presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown adapter type %q (known: %v)", name, PresetNames())
	}
	return p, nil
}

// PresetNames lists the known adapter types.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Cmd builds the adapter command. command and args override the preset's
// when set.
func (p Preset) Cmd(command string, args []string, cwd string) *exec.Cmd {
	if command == "" {
		command = p.Command
	}
	if len(args) == 0 {
		args = p.Args
	}
	cmd := exec.Command(command, args...)
	cmd.Dir = cwd
	return cmd
}

// LaunchArguments encodes the launch request arguments for lc.
func (p Preset) LaunchArguments(lc LaunchConfig) (json.RawMessage, error) {
	args := map[string]any{}
	if p.launchArgs != nil {
		args = p.launchArgs(lc)
	}
	args["request"] = "launch"
	args["program"] = lc.Program
	args["stopOnEntry"] = lc.StopOnEntry
	if len(lc.Args) > 0 {
		args["args"] = lc.Args
	}
	if lc.Cwd != "" {
		args["cwd"] = lc.Cwd
	}
	return json.Marshal(args)
}

// AttachArguments encodes attach request arguments for a process.
func (p Preset) AttachArguments(pid int) (json.RawMessage, error) {
	args := map[string]any{"request": "attach"}
	if p.AdapterID == "go" {
		args["mode"] = "local"
	}
	if pid > 0 {
		args["processId"] = pid
	}
	return json.Marshal(args)
}
