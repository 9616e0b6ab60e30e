package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/peterh/liner"

	"github.com/dshills/dbgview/internal/callstack"
	"github.com/dshills/dbgview/internal/debugger"
	"github.com/dshills/dbgview/internal/loop"
	"github.com/dshills/dbgview/internal/panel"
	"github.com/dshills/dbgview/internal/scope"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want command
		ok   bool
	}{
		{"", command{}, false},
		{"   ", command{}, false},
		{"c", command{name: "continue"}, true},
		{"b main.go:12", command{name: "break", arg: "main.go:12"}, true},
		{"frame  2 ", command{name: "frame", arg: "2"}, true},
		{"bogus x", command{name: "bogus", arg: "x"}, true},
	}
	for _, tt := range tests {
		got, ok := parseCommand(tt.line)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseCommand(%q) = %+v %v, want %+v %v", tt.line, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseLocation(t *testing.T) {
	abs, err := filepath.Abs("main.go")
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		in      string
		want    debugger.Location
		wantErr bool
	}{
		{"main.go:12", debugger.LineLocation(abs, 11), false},
		{"main.run", debugger.FunctionLocation("main.run"), false},
		{"pkg.(*T).M", debugger.FunctionLocation("pkg.(*T).M"), false},
		{"main.go:0", debugger.Location{}, true},
		{"", debugger.Location{}, true},
	}
	for _, tt := range tests {
		got, err := parseLocation(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLocation(%q) error = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseLocation(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestFindPath(t *testing.T) {
	nodes := []scope.NodeView{
		{ID: "0/Locals", Children: []scope.NodeView{
			{ID: "0/Locals/cfg", Children: []scope.NodeView{{ID: "0/Locals/cfg/Name"}}},
		}},
	}
	path, ok := findPath(nodes, "0/Locals/cfg/Name")
	if !ok || len(path) != 3 || path[1] != "0/Locals/cfg" {
		t.Errorf("findPath = %v %v", path, ok)
	}
	if _, ok := findPath(nodes, "missing"); ok {
		t.Error("found a missing node")
	}
}

func TestPrintSnapshot(t *testing.T) {
	snap := panel.Snapshot{
		CallStack: []callstack.Frame{
			{StackFrame: debugger.StackFrame{Level: 0, Function: "main.work", FilePath: "/p/a.go", BufferRow: 4}, Selected: true},
			{StackFrame: debugger.StackFrame{Level: 1, Function: "runtime.goexit", Address: "0x10"}, Disabled: true},
		},
		Scope: []scope.NodeView{
			{ID: "l", Name: "Locals", HasChildren: true, Expanded: true, Children: []scope.NodeView{
				{ID: "l/n", Name: "n", Value: "3", HasValue: true, Type: "int"},
			}},
		},
	}

	var buf bytes.Buffer
	printStack(&buf, snap)
	if got := buf.String(); !strings.Contains(got, "*  0 main.work /p/a.go:5") || !strings.Contains(got, "runtime.goexit 0x10") {
		t.Errorf("stack output:\n%s", got)
	}

	buf.Reset()
	printScope(&buf, snap)
	if got := buf.String(); !strings.Contains(got, "- Locals  [l]") || !strings.Contains(got, "    n = 3 (int)  [l/n]") {
		t.Errorf("scope output:\n%s", got)
	}

	buf.Reset()
	printScope(&buf, panel.Snapshot{})
	if strings.TrimSpace(buf.String()) != "no variables" {
		t.Errorf("empty scope output = %q", buf.String())
	}
}

type scriptedLines struct {
	lines   []string
	end     error
	history []string
	closed  bool
}

func (s *scriptedLines) Prompt(string) (string, error) {
	if len(s.lines) == 0 {
		return "", s.end
	}
	l := s.lines[0]
	s.lines = s.lines[1:]
	return l, nil
}

func (s *scriptedLines) AppendHistory(item string) { s.history = append(s.history, item) }

func (s *scriptedLines) Close() error {
	s.closed = true
	return nil
}

func TestPromptRun(t *testing.T) {
	tests := []struct {
		name    string
		lines   []string
		end     error
		wantErr error
		history []string
		output  string
	}{
		{"quit", []string{"help", "  ", "q"}, io.EOF, nil, []string{"help", "q"}, "step over"},
		{"end of input", []string{"bogus"}, io.EOF, io.EOF, []string{"bogus"}, `unknown command "bogus"`},
		{"interrupt", nil, liner.ErrPromptAborted, nil, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			lines := &scriptedLines{lines: tt.lines, end: tt.end}
			p := &prompt{app: &app{loop: loop.New()}, line: lines, out: &out}

			err := p.run(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("run error = %v, want %v", err, tt.wantErr)
			}
			if !slices.Equal(lines.history, tt.history) {
				t.Errorf("history = %q, want %q", lines.history, tt.history)
			}
			if !strings.Contains(out.String(), tt.output) {
				t.Errorf("output %q missing %q", out.String(), tt.output)
			}
			if !lines.closed {
				t.Error("line reader not closed")
			}
		})
	}
}

func TestPromptRunPlainInput(t *testing.T) {
	var out bytes.Buffer
	p := newPrompt(&app{loop: loop.New()}, strings.NewReader("help\nquit\n"), &out)
	if err := p.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "commands:") {
		t.Errorf("help not printed: %q", out.String())
	}
}
