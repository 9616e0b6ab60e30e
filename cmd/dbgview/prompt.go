package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/peterh/liner"

	"github.com/dshills/dbgview/internal/debugger"
	"github.com/dshills/dbgview/internal/panel"
	"github.com/dshills/dbgview/internal/scope"
)

var errQuit = errors.New("quit")

const (
	promptText  = "(dbg) "
	historyFile = ".dbgview_history"
)

const promptHelp = `commands:
  c, continue        resume execution
  n, next            step over
  s, step            step into
  o, out             step out
  p, pause           interrupt the program
  b, break <loc>     add a breakpoint (file:line or function)
  d, delete <loc>    remove a breakpoint
  bt, stack          print the call stack
  f, frame <level>   select a stack frame
  v, vars            print the variable tree
  x, expand <id>     expand a variable
  z, collapse <id>   collapse a variable
  q, quit            end the session`

// lineReader is the subset of *liner.State the prompt uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

// scanReader reads plain lines without editing. It backs scripted input.
type scanReader struct {
	sc *bufio.Scanner
}

func (r *scanReader) Prompt(string) (string, error) {
	if r.sc.Scan() {
		return r.sc.Text(), nil
	}
	if err := r.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *scanReader) AppendHistory(string) {}

func (r *scanReader) Close() error { return nil }

// prompt reads debugger commands line by line and prints session events.
type prompt struct {
	app     *app
	line    lineReader
	history string

	mu  sync.Mutex
	out io.Writer
}

// newTerminalPrompt edits lines on the controlling terminal and keeps
// history in the user's home directory.
func newTerminalPrompt(a *app) *prompt {
	st := liner.NewLiner()
	st.SetCtrlCAborts(true)

	p := &prompt{app: a, line: st, out: os.Stdout}
	if home, err := os.UserHomeDir(); err == nil {
		p.history = filepath.Join(home, historyFile)
		if f, err := os.Open(p.history); err == nil {
			_, _ = st.ReadHistory(f)
			f.Close()
		}
	}
	return p
}

func newPrompt(a *app, in io.Reader, out io.Writer) *prompt {
	return &prompt{app: a, line: &scanReader{sc: bufio.NewScanner(in)}, out: out}
}

func (p *prompt) close() {
	if st, ok := p.line.(*liner.State); ok && p.history != "" {
		if f, err := os.Create(p.history); err == nil {
			if _, err := st.WriteHistory(f); err != nil {
				p.app.log.Warn("write history: %v", err)
			}
			f.Close()
		}
	}
	_ = p.line.Close()
}

func (p *prompt) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

// run blocks until stdin ends, quit is entered or ctx is cancelled.
func (p *prompt) run(ctx context.Context) error {
	defer p.close()
	_ = p.app.loop.Post(p.subscribe)

	// Prompt blocks without a context, so lines are read on their own
	// goroutine. next asks for one line at a time.
	next := make(chan struct{})
	lines := make(chan string, 1)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		for range next {
			l, err := p.line.Prompt(promptText)
			if err != nil {
				readErr <- err
				return
			}
			l = strings.TrimSpace(l)
			if l != "" {
				p.line.AppendHistory(l)
			}
			lines <- l
		}
	}()
	defer close(next)

	for {
		select {
		case next <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				err := <-readErr
				if errors.Is(err, liner.ErrPromptAborted) {
					return nil
				}
				return err
			}
			err := p.execute(ctx, line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				p.printf("error: %v\n", err)
			}
		}
	}
}

// subscribe runs on the loop.
func (p *prompt) subscribe() {
	px := p.app.proxy
	px.OnSessionEvent(func(ev debugger.SessionEvent) error {
		switch ev.Type {
		case debugger.SessionSuspended:
			if ev.ExecutionLine == nil {
				return nil
			}
			p.printf("stopped (%s) at %s:%d\n", ev.Reason, ev.ExecutionLine.FilePath, ev.ExecutionLine.BufferRow+1)
		case debugger.SessionTerminated:
			p.printf("session ended (%s)\n", ev.Reason)
		}
		return nil
	})
	px.OnTargetEvent(func(ev debugger.TargetEvent) error {
		p.printf("%s", ev.Message)
		return nil
	})
}

type command struct {
	name string
	arg  string
}

var aliases = map[string]string{
	"c": "continue", "n": "next", "s": "step", "o": "out", "p": "pause",
	"b": "break", "d": "delete", "bt": "stack", "f": "frame", "v": "vars",
	"x": "expand", "z": "collapse", "q": "quit", "h": "help", "?": "help",
}

// parseCommand splits a line into a canonical command name and argument.
func parseCommand(line string) (command, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{}, false
	}
	name, arg, _ := strings.Cut(line, " ")
	if full, ok := aliases[name]; ok {
		name = full
	}
	return command{name: name, arg: strings.TrimSpace(arg)}, true
}

// parseLocation reads "file:line" (1-based) or a function name.
func parseLocation(s string) (debugger.Location, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return debugger.Location{}, fmt.Errorf("empty breakpoint location")
	}
	if i := strings.LastIndex(s, ":"); i > 0 {
		file, line := s[:i], s[i+1:]
		if n, err := strconv.Atoi(line); err == nil {
			if n < 1 {
				return debugger.Location{}, fmt.Errorf("invalid line %d in %q", n, s)
			}
			abs, err := filepath.Abs(file)
			if err != nil {
				return debugger.Location{}, err
			}
			return debugger.LineLocation(abs, n-1), nil
		}
	}
	return debugger.FunctionLocation(s), nil
}

// findPath returns the tree path of the node with id.
func findPath(nodes []scope.NodeView, id string) (scope.Path, bool) {
	for _, n := range nodes {
		if n.ID == id {
			return scope.Path{n.ID}, true
		}
		if sub, ok := findPath(n.Children, id); ok {
			return append(scope.Path{n.ID}, sub...), true
		}
	}
	return nil, false
}

func (p *prompt) execute(ctx context.Context, line string) error {
	cmd, ok := parseCommand(line)
	if !ok {
		return nil
	}
	px := p.app.proxy
	switch cmd.name {
	case "continue":
		return px.Continue(ctx)
	case "next":
		return px.Next(ctx)
	case "step":
		return px.StepIn(ctx)
	case "out":
		return px.StepOut(ctx)
	case "pause":
		return px.Pause(ctx)
	case "break":
		loc, err := parseLocation(cmd.arg)
		if err != nil {
			return err
		}
		return p.app.onLoop(func() error {
			px.AddBreakpoint(debugger.NewBreakpoint(loc))
			return nil
		})
	case "delete":
		loc, err := parseLocation(cmd.arg)
		if err != nil {
			return err
		}
		return p.app.onLoop(func() error { return p.app.panel.RemoveBreakpoint(loc) })
	case "frame":
		level, err := strconv.Atoi(cmd.arg)
		if err != nil {
			return fmt.Errorf("invalid frame level %q", cmd.arg)
		}
		return p.app.onLoop(func() error { return p.app.panel.SelectFrame(level) })
	case "expand", "collapse":
		return p.app.onLoop(func() error {
			path, ok := findPath(p.app.panel.Snapshot().Scope, cmd.arg)
			if !ok {
				return fmt.Errorf("no variable %q", cmd.arg)
			}
			if cmd.name == "expand" {
				return p.app.panel.Expand(path)
			}
			return p.app.panel.Collapse(path)
		})
	case "stack":
		return p.printSnapshot(printStack)
	case "vars":
		return p.printSnapshot(printScope)
	case "help":
		p.printf("%s\n", promptHelp)
		return nil
	case "quit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q (try help)", cmd.name)
	}
}

func (p *prompt) printSnapshot(render func(io.Writer, panel.Snapshot)) error {
	var snap panel.Snapshot
	if err := p.app.onLoop(func() error {
		snap = p.app.panel.Snapshot()
		return nil
	}); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	render(p.out, snap)
	return nil
}

func printStack(w io.Writer, snap panel.Snapshot) {
	if len(snap.CallStack) == 0 {
		fmt.Fprintln(w, "no stack")
		return
	}
	for _, f := range snap.CallStack {
		mark := " "
		if f.Selected {
			mark = "*"
		}
		where := f.Address
		if f.Navigable() {
			where = fmt.Sprintf("%s:%d", f.FilePath, f.BufferRow+1)
		}
		fmt.Fprintf(w, "%s %2d %s %s\n", mark, f.Level, f.Function, where)
	}
}

func printScope(w io.Writer, snap panel.Snapshot) {
	if len(snap.Scope) == 0 {
		fmt.Fprintln(w, "no variables")
		return
	}
	printNodes(w, snap.Scope, 0)
}

func printNodes(w io.Writer, nodes []scope.NodeView, depth int) {
	for _, n := range nodes {
		marker := " "
		switch {
		case n.Loading:
			marker = "…"
		case n.HasChildren && n.Expanded:
			marker = "-"
		case n.HasChildren:
			marker = "+"
		}
		line := fmt.Sprintf("%s%s %s", strings.Repeat("  ", depth), marker, n.Name)
		if n.HasValue {
			line += " = " + n.Value
		}
		if n.Type != "" {
			line += " (" + n.Type + ")"
		}
		fmt.Fprintf(w, "%s  [%s]\n", line, n.ID)
		printNodes(w, n.Children, depth+1)
	}
}
