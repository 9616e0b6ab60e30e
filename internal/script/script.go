// Package script runs user Lua hooks on debugger events.
//
// A script defines any of the global functions on_session, on_breakpoint and
// on_output. Each receives a table describing the event. Scripts can call
// back through the dbgview module:
//
//	dbgview.notify(msg)  -- error notification
//	dbgview.warn(msg)    -- warning notification
//	dbgview.log(msg)     -- info log line
//
// Only the base, table, string and math libraries are opened. File loading
// functions are removed.
package script

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/dbgview/internal/debugger"
	"github.com/dshills/dbgview/internal/event"
	"github.com/dshills/dbgview/internal/logging"
	"github.com/dshills/dbgview/internal/notify"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = time.Second

// Hook names.
const (
	HookSession    = "on_session"
	HookBreakpoint = "on_breakpoint"
	HookOutput     = "on_output"
)

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("script host closed")
	// ErrNotAFunction is returned when a hook global is not callable.
	ErrNotAFunction = errors.New("hook is not a function")
)

// Options configures a Host.
type Options struct {
	Notifier notify.Notifier
	Logger   *logging.Logger
	Timeout  time.Duration
}

// Host owns one sandboxed Lua state.
type Host struct {
	mu      sync.Mutex
	L       *lua.LState
	closed  bool
	timeout time.Duration
	source  string

	notes notify.Notifier
	log   *logging.Logger
	subs  event.Group
}

// New creates a host with an empty script.
func New(opts Options) *Host {
	if opts.Logger == nil {
		opts.Logger = logging.Null()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Func{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	h := &Host{
		timeout: opts.Timeout,
		notes:   opts.Notifier,
		log:     opts.Logger.WithComponent("script"),
	}
	h.L = h.newState()
	return h
}

func (h *Host) newState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}

	L.SetGlobal("print", L.NewFunction(h.luaLog))
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"notify": h.luaNotify,
		"warn":   h.luaWarn,
		"log":    h.luaLog,
	})
	L.SetGlobal("dbgview", mod)
	return L
}

// LoadFile replaces the running script with the file at path.
func (h *Host) LoadFile(path string) error {
	return h.load(path, func(L *lua.LState) error { return L.DoFile(path) })
}

// LoadString replaces the running script with code.
func (h *Host) LoadString(code string) error {
	return h.load("<string>", func(L *lua.LState) error { return L.DoString(code) })
}

// load runs the script in a fresh state so hooks from an earlier script do
// not linger. The old state is kept if the new script fails.
func (h *Host) load(source string, run func(*lua.LState) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}

	L := h.newState()
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	L.SetContext(ctx)
	if err := protect(func() error { return run(L) }); err != nil {
		L.Close()
		return fmt.Errorf("load script %s: %w", source, err)
	}
	L.RemoveContext()

	h.L.Close()
	h.L = L
	h.source = source
	h.log.Info("loaded %s", source)
	return nil
}

// Source names the loaded script.
func (h *Host) Source() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.source
}

// HasHook reports whether the script defines name as a function.
func (h *Host) HasHook(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	return h.L.GetGlobal(name).Type() == lua.LTFunction
}

// Attach subscribes the hooks to p's events.
func (h *Host) Attach(p debugger.Proxy) {
	h.subs.Add(
		p.OnSessionEvent(notify.Reporting(h.notes, h.HandleSessionEvent)),
		p.OnBreakpointEvent(notify.Reporting(h.notes, h.HandleBreakpointEvent)),
		p.OnTargetEvent(notify.Reporting(h.notes, h.HandleTargetEvent)),
	)
}

// HandleSessionEvent calls on_session.
func (h *Host) HandleSessionEvent(ev debugger.SessionEvent) error {
	return h.call(HookSession, func(L *lua.LState) lua.LValue {
		t := L.NewTable()
		t.RawSetString("type", lua.LString(ev.Type))
		if ev.Reason != "" {
			t.RawSetString("reason", lua.LString(ev.Reason))
		}
		if ev.ExecutionLine != nil {
			t.RawSetString("file", lua.LString(ev.ExecutionLine.FilePath))
			t.RawSetString("line", lua.LNumber(ev.ExecutionLine.BufferRow+1))
		}
		return t
	})
}

// HandleBreakpointEvent calls on_breakpoint.
func (h *Host) HandleBreakpointEvent(ev debugger.BreakpointEvent) error {
	if ev.Breakpoint == nil {
		return debugger.Malformed("breakpoint", "missing breakpoint")
	}
	return h.call(HookBreakpoint, func(L *lua.LState) lua.LValue {
		bp := ev.Breakpoint
		t := L.NewTable()
		t.RawSetString("type", lua.LString(ev.Type))
		t.RawSetString("enabled", lua.LBool(bp.Enabled))
		if bp.Condition != "" {
			t.RawSetString("condition", lua.LString(bp.Condition))
		}
		if bp.Location.IsLine() {
			t.RawSetString("file", lua.LString(bp.Location.FilePath))
			t.RawSetString("line", lua.LNumber(bp.DisplayedLine()))
		} else {
			t.RawSetString("function", lua.LString(bp.Location.Function))
		}
		return t
	})
}

// HandleTargetEvent calls on_output with the output text.
func (h *Host) HandleTargetEvent(ev debugger.TargetEvent) error {
	if ev.Type != debugger.TargetOutput {
		return nil
	}
	return h.call(HookOutput, func(*lua.LState) lua.LValue {
		return lua.LString(ev.Message)
	})
}

// call invokes the named hook with one argument built by arg. Undefined
// hooks are skipped.
func (h *Host) call(name string, arg func(*lua.LState) lua.LValue) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}

	fn := h.L.GetGlobal(name)
	switch fn.Type() {
	case lua.LTNil:
		return nil
	case lua.LTFunction:
	default:
		return fmt.Errorf("script %s: %w (got %s)", name, ErrNotAFunction, fn.Type())
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	h.L.SetContext(ctx)
	defer h.L.RemoveContext()

	top := h.L.GetTop()
	err := protect(func() error {
		return h.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, arg(h.L))
	})
	h.L.SetTop(top)
	if err != nil {
		return fmt.Errorf("script %s: %w", name, err)
	}
	return nil
}

// Dispose unsubscribes from the proxy.
func (h *Host) Dispose() {
	h.subs.Dispose()
}

// Close unsubscribes and releases the Lua state.
func (h *Host) Close() error {
	h.Dispose()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.L.Close()
	h.closed = true
	return nil
}

func (h *Host) luaNotify(L *lua.LState) int {
	h.notes.ReportError(errors.New(L.CheckString(1)))
	return 0
}

func (h *Host) luaWarn(L *lua.LState) int {
	h.notes.ReportWarning(L.CheckString(1))
	return 0
}

func (h *Host) luaLog(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, n)
	for i := 1; i <= n; i++ {
		parts[i-1] = L.ToStringMeta(L.Get(i)).String()
	}
	h.log.Info("%s", strings.Join(parts, "\t"))
	return 0
}

func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}
