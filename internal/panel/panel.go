// Package panel composes the debugger trackers behind one façade.
//
// A rendering layer creates a Panel, activates it with a debugger.Controller
// and then reads Snapshots whenever OnChange fires. UI actions go through
// the Panel's action methods. All methods must be called on the loop.
package panel

import (
	"errors"
	"fmt"

	"github.com/dshills/dbgview/internal/breakpoints"
	"github.com/dshills/dbgview/internal/callstack"
	"github.com/dshills/dbgview/internal/config"
	"github.com/dshills/dbgview/internal/console"
	"github.com/dshills/dbgview/internal/debugger"
	"github.com/dshills/dbgview/internal/editor"
	"github.com/dshills/dbgview/internal/event"
	"github.com/dshills/dbgview/internal/logging"
	"github.com/dshills/dbgview/internal/loop"
	"github.com/dshills/dbgview/internal/notify"
	"github.com/dshills/dbgview/internal/project"
	"github.com/dshills/dbgview/internal/scope"
	"github.com/dshills/dbgview/internal/script"
	"github.com/dshills/dbgview/internal/session"
)

var (
	// ErrNotActive is returned by actions before Activate.
	ErrNotActive = errors.New("panel not active")
	// ErrDisposed is returned by Activate after Dispose.
	ErrDisposed = errors.New("panel disposed")
	// ErrNoProxy is returned when the controller has no proxy.
	ErrNoProxy = errors.New("controller has no debugger")
)

// SignSource supplies gutter signs for snapshots. editor.Memory implements it.
type SignSource interface {
	AllSigns() map[string][]editor.Sign
}

// Options configures a Panel.
type Options struct {
	Loop      *loop.Loop
	Workspace editor.Workspace
	Projects  project.Relativizer
	Notifier  notify.Notifier
	Logger    *logging.Logger
	Config    *config.Config

	// Optional.
	Signs  SignSource
	Script *script.Host
}

// Panel is the debugger panel.
type Panel struct {
	opts   Options
	cfg    *config.Config
	layout Layout
	notes  notify.Notifier
	log    *logging.Logger

	proxy    debugger.Proxy
	active   bool
	disposed bool

	session     *session.Tracker
	breakpoints *breakpoints.Synchronizer
	callstack   *callstack.Tracker
	scope       *scope.Tree
	scopeModel  string
	console     *console.Console

	subs    event.Group
	changed *event.Emitter[*Panel]
}

// New creates an inactive panel.
func New(opts Options) (*Panel, error) {
	if opts.Loop == nil {
		return nil, errors.New("panel: loop is required")
	}
	if opts.Workspace == nil {
		return nil, errors.New("panel: workspace is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Null()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NewLogNotifier(opts.Logger)
	}
	if opts.Projects == nil {
		opts.Projects = project.NewRoots()
	}
	if opts.Config == nil {
		opts.Config = config.Default()
	}

	layout, err := ParseLayout(opts.Config.Panel.Left, opts.Config.Panel.Right)
	if err != nil {
		return nil, fmt.Errorf("panel: %w", err)
	}
	p := &Panel{
		opts:    opts,
		cfg:     opts.Config,
		layout:  layout,
		notes:   opts.Notifier,
		log:     opts.Logger.WithComponent("panel"),
		changed: event.NewEmitter[*Panel]("panel.changed"),
	}
	p.applySignClasses()
	return p, nil
}

type signClassSetter interface {
	SetSignClasses(map[string]editor.SignType)
}

func (p *Panel) applySignClasses() {
	if s, ok := p.opts.Signs.(signClassSetter); ok {
		s.SetSignClasses(p.cfg.Decorations.SignClasses())
	}
}

// Activate connects the panel to the controller's debugger. Activating an
// active panel does nothing.
func (p *Panel) Activate(c debugger.Controller) error {
	if p.disposed {
		return ErrDisposed
	}
	if p.active {
		p.log.Debug("already active")
		return nil
	}
	proxy := c.Proxy()
	if proxy == nil {
		return ErrNoProxy
	}
	if h, ok := proxy.(interface{ SetErrorHandler(event.ErrorHandler) }); ok {
		h.SetErrorHandler(p.notes.ReportError)
	}
	p.proxy = proxy

	p.session = session.New(session.Options{
		Loop:      p.opts.Loop,
		Workspace: p.opts.Workspace,
		Notifier:  p.notes,
		Logger:    p.opts.Logger,
		Class:     p.cfg.Decorations.ExecutionLine,
	})
	p.breakpoints = breakpoints.New(breakpoints.Options{
		Loop:      p.opts.Loop,
		Workspace: p.opts.Workspace,
		Projects:  p.opts.Projects,
		Notifier:  p.notes,
		Logger:    p.opts.Logger,
		Classes:   breakpointClasses(p.cfg),
	})
	p.callstack = callstack.New(callstack.Options{Loop: p.opts.Loop, Notifier: p.notes, Logger: p.opts.Logger})
	p.console = console.New(console.Options{Capacity: p.cfg.Console.Capacity, Notifier: p.notes, Logger: p.opts.Logger})

	p.session.Attach(proxy)
	p.breakpoints.Attach(proxy)
	p.callstack.Attach(proxy)
	p.console.Attach(proxy)
	if err := p.attachScope(p.cfg.Scope.Model); err != nil {
		p.release()
		return err
	}
	if p.opts.Script != nil {
		p.opts.Script.Attach(proxy)
	}

	p.subs.Add(
		p.session.OnChange(func(session.State) { p.emit() }),
		p.breakpoints.OnChange(func(*breakpoints.Tree) { p.emit() }),
		p.callstack.OnChange(func([]callstack.Frame) { p.emit() }),
		p.console.OnChange(func(*console.Console) { p.emit() }),
	)
	p.active = true
	p.log.Info("activated with %s scope model", p.scopeModel)
	p.emit()
	return nil
}

// attachScope builds the variable tree for model. A backend that cannot
// list variables falls back to the push model.
func (p *Panel) attachScope(model string) error {
	provider, err := scope.NewProvider(model, p.notes)
	if err != nil {
		return err
	}
	tree := scope.New(scope.Options{Loop: p.opts.Loop, Notifier: p.notes, Logger: p.opts.Logger})
	err = tree.Attach(p.proxy, provider)
	if errors.Is(err, scope.ErrPullUnsupported) {
		p.notes.ReportWarning("Debugger cannot list variables; using scope events instead.")
		model = config.ScopeModelPush
		provider, _ = scope.NewProvider(model, p.notes)
		err = tree.Attach(p.proxy, provider)
	}
	if err != nil {
		tree.Dispose()
		return err
	}
	if p.scope != nil {
		p.scope.Dispose()
	}
	p.scope = tree
	p.scopeModel = model
	p.scope.OnChange(func(*scope.Tree) { p.emit() })

	// A model switched while stopped would otherwise stay empty until the
	// next stop.
	if r, ok := provider.(interface{ Refresh() }); ok && p.session != nil && p.session.State() == session.StateSuspended {
		r.Refresh()
	}
	return nil
}

// Dispose releases every subscription. The panel cannot be reactivated.
func (p *Panel) Dispose() {
	if p.disposed {
		return
	}
	p.release()
	p.disposed = true
	p.changed.Clear()
}

func (p *Panel) release() {
	p.subs.Dispose()
	if p.opts.Script != nil {
		p.opts.Script.Dispose()
	}
	if p.session != nil {
		p.session.Dispose()
	}
	if p.breakpoints != nil {
		p.breakpoints.Dispose()
	}
	if p.callstack != nil {
		p.callstack.Dispose()
	}
	if p.scope != nil {
		p.scope.Dispose()
	}
	if p.console != nil {
		p.console.Dispose()
	}
	p.active = false
}

// Active reports whether the panel is connected.
func (p *Panel) Active() bool {
	return p.active
}

// OnChange registers fn to run after any section changes.
func (p *Panel) OnChange(fn func(*Panel)) event.Subscription {
	return p.changed.SubscribeFunc(fn)
}

func (p *Panel) emit() {
	p.changed.Emit(p)
}

// Layout returns the current layout.
func (p *Panel) Layout() Layout {
	return p.layout
}

// SetSection places s on side.
func (p *Panel) SetSection(side Side, s Section) error {
	l, err := p.layout.With(side, s)
	if err != nil {
		return err
	}
	if l != p.layout {
		p.layout = l
		p.emit()
	}
	return nil
}

// SetLeftSection places s on the left.
func (p *Panel) SetLeftSection(s Section) error {
	return p.SetSection(SideLeft, s)
}

// SetRightSection places s on the right.
func (p *Panel) SetRightSection(s Section) error {
	return p.SetSection(SideRight, s)
}

// Apply re-applies a reloaded configuration: layout, decoration classes and
// scope model. The console capacity applies to the next activation.
func (p *Panel) Apply(cfg *config.Config) error {
	layout, err := ParseLayout(cfg.Panel.Left, cfg.Panel.Right)
	if err != nil {
		return fmt.Errorf("panel: %w", err)
	}
	p.cfg = cfg
	p.layout = layout
	p.applySignClasses()
	if p.active {
		p.session.SetClass(cfg.Decorations.ExecutionLine)
		p.breakpoints.SetClasses(breakpointClasses(cfg))
		if cfg.Scope.Model != p.scopeModel {
			if err := p.attachScope(cfg.Scope.Model); err != nil {
				return err
			}
		}
	}
	p.log.Debug("configuration applied")
	p.emit()
	return nil
}

func breakpointClasses(cfg *config.Config) breakpoints.Classes {
	return breakpoints.Classes{
		Enabled:     cfg.Decorations.Breakpoint,
		Disabled:    cfg.Decorations.BreakpointDisabled,
		Conditional: cfg.Decorations.BreakpointConditional,
	}
}

// SelectFrame selects a call-stack frame.
func (p *Panel) SelectFrame(level int) error {
	if !p.active {
		return ErrNotActive
	}
	return p.callstack.Select(level)
}

// Expand expands a variable node.
func (p *Panel) Expand(path scope.Path) error {
	if !p.active {
		return ErrNotActive
	}
	return p.scope.Expand(path)
}

// Collapse collapses a variable node.
func (p *Panel) Collapse(path scope.Path) error {
	if !p.active {
		return ErrNotActive
	}
	return p.scope.Collapse(path)
}

// RemoveBreakpoint asks the debugger to remove the breakpoint at loc.
func (p *Panel) RemoveBreakpoint(loc debugger.Location) error {
	if !p.active {
		return ErrNotActive
	}
	return p.breakpoints.RemoveRow(loc)
}

// OpenBreakpoint shows the breakpoint at loc in the editor.
func (p *Panel) OpenBreakpoint(loc debugger.Location) error {
	if !p.active {
		return ErrNotActive
	}
	return p.breakpoints.Open(loc)
}
