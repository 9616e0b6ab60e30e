package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dshills/dbgview/internal/config"
	"github.com/dshills/dbgview/internal/debugger"
	"github.com/dshills/dbgview/internal/debugger/dapproxy"
	"github.com/dshills/dbgview/internal/editor"
	"github.com/dshills/dbgview/internal/logging"
	"github.com/dshills/dbgview/internal/loop"
	"github.com/dshills/dbgview/internal/notify"
	"github.com/dshills/dbgview/internal/panel"
	"github.com/dshills/dbgview/internal/project"
	"github.com/dshills/dbgview/internal/script"
	"github.com/dshills/dbgview/internal/viewserver"
)

type startMode int

const (
	startLaunch startMode = iota
	startAttach
)

// app holds the wired components of one debugging session.
type app struct {
	cfg     *config.Config
	log     *logging.Logger
	logFile io.Closer
	loop    *loop.Loop
	notes   notify.Notifier
	editor  *editor.Memory
	panel   *panel.Panel
	proxy   *dapproxy.Proxy
	script  *script.Host
	server  *viewserver.Server
	watcher *config.Watcher
}

func run(parent context.Context, f flags, cfg *config.Config, mode startMode, pid int) error {
	ctx, cancel := signalContext(parent)
	defer cancel()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.shutdown()

	loopDone := make(chan error, 1)
	go func() { loopDone <- a.loop.Run(ctx) }()

	if err := a.activate(f.breaks); err != nil {
		return err
	}
	if f.configPath != "" {
		a.watch(f.configPath)
	}
	if cfg.Server.Enabled {
		a.serve(ctx)
	}

	sessionEnded := make(chan struct{})
	var endOnce sync.Once
	_ = a.loop.Post(func() {
		a.proxy.OnSessionEvent(func(ev debugger.SessionEvent) error {
			if ev.Type == debugger.SessionTerminated {
				endOnce.Do(func() { close(sessionEnded) })
			}
			return nil
		})
	})

	preset, err := a.preset()
	if err != nil {
		return err
	}
	startCtx, startCancel := context.WithTimeout(ctx, 30*time.Second)
	defer startCancel()
	switch mode {
	case startAttach:
		err = a.proxy.Attach(startCtx, preset, pid)
	default:
		err = a.proxy.Launch(startCtx, preset, dapproxy.LaunchConfig{
			Program:     cfg.Adapter.Program,
			Args:        cfg.Adapter.ProgramArgs,
			Cwd:         cfg.Adapter.Cwd,
			StopOnEntry: cfg.Adapter.StopOnEntry,
		})
	}
	if err != nil {
		return fmt.Errorf("start %s session: %w", preset.Name, err)
	}

	if f.interactive {
		go func() {
			if err := newTerminalPrompt(a).run(ctx); err != nil {
				a.log.Debug("command input ended: %v", err)
			}
			cancel()
		}()
	}

	select {
	case <-ctx.Done():
	case <-sessionEnded:
	case err := <-loopDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(cfg.Log.Level)
	if cfg.Log.File != "" {
		file, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logCfg.Output = file
		a.logFile = file
	}
	a.log = logging.New(logCfg)
	a.notes = notify.NewLogNotifier(a.log)

	a.loop = loop.New(loop.WithPanicHandler(func(v any, stack []byte) {
		a.log.Error("panic on loop: %v\n%s", v, stack)
	}))
	a.editor = editor.NewMemory(editor.OSFileSystem{}, editor.WithSignClasses(cfg.Decorations.SignClasses()))

	if cfg.Script.Path != "" {
		a.script = script.New(script.Options{Notifier: a.notes, Logger: a.log})
		if err := a.script.LoadFile(cfg.Script.Path); err != nil {
			return nil, err
		}
	}

	t, err := a.transport()
	if err != nil {
		return nil, err
	}
	a.proxy = dapproxy.New(t, dapproxy.Options{
		Loop:          a.loop,
		Logger:        a.log,
		Timeout:       cfg.Adapter.RequestTimeout.Std(),
		PushVariables: cfg.Scope.Model == config.ScopeModelPush,
	})

	a.panel, err = panel.New(panel.Options{
		Loop:      a.loop,
		Workspace: a.editor,
		Projects:  project.NewRoots(cfg.Projects.Roots...),
		Notifier:  a.notes,
		Logger:    a.log,
		Config:    cfg,
		Signs:     a.editor,
		Script:    a.script,
	})
	if err != nil {
		_ = a.proxy.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) preset() (dapproxy.Preset, error) {
	preset, err := dapproxy.LookupPreset(a.cfg.Adapter.Type)
	if err != nil {
		return dapproxy.Preset{}, err
	}
	if a.cfg.Adapter.Command != "" {
		preset.Command = a.cfg.Adapter.Command
		preset.Args = a.cfg.Adapter.Args
	}
	return preset, nil
}

// transport dials the configured address or spawns the adapter.
func (a *app) transport() (dapproxy.Transport, error) {
	if a.cfg.Adapter.Address != "" {
		return dapproxy.DialTransport(a.cfg.Adapter.Address, a.cfg.Adapter.RequestTimeout.Std())
	}
	preset, err := a.preset()
	if err != nil {
		return nil, err
	}
	cmd := preset.Cmd(preset.Command, preset.Args, a.cfg.Adapter.Cwd)
	cmd.Stderr = logWriter{a.log.WithComponent("adapter")}
	return dapproxy.NewStdioTransport(cmd)
}

// activate attaches the panel and registers the initial breakpoints.
func (a *app) activate(breaks []string) error {
	locs := make([]debugger.Location, 0, len(breaks))
	for _, b := range breaks {
		loc, err := parseLocation(b)
		if err != nil {
			return err
		}
		locs = append(locs, loc)
	}
	return a.onLoop(func() error {
		if err := a.panel.Activate(debugger.StaticController(a.proxy)); err != nil {
			return err
		}
		for _, loc := range locs {
			a.proxy.AddBreakpoint(debugger.NewBreakpoint(loc))
		}
		return nil
	})
}

// watch reapplies the config file whenever it changes.
func (a *app) watch(path string) {
	w, err := config.NewWatcher(path, func(cfg *config.Config) {
		_ = a.loop.Post(func() { a.reconfigure(cfg) })
	}, config.WithErrorHandler(func(err error) {
		a.log.Warn("config reload: %v", err)
	}), config.WithLookup(os.LookupEnv))
	if err != nil {
		a.log.Warn("not watching %s: %v", path, err)
		return
	}
	a.watcher = w
}

// reconfigure runs on the loop.
func (a *app) reconfigure(cfg *config.Config) {
	a.log.SetLevel(logging.ParseLevel(cfg.Log.Level))
	if err := a.panel.Apply(cfg); err != nil {
		a.notes.ReportError(err)
	}
	if a.script != nil && cfg.Script.Path != "" && cfg.Script.Path != a.cfg.Script.Path {
		if err := a.script.LoadFile(cfg.Script.Path); err != nil {
			a.notes.ReportError(err)
		}
	}
	a.cfg = cfg
	a.log.Info("configuration reloaded")
}

func (a *app) serve(ctx context.Context) {
	a.server = viewserver.New(viewserver.Options{
		Loop:         a.loop,
		Panel:        a.panel,
		Logger:       a.log,
		PushInterval: a.cfg.Server.PushInterval.Std(),
	})
	_ = a.loop.Post(a.server.Start)
	go func() {
		if err := a.server.ListenAndServe(ctx, a.cfg.Server.Addr); err != nil {
			a.notes.ReportError(fmt.Errorf("view server: %w", err))
		}
	}()
}

// onLoop runs fn on the loop and waits for its result.
func (a *app) onLoop(fn func() error) error {
	done := make(chan error, 1)
	if err := a.loop.Post(func() { done <- fn() }); err != nil {
		return err
	}
	return <-done
}

func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.proxy.Terminate(ctx); err != nil {
		a.log.Debug("terminate: %v", err)
	}
	if a.server != nil {
		_ = a.server.Close()
	}
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	a.loop.Stop()
	if a.script != nil {
		_ = a.script.Close()
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

// logWriter forwards adapter stderr to the log.
type logWriter struct {
	log *logging.Logger
}

func (w logWriter) Write(p []byte) (int, error) {
	w.log.Debug("%s", p)
	return len(p), nil
}
