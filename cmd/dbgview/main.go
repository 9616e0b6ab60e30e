// dbgview is a debugger front end that keeps editor decorations and the
// debugger panel in sync with a Debug Adapter Protocol backend.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/dbgview/internal/config"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type flags struct {
	configPath  string
	logLevel    string
	adapter     string
	address     string
	cwd         string
	stopOnEntry bool
	serve       bool
	serveAddr   string
	breaks      []string
	interactive bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:           "dbgview",
		Short:         "Debugger front end for Debug Adapter Protocol backends",
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "Path to configuration file (.toml or .yaml)")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&f.adapter, "adapter", "", "Adapter preset: go, python, node")
	pf.StringVar(&f.address, "address", "", "Connect to an adapter listening on host:port")
	pf.BoolVar(&f.serve, "serve", false, "Serve panel snapshots over websocket")
	pf.StringVar(&f.serveAddr, "serve-addr", "", "Websocket listen address")
	pf.StringSliceVarP(&f.breaks, "break", "b", nil, "Breakpoint as file:line or function name (repeatable)")
	pf.BoolVarP(&f.interactive, "interactive", "i", true, "Read debugger commands from stdin")

	launch := &cobra.Command{
		Use:   "launch [program] [-- args...]",
		Short: "Launch a program under the debugger",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load()
			if err != nil {
				return err
			}
			if len(args) > 0 {
				cfg.Adapter.Program = args[0]
				cfg.Adapter.ProgramArgs = args[1:]
			}
			if cfg.Adapter.Program == "" {
				return fmt.Errorf("no program to launch")
			}
			return run(cmd.Context(), f, cfg, startLaunch, 0)
		},
	}
	launch.Flags().StringVar(&f.cwd, "cwd", "", "Working directory of the program")
	launch.Flags().BoolVar(&f.stopOnEntry, "stop-on-entry", false, "Suspend before the first statement")

	attach := &cobra.Command{
		Use:   "attach <pid>",
		Short: "Attach to a running process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := strconv.Atoi(args[0])
			if err != nil || pid <= 0 {
				return fmt.Errorf("invalid pid %q", args[0])
			}
			cfg, err := f.load()
			if err != nil {
				return err
			}
			return run(cmd.Context(), f, cfg, startAttach, pid)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dbgview %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}

	root.AddCommand(launch, attach, versionCmd)
	return root
}

// load reads the config file and applies command-line overrides.
func (f flags) load() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.adapter != "" {
		cfg.Adapter.Type = f.adapter
	}
	if f.address != "" {
		cfg.Adapter.Address = f.address
	}
	if f.cwd != "" {
		cfg.Adapter.Cwd = f.cwd
	}
	if f.stopOnEntry {
		cfg.Adapter.StopOnEntry = true
	}
	if f.serve {
		cfg.Server.Enabled = true
	}
	if f.serveAddr != "" {
		cfg.Server.Addr = f.serveAddr
	}
	return cfg, cfg.Validate()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
