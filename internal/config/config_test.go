package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestDefault_Validates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "dbgview.toml", `
[log]
level = "debug"

[adapter]
type = "python"
program = "app.py"
request_timeout = "2s"

[projects]
roots = ["/work/app"]

[scope]
model = "push"

[panel]
right = "breakpoints"
`)

	cfg, err := LoadWithEnv(path, noEnv)
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Adapter.Type != "python" || cfg.Adapter.Program != "app.py" {
		t.Errorf("unexpected values: %+v", cfg)
	}
	if cfg.Adapter.RequestTimeout.Std() != 2*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.Adapter.RequestTimeout)
	}
	if cfg.Scope.Model != ScopeModelPush || cfg.Panel.Right != "breakpoints" || cfg.Panel.Left != "scope" {
		t.Errorf("unexpected scope/panel: %+v %+v", cfg.Scope, cfg.Panel)
	}
	if len(cfg.Projects.Roots) != 1 || cfg.Projects.Roots[0] != "/work/app" {
		t.Errorf("Roots = %v", cfg.Projects.Roots)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "dbgview.yaml", `
adapter:
  type: node
  request_timeout: 750ms
console:
  capacity: 1024
decorations:
  execution_line: my-exec
`)

	cfg, err := LoadWithEnv(path, noEnv)
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}
	if cfg.Adapter.Type != "node" || cfg.Console.Capacity != 1024 {
		t.Errorf("unexpected values: %+v", cfg)
	}
	if cfg.Adapter.RequestTimeout.Std() != 750*time.Millisecond {
		t.Errorf("RequestTimeout = %v", cfg.Adapter.RequestTimeout)
	}
	if cfg.Decorations.ExecutionLine != "my-exec" || cfg.Decorations.Breakpoint == "" {
		t.Errorf("Decorations = %+v", cfg.Decorations)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		file   string
		body   string
		target error
	}{
		{"unknown toml key", "a.toml", "[log]\nverbosity = 3\n", nil},
		{"bad toml", "b.toml", "[log\n", nil},
		{"unknown yaml key", "c.yaml", "log:\n  verbosity: 3\n", nil},
		{"bad scope model", "d.toml", "[scope]\nmodel = \"poll\"\n", ErrValidationFailed},
		{"bad level", "e.yml", "log:\n  level: loud\n", ErrValidationFailed},
		{"duplicate classes", "f.toml", "[decorations]\nbreakpoint = \"debugger-execution-line\"\n", ErrValidationFailed},
		{"unsupported format", "g.json", "{}", ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.file, tt.body)
			_, err := LoadWithEnv(path, noEnv)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("expected %v, got %v", tt.target, err)
			}
			if tt.target == nil {
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Errorf("expected ParseError, got %T: %v", err, err)
				}
			}
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadWithEnv(filepath.Join(t.TempDir(), "none.toml"), noEnv)
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}
	if cfg.Scope.Model != ScopeModelPull {
		t.Errorf("Scope.Model = %q", cfg.Scope.Model)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := ApplyEnv(cfg, envMap(map[string]string{
		"DBGVIEW_LOG_LEVEL":        "warn",
		"DBGVIEW_SCOPE_MODEL":      "PUSH",
		"DBGVIEW_SERVER_ENABLED":   "yes",
		"DBGVIEW_CONSOLE_CAPACITY": "4096",
		"DBGVIEW_PROJECTS_ROOTS":   "/a" + string(os.PathListSeparator) + "/b",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Log.Level != "warn" || cfg.Scope.Model != "push" || !cfg.Server.Enabled || cfg.Console.Capacity != 4096 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if len(cfg.Projects.Roots) != 2 {
		t.Errorf("Roots = %v", cfg.Projects.Roots)
	}

	err = ApplyEnv(Default(), envMap(map[string]string{"DBGVIEW_CONSOLE_CAPACITY": "lots"}))
	if !errors.Is(err, ErrValidationFailed) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestWatcher_Reloads(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "dbgview.toml", "[log]\nlevel = \"info\"\n")

	reloaded := make(chan *Config, 4)
	errs := make(chan error, 4)
	w, err := NewWatcher(path, func(c *Config) { reloaded <- c },
		WithDebounce(10*time.Millisecond),
		WithLookup(noEnv),
		WithErrorHandler(func(err error) { errs <- err }),
	)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	writeFile(t, dir, "other.toml", "[log]\nlevel = \"error\"\n")
	writeFile(t, dir, "dbgview.toml", "[log]\nlevel = \"debug\"\n")

	select {
	case cfg := <-reloaded:
		if cfg.Log.Level != "debug" {
			t.Errorf("reloaded level = %q", cfg.Log.Level)
		}
	case err := <-errs:
		t.Fatalf("reload error: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after write")
	}

	writeFile(t, dir, "dbgview.toml", "[scope]\nmodel = \"bogus\"\n")
	select {
	case err := <-errs:
		if !errors.Is(err, ErrValidationFailed) {
			t.Errorf("expected validation error, got %v", err)
		}
	case cfg := <-reloaded:
		t.Fatalf("invalid config was applied: %+v", cfg)
	case <-time.After(3 * time.Second):
		t.Fatal("no error after invalid write")
	}

	if err := w.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
