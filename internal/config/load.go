package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DBGVIEW_"

// LookupFunc looks up an environment variable.
type LookupFunc func(key string) (string, bool)

// Load reads path (if non-empty) over the defaults, applies environment
// overrides and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment.
func LoadWithEnv(path string, lookup LookupFunc) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		default:
			if err := Decode(path, data, cfg); err != nil {
				return nil, err
			}
		}
	}
	if err := ApplyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode parses data over cfg. The format is chosen by the extension of path.
func Decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return decodeTOML(path, data, cfg)
	case ".yaml", ".yml":
		return decodeYAML(path, data, cfg)
	default:
		return fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
}

func decodeTOML(path string, data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		pe := &ParseError{Path: path, Message: err.Error(), Err: err}
		var de *toml.DecodeError
		if errors.As(err, &de) {
			pe.Line, _ = de.Position()
		}
		return pe
	}
	return nil
}

func decodeYAML(path string, data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		// An empty document leaves the defaults in place.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &ParseError{Path: path, Message: err.Error(), Err: err}
	}
	return nil
}

// envSetters maps each supported variable (without prefix) to its setting.
var envSetters = map[string]func(*Config, string) error{
	"LOG_LEVEL": func(c *Config, v string) error { c.Log.Level = v; return nil },
	"LOG_FILE":  func(c *Config, v string) error { c.Log.File = v; return nil },

	"ADAPTER_TYPE":    func(c *Config, v string) error { c.Adapter.Type = v; return nil },
	"ADAPTER_COMMAND": func(c *Config, v string) error { c.Adapter.Command = v; return nil },
	"ADAPTER_ADDRESS": func(c *Config, v string) error { c.Adapter.Address = v; return nil },
	"ADAPTER_PROGRAM": func(c *Config, v string) error { c.Adapter.Program = v; return nil },
	"ADAPTER_CWD":     func(c *Config, v string) error { c.Adapter.Cwd = v; return nil },
	"ADAPTER_STOP_ON_ENTRY": func(c *Config, v string) error {
		b, err := parseBool(v)
		c.Adapter.StopOnEntry = b
		return err
	},
	"ADAPTER_REQUEST_TIMEOUT": func(c *Config, v string) error {
		return c.Adapter.RequestTimeout.UnmarshalText([]byte(v))
	},

	"PROJECTS_ROOTS": func(c *Config, v string) error {
		c.Projects.Roots = filepath.SplitList(v)
		return nil
	},
	"SCOPE_MODEL": func(c *Config, v string) error { c.Scope.Model = strings.ToLower(v); return nil },
	"CONSOLE_CAPACITY": func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		c.Console.Capacity = n
		return err
	},
	"SERVER_ENABLED": func(c *Config, v string) error {
		b, err := parseBool(v)
		c.Server.Enabled = b
		return err
	},
	"SERVER_ADDR": func(c *Config, v string) error { c.Server.Addr = v; return nil },
	"SCRIPT_PATH": func(c *Config, v string) error { c.Script.Path = v; return nil },
	"PANEL_LEFT":  func(c *Config, v string) error { c.Panel.Left = v; return nil },
	"PANEL_RIGHT": func(c *Config, v string) error { c.Panel.Right = v; return nil },
}

// ApplyEnv applies DBGVIEW_* overrides found through lookup.
// Empty string values are treated as set.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	for name, set := range envSetters {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		if err := set(cfg, strings.TrimSpace(v)); err != nil {
			return &ValidationError{Path: EnvPrefix + name, Message: err.Error(), Value: v}
		}
	}
	return nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}
