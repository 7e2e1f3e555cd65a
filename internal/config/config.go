// Package config provides configuration management for the debug adapter.
//
// Configuration controls:
//   - Transport: stdio (one editor session) or a TCP listen address
//   - Engine endpoint: where the remote-debugging engine accepts connections
//   - Capability mode (readonly vs full): which MCP tools are exposed
//   - Safety limits: maximum sessions and session timeout
//
// Configuration can be loaded from a JSON file or use sensible defaults.
// The readonly mode exposes only inspection tools over MCP, while full
// mode also enables execution control.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	apperrors "github.com/tmajors/dapbridge/internal/errors"
)

// CapabilityMode defines the level of debugging capabilities exposed
// through the MCP surface.
type CapabilityMode string

const (
	ModeReadOnly CapabilityMode = "readonly" // inspection tools only
	ModeFull     CapabilityMode = "full"     // all tools enabled
)

// Config holds the adapter configuration.
type Config struct {
	// Mode gates the MCP tool set
	Mode CapabilityMode `json:"mode"`

	// Listen is a TCP address for editor connections; empty means stdio
	Listen string `json:"listen"`

	// Engine is the TCP address of the remote-debugging engine
	Engine string `json:"engine"`

	// MCPListen is a TCP address for the MCP surface; empty disables it
	MCPListen string `json:"mcpListen"`

	// Limits for safety
	MaxSessions    int      `json:"maxSessions"`
	SessionTimeout Duration `json:"sessionTimeout"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `json:"logLevel"`
}

// Duration unmarshals from either a JSON number of nanoseconds or a
// string like "30m".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*d = Duration(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Mode:           ModeFull,
		Engine:         "127.0.0.1:9229",
		MaxSessions:    10,
		SessionTimeout: Duration(30 * time.Minute),
		LogLevel:       "info",
	}
}

// LoadConfig loads configuration from a JSON file. An empty path yields
// the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigInvalid,
			fmt.Sprintf("invalid config file %s: %v", path, err), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the adapter cannot run with.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeReadOnly, ModeFull:
	default:
		return apperrors.Wrap(apperrors.CodeConfigInvalid,
			fmt.Sprintf("unknown mode %q: expected %q or %q", c.Mode, ModeReadOnly, ModeFull), nil)
	}
	if c.Engine == "" {
		return apperrors.Wrap(apperrors.CodeConfigInvalid, "engine address must not be empty", nil)
	}
	if c.MaxSessions < 1 {
		return apperrors.Wrap(apperrors.CodeConfigInvalid,
			fmt.Sprintf("maxSessions must be at least 1, got %d", c.MaxSessions), nil)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return apperrors.Wrap(apperrors.CodeConfigInvalid,
			fmt.Sprintf("unknown logLevel %q", c.LogLevel), nil)
	}
	return nil
}

// CanUseControlTools returns true if execution-control tools are enabled.
func (c *Config) CanUseControlTools() bool {
	return c.Mode == ModeFull
}

// CanEvaluate returns true if expression evaluation is allowed.
func (c *Config) CanEvaluate() bool {
	return c.Mode == ModeFull
}
