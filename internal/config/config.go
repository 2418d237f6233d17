// Package config loads the eval builder's YAML configuration with
// environment overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BrowserOperator/web-agent/internal/gateway"
)

// Gateway backend modes.
const (
	GatewayRod  = "rod"
	GatewayHTTP = "http"
)

// Oracle providers.
const (
	OracleClaudeCLI = "claude-cli"
	OracleGemini    = "gemini"
	OracleFile      = "file"
)

// GatewayConfig selects and configures the browser backend.
type GatewayConfig struct {
	Mode string             `yaml:"mode"`
	Rod  gateway.RodConfig  `yaml:"rod"`
	HTTP gateway.HTTPConfig `yaml:"http"`
}

// OracleConfig selects and configures the code-generation backend.
type OracleConfig struct {
	Provider      string `yaml:"provider"`
	Model         string `yaml:"model"`
	APIKey        string `yaml:"api_key"`
	TimeoutSec    int    `yaml:"timeout_sec"`
	MaxAttempts   int    `yaml:"max_attempts"`
	WorkDir       string `yaml:"work_dir"`        // file provider: where request/artifact live
	WaitTimeoutMs int    `yaml:"wait_timeout_ms"` // file provider: 0 waits until interrupted
}

// Timeout returns the oracle call timeout.
func (o OracleConfig) Timeout() time.Duration {
	if o.TimeoutSec <= 0 {
		return 300 * time.Second
	}
	return time.Duration(o.TimeoutSec) * time.Second
}

// WaitTimeout returns how long the file provider waits for an artifact.
func (o OracleConfig) WaitTimeout() time.Duration {
	return time.Duration(o.WaitTimeoutMs) * time.Millisecond
}

// Config is the root configuration.
type Config struct {
	Workspace string        `yaml:"workspace"`
	CorpusDir string        `yaml:"corpus_dir"`
	Gateway   GatewayConfig `yaml:"gateway"`
	Oracle    OracleConfig  `yaml:"oracle"`
	Debug     bool          `yaml:"debug"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Workspace: ".",
		CorpusDir: "corpus",
		Gateway: GatewayConfig{
			Mode: GatewayRod,
			Rod:  gateway.DefaultRodConfig(),
			HTTP: gateway.DefaultHTTPConfig(),
		},
		Oracle: OracleConfig{
			Provider:    OracleFile,
			MaxAttempts: 3,
		},
	}
}

// Load reads the configuration at path, falling back to defaults when the
// file does not exist. Environment variables override file values for
// secrets: GEMINI_API_KEY for the oracle key.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.Oracle.APIKey = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot produce a working wiring.
func (c *Config) Validate() error {
	switch c.Gateway.Mode {
	case GatewayRod, GatewayHTTP:
	default:
		return fmt.Errorf("unknown gateway mode %q (want %q or %q)", c.Gateway.Mode, GatewayRod, GatewayHTTP)
	}
	switch c.Oracle.Provider {
	case OracleClaudeCLI, OracleGemini, OracleFile:
	default:
		return fmt.Errorf("unknown oracle provider %q", c.Oracle.Provider)
	}
	if c.Oracle.MaxAttempts < 0 {
		return fmt.Errorf("oracle max_attempts must not be negative")
	}
	return nil
}

// CorpusPath returns the corpus directory for one task id, rooted under the
// workspace.
func (c *Config) CorpusPath(taskID string) string {
	return filepath.Join(c.Workspace, c.CorpusDir, taskID)
}

// OracleWorkDir returns the file provider's working directory for a task.
func (c *Config) OracleWorkDir(taskID string) string {
	if c.Oracle.WorkDir != "" {
		return c.Oracle.WorkDir
	}
	return c.CorpusPath(taskID)
}
