// Package config loads generator settings from a YAML file, a host parameter
// block, or both.
package config

import (
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/craigjb/spiny/internal/foundation/errors"
	"github.com/craigjb/spiny/internal/models"
)

// DefaultFile is the config file looked up when none is given.
const DefaultFile = "pacgen.yaml"

// Parameters is the flat parameter set a generation is configured with.
type Parameters struct {
	CrateName        string `yaml:"crate_name"`
	CrateVersion     string `yaml:"crate_version"`
	OutputPath       string `yaml:"output_path"`
	SVDPath          string `yaml:"svd_path"`
	LinkerScriptPath string `yaml:"linker_script_path,omitempty"`
}

// Config is the full generator configuration.
type Config struct {
	Parameters `yaml:",inline"`

	// Root is the directory relative paths resolve against. Defaults to the
	// directory holding the config file.
	Root string `yaml:"root,omitempty"`

	Tools     ToolsConfig     `yaml:"tools,omitempty"`
	Workspace WorkspaceConfig `yaml:"workspace,omitempty"`
	History   HistoryConfig   `yaml:"history,omitempty"`
	Notify    NotifyConfig    `yaml:"notify,omitempty"`
	Metrics   MetricsConfig   `yaml:"metrics,omitempty"`
	Watch     WatchConfig     `yaml:"watch,omitempty"`
}

// ToolsConfig names the external binaries.
type ToolsConfig struct {
	SVD2Rust string `yaml:"svd2rust,omitempty"`
	Form     string `yaml:"form,omitempty"`
	Rustfmt  string `yaml:"rustfmt,omitempty"`
	// Timeout bounds each tool invocation; zero means no limit.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// WorkspaceConfig controls the scratch directory the tools run in.
type WorkspaceConfig struct {
	BaseDir string `yaml:"base_dir,omitempty"`
	Keep    bool   `yaml:"keep,omitempty"`
}

// HistoryConfig enables the SQLite run log when Path is set.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"`
}

// NotifyConfig enables NATS completion events when URL is set.
type NotifyConfig struct {
	URL     string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// MetricsConfig enables the Prometheus textfile export when Textfile is set.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// WatchConfig tunes watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce,omitempty"`
	Interval time.Duration `yaml:"interval,omitempty"`
}

// Load reads configPath, expanding ${VAR} references after loading .env files.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError("configuration file not found").
				WithContext("path", configPath).
				Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			Fatal().
			WithContext("path", configPath).
			Build()
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if cfg.Root == "" {
		abs, err := filepath.Abs(filepath.Dir(configPath))
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryConfig, "cannot resolve config directory").Fatal().Build()
		}
		cfg.Root = abs
	}
	return cfg, nil
}

// Parse decodes YAML config data with environment expansion and applies
// defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to parse config").Fatal().Build()
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// FromParameters builds a config around a host-supplied parameter block.
func FromParameters(params Parameters, root string) *Config {
	cfg := &Config{Parameters: params, Root: root}
	cfg.ApplyDefaults()
	return cfg
}

// Merge overlays the non-empty parameters of p onto c.
func (c *Config) Merge(p Parameters) {
	if p.CrateName != "" {
		c.CrateName = p.CrateName
	}
	if p.CrateVersion != "" {
		c.CrateVersion = p.CrateVersion
	}
	if p.OutputPath != "" {
		c.OutputPath = p.OutputPath
	}
	if p.SVDPath != "" {
		c.SVDPath = p.SVDPath
	}
	if p.LinkerScriptPath != "" {
		c.LinkerScriptPath = p.LinkerScriptPath
	}
}

// Request resolves the parameters into a generation request.
func (c *Config) Request() models.GenerationRequest {
	req := models.GenerationRequest{
		CrateName:    c.CrateName,
		CrateVersion: c.CrateVersion,
		SVDPath:      c.resolve(c.SVDPath),
		OutputPath:   c.resolve(c.OutputPath),
	}
	if c.LinkerScriptPath != "" {
		req.LinkerScriptPath = c.resolve(c.LinkerScriptPath)
	}
	return req
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Root == "" {
		return p
	}
	return filepath.Join(c.Root, p)
}

// loadEnvFiles loads .env and .env.local when present. Existing process
// variables are never overridden.
func loadEnvFiles() {
	for _, name := range []string{".env", ".env.local"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			slog.Warn("Failed to load env file", slog.String("path", name), slog.String("error", err.Error()))
			continue
		}
		slog.Debug("Loaded environment variables", slog.String("path", name))
	}
}

// trimmed reports whether s has content after trimming whitespace.
func trimmed(s string) bool {
	return strings.TrimSpace(s) != ""
}
