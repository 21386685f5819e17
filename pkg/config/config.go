// Package config handles configuration loading and management
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	smokeerrors "github.com/smoker/smoker/pkg/errors"
	"github.com/smoker/smoker/pkg/types"
)

// CurrentVersion is the only config format version understood
const CurrentVersion = "1.0"

// FileNames are searched in order by FindConfig
var FileNames = []string{
	"smoker.config.json",
	"smoker.config.yaml",
	"smoker.config.yml",
}

// Config is the on-disk configuration of a project. Every field is
// optional; flags and environment variables take precedence.
type Config struct {
	Version           string                      `json:"version,omitempty" yaml:"version,omitempty"`
	PkgManagers       []string                    `json:"pkgManager,omitempty" yaml:"pkgManager,omitempty"`
	Scripts           []string                    `json:"script,omitempty" yaml:"script,omitempty"`
	Workspaces        []string                    `json:"workspace,omitempty" yaml:"workspace,omitempty"`
	All               bool                        `json:"all,omitempty" yaml:"all,omitempty"`
	IncludeRoot       bool                        `json:"includeRoot,omitempty" yaml:"includeRoot,omitempty"`
	Lint              *bool                       `json:"lint,omitempty" yaml:"lint,omitempty"`
	Rules             map[string]types.RuleConfig `json:"rules,omitempty" yaml:"rules,omitempty"`
	AdditionalDeps    []string                    `json:"add,omitempty" yaml:"add,omitempty"`
	Linger            bool                        `json:"linger,omitempty" yaml:"linger,omitempty"`
	Bail              bool                        `json:"bail,omitempty" yaml:"bail,omitempty"`
	PackConcurrency   int                         `json:"packConcurrency,omitempty" yaml:"packConcurrency,omitempty"`
	ScriptConcurrency int                         `json:"scriptConcurrency,omitempty" yaml:"scriptConcurrency,omitempty"`
	// ShutdownTimeout is a Go duration string such as "30s"
	ShutdownTimeout string   `json:"shutdownTimeout,omitempty" yaml:"shutdownTimeout,omitempty"`
	Reporters       []string `json:"reporter,omitempty" yaml:"reporter,omitempty"`
	Verbose         bool     `json:"verbose,omitempty" yaml:"verbose,omitempty"`
}

// Manager handles configuration operations
type Manager struct{}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{}
}

// FindConfig returns the path of the first config file in dir, or "" when
// there is none
func (m *Manager) FindConfig(dir string) (string, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		switch {
		case err == nil && !info.IsDir():
			return path, nil
		case err != nil && !errors.Is(err, os.ErrNotExist):
			return "", fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}
	return "", nil
}

// LoadConfig loads configuration from a file
func (m *Manager) LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config

	// Try JSON first
	if err := json.Unmarshal(data, &cfg); err == nil {
		return m.validateConfig(&cfg)
	}

	// YAML goes through JSON so both formats share the json tags of
	// nested types
	var yamlData map[string]interface{}
	if err := yaml.Unmarshal(data, &yamlData); err == nil && yamlData != nil {
		jsonData, err := json.Marshal(yamlData)
		if err == nil {
			cfg = Config{}
			if err := json.Unmarshal(jsonData, &cfg); err == nil {
				return m.validateConfig(&cfg)
			}
		}
	}

	return nil, fmt.Errorf("failed to parse %s as JSON or YAML", path)
}

// ValidateConfig validates a configuration
func (m *Manager) ValidateConfig(cfg *Config) error {
	if cfg.Version != "" && cfg.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %s", cfg.Version)
	}

	for _, pm := range cfg.PkgManagers {
		if _, err := types.ParsePkgManagerSpec(pm); err != nil {
			return &smokeerrors.ValidationError{Field: "pkgManager", Reason: err.Error()}
		}
	}

	for name, rc := range cfg.Rules {
		if rc.Severity != "" && !rc.Severity.Valid() {
			return &smokeerrors.ValidationError{
				Field:  "rules." + name,
				Reason: fmt.Sprintf("unknown severity %q", rc.Severity),
			}
		}
	}

	if cfg.PackConcurrency < 0 {
		return &smokeerrors.ValidationError{Field: "packConcurrency", Reason: "must not be negative"}
	}
	if cfg.ScriptConcurrency < 0 {
		return &smokeerrors.ValidationError{Field: "scriptConcurrency", Reason: "must not be negative"}
	}

	if cfg.ShutdownTimeout != "" {
		d, err := time.ParseDuration(cfg.ShutdownTimeout)
		if err != nil {
			return &smokeerrors.ValidationError{Field: "shutdownTimeout", Reason: err.Error()}
		}
		if d <= 0 {
			return &smokeerrors.ValidationError{Field: "shutdownTimeout", Reason: "must be positive"}
		}
	}

	for _, r := range cfg.Reporters {
		if r == "" {
			return &smokeerrors.ValidationError{Field: "reporter", Reason: "empty reporter name"}
		}
	}
	return nil
}

// GetDefaultConfig returns the configuration written for a new project
func (m *Manager) GetDefaultConfig() *Config {
	lint := true
	return &Config{
		Version:           CurrentVersion,
		PkgManagers:       []string{types.DefaultPkgManager},
		Lint:              &lint,
		PackConcurrency:   types.DefaultPackConcurrency,
		ScriptConcurrency: types.DefaultScriptConcurrency,
		ShutdownTimeout:   types.DefaultShutdownTimeout.String(),
		Reporters:         []string{"console"},
	}
}

// ToOptions converts cfg into run options rooted at cwd. A nil config
// yields the defaults.
func (m *Manager) ToOptions(cfg *Config, cwd string) types.SmokerOptions {
	opts := types.SmokerOptions{Cwd: cwd, Lint: true}
	if cfg == nil {
		return opts.WithDefaults()
	}

	opts.PkgManagers = cfg.PkgManagers
	opts.Scripts = cfg.Scripts
	opts.Workspaces = cfg.Workspaces
	opts.All = cfg.All
	opts.IncludeRoot = cfg.IncludeRoot
	if cfg.Lint != nil {
		opts.Lint = *cfg.Lint
	}
	opts.Rules = cfg.Rules
	opts.AdditionalDeps = cfg.AdditionalDeps
	opts.Linger = cfg.Linger
	opts.Bail = cfg.Bail
	opts.PackConcurrency = cfg.PackConcurrency
	opts.ScriptConcurrency = cfg.ScriptConcurrency
	if d, err := time.ParseDuration(cfg.ShutdownTimeout); err == nil {
		opts.ShutdownTimeout = d
	}
	opts.Reporters = cfg.Reporters
	opts.Verbose = cfg.Verbose
	return opts.WithDefaults()
}

// SaveConfig writes cfg as indented JSON
func (m *Manager) SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (m *Manager) validateConfig(cfg *Config) (*Config, error) {
	if err := m.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
