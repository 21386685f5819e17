package types

import "time"

// RuleConfig is the user configuration of a single rule
type RuleConfig struct {
	Severity Severity       `json:"severity,omitempty" yaml:"severity,omitempty"`
	Opts     map[string]any `json:"opts,omitempty" yaml:"opts,omitempty"`
}

// SmokerOptions drives a single smoke run
type SmokerOptions struct {
	Cwd               string                `json:"cwd" yaml:"cwd"`
	Workspaces        []string              `json:"workspace,omitempty" yaml:"workspace,omitempty"`
	All               bool                  `json:"all,omitempty" yaml:"all,omitempty"`
	IncludeRoot       bool                  `json:"includeRoot,omitempty" yaml:"includeRoot,omitempty"`
	PkgManagers       []string              `json:"pkgManager,omitempty" yaml:"pkgManager,omitempty"`
	Scripts           []string              `json:"script,omitempty" yaml:"script,omitempty"`
	Lint              bool                  `json:"lint" yaml:"lint"`
	Rules             map[string]RuleConfig `json:"rules,omitempty" yaml:"rules,omitempty"`
	AdditionalDeps    []string              `json:"add,omitempty" yaml:"add,omitempty"`
	Linger            bool                  `json:"linger,omitempty" yaml:"linger,omitempty"`
	Bail              bool                  `json:"bail,omitempty" yaml:"bail,omitempty"`
	PackConcurrency   int                   `json:"packConcurrency,omitempty" yaml:"packConcurrency,omitempty"`
	ScriptConcurrency int                   `json:"scriptConcurrency,omitempty" yaml:"scriptConcurrency,omitempty"`
	ShutdownTimeout   time.Duration         `json:"shutdownTimeout,omitempty" yaml:"shutdownTimeout,omitempty"`
	Reporters         []string              `json:"reporter,omitempty" yaml:"reporter,omitempty"`
	Verbose           bool                  `json:"verbose,omitempty" yaml:"verbose,omitempty"`
}

// Defaults used when options leave a knob unset
const (
	DefaultPackConcurrency   = 2
	DefaultScriptConcurrency = 1
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultPkgManager        = "npm"
)

// WithDefaults returns a copy with zero-valued knobs filled in
func (o SmokerOptions) WithDefaults() SmokerOptions {
	if o.Cwd == "" {
		o.Cwd = "."
	}
	if len(o.PkgManagers) == 0 {
		o.PkgManagers = []string{DefaultPkgManager}
	}
	if o.PackConcurrency <= 0 {
		o.PackConcurrency = DefaultPackConcurrency
	}
	if o.ScriptConcurrency <= 0 {
		o.ScriptConcurrency = DefaultScriptConcurrency
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = DefaultShutdownTimeout
	}
	return o
}
