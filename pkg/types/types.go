// Package types provides core types and configurations for smoker
package types

import (
	"fmt"
	"strings"
	"time"
)

// ResultType tags the outcome of an operation or of a whole run
type ResultType string

const (
	ResultOk      ResultType = "ok"
	ResultFailed  ResultType = "failed"
	ResultError   ResultType = "error"
	ResultSkipped ResultType = "skipped"
)

// LogLevel represents logging verbosity levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// SystemVersion is the version reported for a package manager found on the PATH
const SystemVersion = "system"

// WorkspaceInfo identifies a package under test
type WorkspaceInfo struct {
	PkgName     string         `json:"pkgName" yaml:"pkgName"`
	PkgJSONPath string         `json:"pkgJsonPath" yaml:"pkgJsonPath"`
	LocalPath   string         `json:"localPath" yaml:"localPath"`
	PkgJSON     map[string]any `json:"pkgJson,omitempty" yaml:"pkgJson,omitempty"`
	Private     bool           `json:"private,omitempty" yaml:"private,omitempty"`
}

// Scripts returns the "scripts" section of the manifest
func (w WorkspaceInfo) Scripts() map[string]string {
	return ManifestScripts(w.PkgJSON)
}

// ManifestScripts extracts the "scripts" map from a decoded package.json
func ManifestScripts(pkgJSON map[string]any) map[string]string {
	raw, ok := pkgJSON["scripts"].(map[string]any)
	if !ok {
		return nil
	}
	scripts := make(map[string]string, len(raw))
	for name, v := range raw {
		if s, ok := v.(string); ok {
			scripts[name] = s
		}
	}
	return scripts
}

// PkgManagerSpec identifies one backend instance
type PkgManagerSpec struct {
	Name      string `json:"name" yaml:"name"`
	Version   string `json:"version" yaml:"version"`
	IsSystem  bool   `json:"isSystem,omitempty" yaml:"isSystem,omitempty"`
	Requested string `json:"requested,omitempty" yaml:"requested,omitempty"`
}

// String renders the spec as name@version
func (s PkgManagerSpec) String() string {
	if s.IsSystem {
		return s.Name + "@" + SystemVersion
	}
	if s.Version == "" {
		return s.Name
	}
	return s.Name + "@" + s.Version
}

// ParsePkgManagerSpec splits a requested spec like "npm@9" into name and version.
// A missing version means the system package manager.
func ParsePkgManagerSpec(requested string) (PkgManagerSpec, error) {
	raw := strings.TrimSpace(requested)
	if raw == "" {
		return PkgManagerSpec{}, fmt.Errorf("empty package manager spec")
	}

	name, version, found := strings.Cut(raw, "@")
	if name == "" {
		return PkgManagerSpec{}, fmt.Errorf("invalid package manager spec %q: missing name", requested)
	}
	if found && version == "" {
		return PkgManagerSpec{}, fmt.Errorf("invalid package manager spec %q: missing version", requested)
	}

	spec := PkgManagerSpec{
		Name:      strings.ToLower(name),
		Version:   version,
		Requested: requested,
	}
	if !found || version == SystemVersion {
		spec.IsSystem = true
		spec.Version = SystemVersion
	}
	return spec, nil
}

// PackArtifact is the descriptor a backend returns from a pack call
type PackArtifact struct {
	PkgSpec string `json:"pkgSpec"`
	PkgName string `json:"pkgName"`
}

// InstallManifest tells a backend what to install and where
type InstallManifest struct {
	PkgSpec      string `json:"pkgSpec"`
	PkgName      string `json:"pkgName"`
	Cwd          string `json:"cwd"`
	InstallPath  string `json:"installPath,omitempty"`
	LocalPath    string `json:"localPath,omitempty"`
	IsAdditional bool   `json:"isAdditional,omitempty"`
}

// LintManifest describes an installed workspace ready to be checked by rules
type LintManifest struct {
	PkgName     string         `json:"pkgName"`
	InstallPath string         `json:"installPath"`
	PkgJSON     map[string]any `json:"pkgJson,omitempty"`
	Workspace   WorkspaceInfo  `json:"workspace"`
}

// RunScriptManifest describes one script to run in one installed workspace
type RunScriptManifest struct {
	Script    string        `json:"script"`
	PkgName   string        `json:"pkgName"`
	Cwd       string        `json:"cwd"`
	Workspace WorkspaceInfo `json:"workspace"`
}

// ExecResult is the raw outcome of an external command
type ExecResult struct {
	Command  string        `json:"command"`
	Args     []string      `json:"args,omitempty"`
	Cwd      string        `json:"cwd,omitempty"`
	ExitCode int           `json:"exitCode"`
	Stdout   string        `json:"stdout,omitempty"`
	Stderr   string        `json:"stderr,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Failed reports whether the command exited non-zero
func (r *ExecResult) Failed() bool {
	return r != nil && r.ExitCode != 0
}

// CommandLine renders the command and its arguments
func (r *ExecResult) CommandLine() string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.Command + " " + strings.Join(r.Args, " "))
}

// InstallResult records one successful install
type InstallResult struct {
	Type       ResultType      `json:"type"`
	PkgManager PkgManagerSpec  `json:"pkgManager"`
	Manifest   InstallManifest `json:"manifest"`
	RawResult  *ExecResult     `json:"rawResult,omitempty"`
}

// Severity of a rule or of an issue it reports
type Severity string

const (
	SeverityOff   Severity = "off"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Valid reports whether the severity is one of the known values
func (s Severity) Valid() bool {
	switch s {
	case SeverityOff, SeverityWarn, SeverityError:
		return true
	}
	return false
}

// Issue is a single problem found by a rule
type Issue struct {
	Rule     string   `json:"rule"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	FilePath string   `json:"filePath,omitempty"`
}

// RuleResult is the outcome of one rule against one installed workspace
type RuleResult struct {
	Type       ResultType     `json:"type"`
	Rule       string         `json:"rule"`
	Severity   Severity       `json:"severity"`
	PkgManager PkgManagerSpec `json:"pkgManager"`
	Manifest   LintManifest   `json:"manifest"`
	Issues     []Issue        `json:"issues,omitempty"`
	Error      error          `json:"-"`
	ErrorText  string         `json:"error,omitempty"`
}

// LintResult aggregates all rule results of one workspace for one backend
type LintResult struct {
	Type       ResultType     `json:"type"`
	PkgName    string         `json:"pkgName"`
	PkgManager PkgManagerSpec `json:"pkgManager"`
	Results    []RuleResult   `json:"results"`
}

// HasErrors reports whether any rule crashed or reported an error-level issue
func (r LintResult) HasErrors() bool {
	for _, rr := range r.Results {
		if rr.Type == ResultError {
			return true
		}
		for _, issue := range rr.Issues {
			if issue.Severity == SeverityError {
				return true
			}
		}
	}
	return false
}

// RunScriptResult is the outcome of one script in one workspace for one backend
type RunScriptResult struct {
	Type       ResultType        `json:"type"`
	PkgManager PkgManagerSpec    `json:"pkgManager"`
	Manifest   RunScriptManifest `json:"manifest"`
	RawResult  *ExecResult       `json:"rawResult,omitempty"`
	SkipReason string            `json:"skipReason,omitempty"`
	Error      error             `json:"-"`
	ErrorText  string            `json:"error,omitempty"`
}

// PluginMetadata describes a loaded plugin
type PluginMetadata struct {
	Name        string   `json:"name"`
	Version     string   `json:"version,omitempty"`
	Description string   `json:"description,omitempty"`
	PkgManagers []string `json:"pkgManagers,omitempty"`
	Rules       []string `json:"rules,omitempty"`
	Reporters   []string `json:"reporters,omitempty"`
}

// SmokeResults is the final structured result of a run
type SmokeResults struct {
	Type        ResultType        `json:"type"`
	RunID       string            `json:"runId,omitempty"`
	PkgManagers []PkgManagerSpec  `json:"pkgManagers"`
	Workspaces  []WorkspaceInfo   `json:"workspaceInfo"`
	Lint        []LintResult      `json:"lint,omitempty"`
	Scripts     []RunScriptResult `json:"scripts,omitempty"`
	Plugins     []PluginMetadata  `json:"plugins,omitempty"`
	Error       error             `json:"-"`
	ErrorText   string            `json:"error,omitempty"`
	Lingered    []string          `json:"lingered,omitempty"`
	Noop        bool              `json:"noop"`
	Aborted     bool              `json:"aborted"`
	Duration    time.Duration     `json:"duration"`
}
