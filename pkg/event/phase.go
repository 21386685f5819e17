package event

import (
	"github.com/smoker/smoker/pkg/types"
)

// Pack phase

const (
	NamePackBegin            Name = "PackBegin"
	NamePackOk               Name = "PackOk"
	NamePackFailed           Name = "PackFailed"
	NamePkgManagerPackBegin  Name = "PkgManagerPackBegin"
	NamePkgManagerPackOk     Name = "PkgManagerPackOk"
	NamePkgManagerPackFailed Name = "PkgManagerPackFailed"
	NamePkgPackBegin         Name = "PkgPackBegin"
	NamePkgPackOk            Name = "PkgPackOk"
	NamePkgPackFailed        Name = "PkgPackFailed"
)

type PackBegin struct{ PhaseBegin }

type PackOk struct {
	PhaseEnd
	Manifests []types.InstallManifest `json:"manifests"`
}

type PackFailed struct {
	PhaseEnd
	Manifests []types.InstallManifest `json:"manifests"`
	Err       error                   `json:"-"`
}

type PkgManagerPackBegin struct{ Source }

type PkgManagerPackOk struct {
	Source
	Manifests []types.InstallManifest `json:"manifests"`
}

type PkgManagerPackFailed struct {
	Source
	Err error `json:"-"`
}

type PkgPackBegin struct {
	Source
	Workspace types.WorkspaceInfo `json:"workspace"`
}

type PkgPackOk struct {
	Source
	Workspace types.WorkspaceInfo   `json:"workspace"`
	Manifest  types.InstallManifest `json:"manifest"`
}

type PkgPackFailed struct {
	Source
	Workspace types.WorkspaceInfo `json:"workspace"`
	Err       error               `json:"-"`
}

func (PackBegin) Name() Name            { return NamePackBegin }
func (PackOk) Name() Name               { return NamePackOk }
func (PackFailed) Name() Name           { return NamePackFailed }
func (PkgManagerPackBegin) Name() Name  { return NamePkgManagerPackBegin }
func (PkgManagerPackOk) Name() Name     { return NamePkgManagerPackOk }
func (PkgManagerPackFailed) Name() Name { return NamePkgManagerPackFailed }
func (PkgPackBegin) Name() Name         { return NamePkgPackBegin }
func (PkgPackOk) Name() Name            { return NamePkgPackOk }
func (PkgPackFailed) Name() Name        { return NamePkgPackFailed }

func (PkgManagerPackBegin) Phase() Phase  { return PhasePack }
func (PkgManagerPackOk) Phase() Phase     { return PhasePack }
func (PkgManagerPackFailed) Phase() Phase { return PhasePack }
func (PkgPackBegin) Phase() Phase         { return PhasePack }
func (PkgPackOk) Phase() Phase            { return PhasePack }
func (PkgPackFailed) Phase() Phase        { return PhasePack }

func (e PkgManagerPackBegin) WithCount(c Count) PhaseEvent  { e.Count = c; return e }
func (e PkgManagerPackOk) WithCount(c Count) PhaseEvent     { e.Count = c; return e }
func (e PkgManagerPackFailed) WithCount(c Count) PhaseEvent { e.Count = c; return e }
func (e PkgPackBegin) WithCount(c Count) PhaseEvent         { e.Count = c; return e }
func (e PkgPackOk) WithCount(c Count) PhaseEvent            { e.Count = c; return e }
func (e PkgPackFailed) WithCount(c Count) PhaseEvent        { e.Count = c; return e }

// Install phase

const (
	NameInstallBegin            Name = "InstallBegin"
	NameInstallOk               Name = "InstallOk"
	NameInstallFailed           Name = "InstallFailed"
	NamePkgManagerInstallBegin  Name = "PkgManagerInstallBegin"
	NamePkgManagerInstallOk     Name = "PkgManagerInstallOk"
	NamePkgManagerInstallFailed Name = "PkgManagerInstallFailed"
	NamePkgInstallBegin         Name = "PkgInstallBegin"
	NamePkgInstallOk            Name = "PkgInstallOk"
	NamePkgInstallFailed        Name = "PkgInstallFailed"
)

type InstallBegin struct {
	PhaseBegin
	AdditionalDeps []string `json:"additionalDeps,omitempty"`
}

type InstallOk struct {
	PhaseEnd
	Results []types.InstallResult `json:"results"`
}

type InstallFailed struct {
	PhaseEnd
	Results []types.InstallResult `json:"results"`
	Err     error                 `json:"-"`
}

type PkgManagerInstallBegin struct{ Source }

type PkgManagerInstallOk struct {
	Source
	Results []types.InstallResult `json:"results"`
}

type PkgManagerInstallFailed struct {
	Source
	Err error `json:"-"`
}

type PkgInstallBegin struct {
	Source
	Manifest types.InstallManifest `json:"manifest"`
}

type PkgInstallOk struct {
	Source
	Manifest types.InstallManifest `json:"manifest"`
	Result   types.InstallResult   `json:"result"`
}

type PkgInstallFailed struct {
	Source
	Manifest types.InstallManifest `json:"manifest"`
	Err      error                 `json:"-"`
}

func (InstallBegin) Name() Name            { return NameInstallBegin }
func (InstallOk) Name() Name               { return NameInstallOk }
func (InstallFailed) Name() Name           { return NameInstallFailed }
func (PkgManagerInstallBegin) Name() Name  { return NamePkgManagerInstallBegin }
func (PkgManagerInstallOk) Name() Name     { return NamePkgManagerInstallOk }
func (PkgManagerInstallFailed) Name() Name { return NamePkgManagerInstallFailed }
func (PkgInstallBegin) Name() Name         { return NamePkgInstallBegin }
func (PkgInstallOk) Name() Name            { return NamePkgInstallOk }
func (PkgInstallFailed) Name() Name        { return NamePkgInstallFailed }

func (PkgManagerInstallBegin) Phase() Phase  { return PhaseInstall }
func (PkgManagerInstallOk) Phase() Phase     { return PhaseInstall }
func (PkgManagerInstallFailed) Phase() Phase { return PhaseInstall }
func (PkgInstallBegin) Phase() Phase         { return PhaseInstall }
func (PkgInstallOk) Phase() Phase            { return PhaseInstall }
func (PkgInstallFailed) Phase() Phase        { return PhaseInstall }

func (e PkgManagerInstallBegin) WithCount(c Count) PhaseEvent  { e.Count = c; return e }
func (e PkgManagerInstallOk) WithCount(c Count) PhaseEvent     { e.Count = c; return e }
func (e PkgManagerInstallFailed) WithCount(c Count) PhaseEvent { e.Count = c; return e }
func (e PkgInstallBegin) WithCount(c Count) PhaseEvent         { e.Count = c; return e }
func (e PkgInstallOk) WithCount(c Count) PhaseEvent            { e.Count = c; return e }
func (e PkgInstallFailed) WithCount(c Count) PhaseEvent        { e.Count = c; return e }

// Lint phase

const (
	NameLintBegin            Name = "LintBegin"
	NameLintOk               Name = "LintOk"
	NameLintFailed           Name = "LintFailed"
	NamePkgManagerLintBegin  Name = "PkgManagerLintBegin"
	NamePkgManagerLintOk     Name = "PkgManagerLintOk"
	NamePkgManagerLintFailed Name = "PkgManagerLintFailed"
	NameRuleBegin            Name = "RuleBegin"
	NameRuleOk               Name = "RuleOk"
	NameRuleFailed           Name = "RuleFailed"
	NameRuleError            Name = "RuleError"
)

type LintBegin struct {
	PhaseBegin
	Rules []string `json:"rules"`
}

type LintOk struct {
	PhaseEnd
	Results []types.LintResult `json:"results"`
}

type LintFailed struct {
	PhaseEnd
	Results []types.LintResult `json:"results"`
}

type PkgManagerLintBegin struct{ Source }

type PkgManagerLintOk struct {
	Source
	Results []types.LintResult `json:"results"`
}

type PkgManagerLintFailed struct {
	Source
	Results []types.LintResult `json:"results"`
}

type RuleBegin struct {
	Source
	Rule     string             `json:"rule"`
	Manifest types.LintManifest `json:"manifest"`
}

type RuleOk struct {
	Source
	Result types.RuleResult `json:"result"`
}

// RuleFailed means the rule ran and reported issues
type RuleFailed struct {
	Source
	Result types.RuleResult `json:"result"`
}

// RuleError means the rule itself crashed
type RuleError struct {
	Source
	Result types.RuleResult `json:"result"`
}

func (LintBegin) Name() Name            { return NameLintBegin }
func (LintOk) Name() Name               { return NameLintOk }
func (LintFailed) Name() Name           { return NameLintFailed }
func (PkgManagerLintBegin) Name() Name  { return NamePkgManagerLintBegin }
func (PkgManagerLintOk) Name() Name     { return NamePkgManagerLintOk }
func (PkgManagerLintFailed) Name() Name { return NamePkgManagerLintFailed }
func (RuleBegin) Name() Name            { return NameRuleBegin }
func (RuleOk) Name() Name               { return NameRuleOk }
func (RuleFailed) Name() Name           { return NameRuleFailed }
func (RuleError) Name() Name            { return NameRuleError }

func (PkgManagerLintBegin) Phase() Phase  { return PhaseLint }
func (PkgManagerLintOk) Phase() Phase     { return PhaseLint }
func (PkgManagerLintFailed) Phase() Phase { return PhaseLint }
func (RuleBegin) Phase() Phase            { return PhaseLint }
func (RuleOk) Phase() Phase               { return PhaseLint }
func (RuleFailed) Phase() Phase           { return PhaseLint }
func (RuleError) Phase() Phase            { return PhaseLint }

func (e PkgManagerLintBegin) WithCount(c Count) PhaseEvent  { e.Count = c; return e }
func (e PkgManagerLintOk) WithCount(c Count) PhaseEvent     { e.Count = c; return e }
func (e PkgManagerLintFailed) WithCount(c Count) PhaseEvent { e.Count = c; return e }
func (e RuleBegin) WithCount(c Count) PhaseEvent            { e.Count = c; return e }
func (e RuleOk) WithCount(c Count) PhaseEvent               { e.Count = c; return e }
func (e RuleFailed) WithCount(c Count) PhaseEvent           { e.Count = c; return e }
func (e RuleError) WithCount(c Count) PhaseEvent            { e.Count = c; return e }

// RunScripts phase

const (
	NameRunScriptsBegin            Name = "RunScriptsBegin"
	NameRunScriptsOk               Name = "RunScriptsOk"
	NameRunScriptsFailed           Name = "RunScriptsFailed"
	NamePkgManagerRunScriptsBegin  Name = "PkgManagerRunScriptsBegin"
	NamePkgManagerRunScriptsOk     Name = "PkgManagerRunScriptsOk"
	NamePkgManagerRunScriptsFailed Name = "PkgManagerRunScriptsFailed"
	NameRunScriptBegin             Name = "RunScriptBegin"
	NameRunScriptOk                Name = "RunScriptOk"
	NameRunScriptFailed            Name = "RunScriptFailed"
	NameRunScriptSkipped           Name = "RunScriptSkipped"
	NameRunScriptError             Name = "RunScriptError"
)

type RunScriptsBegin struct {
	PhaseBegin
	Scripts []string `json:"scripts"`
}

type RunScriptsOk struct {
	PhaseEnd
	Results []types.RunScriptResult `json:"results"`
}

type RunScriptsFailed struct {
	PhaseEnd
	Results []types.RunScriptResult `json:"results"`
}

type PkgManagerRunScriptsBegin struct{ Source }

type PkgManagerRunScriptsOk struct {
	Source
	Results []types.RunScriptResult `json:"results"`
}

type PkgManagerRunScriptsFailed struct {
	Source
	Results []types.RunScriptResult `json:"results"`
}

type RunScriptBegin struct {
	Source
	Manifest types.RunScriptManifest `json:"manifest"`
}

type RunScriptOk struct {
	Source
	Result types.RunScriptResult `json:"result"`
}

type RunScriptFailed struct {
	Source
	Result types.RunScriptResult `json:"result"`
}

type RunScriptSkipped struct {
	Source
	Result types.RunScriptResult `json:"result"`
}

type RunScriptError struct {
	Source
	Result types.RunScriptResult `json:"result"`
}

func (RunScriptsBegin) Name() Name            { return NameRunScriptsBegin }
func (RunScriptsOk) Name() Name               { return NameRunScriptsOk }
func (RunScriptsFailed) Name() Name           { return NameRunScriptsFailed }
func (PkgManagerRunScriptsBegin) Name() Name  { return NamePkgManagerRunScriptsBegin }
func (PkgManagerRunScriptsOk) Name() Name     { return NamePkgManagerRunScriptsOk }
func (PkgManagerRunScriptsFailed) Name() Name { return NamePkgManagerRunScriptsFailed }
func (RunScriptBegin) Name() Name             { return NameRunScriptBegin }
func (RunScriptOk) Name() Name                { return NameRunScriptOk }
func (RunScriptFailed) Name() Name            { return NameRunScriptFailed }
func (RunScriptSkipped) Name() Name           { return NameRunScriptSkipped }
func (RunScriptError) Name() Name             { return NameRunScriptError }

func (PkgManagerRunScriptsBegin) Phase() Phase  { return PhaseRunScripts }
func (PkgManagerRunScriptsOk) Phase() Phase     { return PhaseRunScripts }
func (PkgManagerRunScriptsFailed) Phase() Phase { return PhaseRunScripts }
func (RunScriptBegin) Phase() Phase             { return PhaseRunScripts }
func (RunScriptOk) Phase() Phase                { return PhaseRunScripts }
func (RunScriptFailed) Phase() Phase            { return PhaseRunScripts }
func (RunScriptSkipped) Phase() Phase           { return PhaseRunScripts }
func (RunScriptError) Phase() Phase             { return PhaseRunScripts }

func (e PkgManagerRunScriptsBegin) WithCount(c Count) PhaseEvent  { e.Count = c; return e }
func (e PkgManagerRunScriptsOk) WithCount(c Count) PhaseEvent     { e.Count = c; return e }
func (e PkgManagerRunScriptsFailed) WithCount(c Count) PhaseEvent { e.Count = c; return e }
func (e RunScriptBegin) WithCount(c Count) PhaseEvent             { e.Count = c; return e }
func (e RunScriptOk) WithCount(c Count) PhaseEvent                { e.Count = c; return e }
func (e RunScriptFailed) WithCount(c Count) PhaseEvent            { e.Count = c; return e }
func (e RunScriptSkipped) WithCount(c Count) PhaseEvent           { e.Count = c; return e }
func (e RunScriptError) WithCount(c Count) PhaseEvent             { e.Count = c; return e }

// ScriptResultEvent builds the item event matching a script result type
func ScriptResultEvent(src Source, result types.RunScriptResult) PhaseEvent {
	switch result.Type {
	case types.ResultOk:
		return RunScriptOk{Source: src, Result: result}
	case types.ResultFailed:
		return RunScriptFailed{Source: src, Result: result}
	case types.ResultSkipped:
		return RunScriptSkipped{Source: src, Result: result}
	default:
		return RunScriptError{Source: src, Result: result}
	}
}

// RuleResultEvent builds the item event matching a rule result type
func RuleResultEvent(src Source, result types.RuleResult) PhaseEvent {
	switch result.Type {
	case types.ResultOk:
		return RuleOk{Source: src, Result: result}
	case types.ResultFailed:
		return RuleFailed{Source: src, Result: result}
	default:
		return RuleError{Source: src, Result: result}
	}
}

// IsBackendEnd reports whether ev marks the end of a phase for one backend
func IsBackendEnd(ev PhaseEvent) bool {
	switch ev.(type) {
	case PkgManagerPackOk, PkgManagerPackFailed,
		PkgManagerInstallOk, PkgManagerInstallFailed,
		PkgManagerLintOk, PkgManagerLintFailed,
		PkgManagerRunScriptsOk, PkgManagerRunScriptsFailed:
		return true
	}
	return false
}

// IsBackendBegin reports whether ev marks the start of a phase for one backend
func IsBackendBegin(ev PhaseEvent) bool {
	switch ev.(type) {
	case PkgManagerPackBegin, PkgManagerInstallBegin,
		PkgManagerLintBegin, PkgManagerRunScriptsBegin:
		return true
	}
	return false
}

// IsItemBegin reports whether ev marks the start of a single item
func IsItemBegin(ev PhaseEvent) bool {
	switch ev.(type) {
	case PkgPackBegin, PkgInstallBegin, RuleBegin, RunScriptBegin:
		return true
	}
	return false
}
