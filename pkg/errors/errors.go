// Package errors defines the error taxonomy of a smoke run.
//
// Fatal errors (pack, install, lifecycle hooks, sandbox management, unknown
// package managers) abort the run. Soft errors (rule crashes, script
// failures) are recorded as results and only affect the ok/failed
// classification. AbortError marks cooperative cancellation and is never a
// run failure on its own.
//
// Every fatal error of a run is collected into a single MachineError.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smoker/smoker/pkg/types"
)

// Re-exported so callers can import a single errors package.
var (
	Is   = errors.Is
	As   = errors.As
	New  = errors.New
	Join = errors.Join
)

// Sentinel errors
var (
	// ErrAborted is matched by every AbortError
	ErrAborted = errors.New("operation aborted")

	// ErrUnknownScript is returned by backends when the requested script is not defined
	ErrUnknownScript = errors.New("script not defined in package.json")

	// ErrListenerTimeout indicates that a listener did not exit before the shutdown timeout
	ErrListenerTimeout = errors.New("listener did not exit in time")

	// ErrShutdownTimeout indicates that a pipeline did not finish before the shutdown timeout
	ErrShutdownTimeout = errors.New("pipeline did not shut down in time")
)

// AbortError marks an operation stopped by cancellation
type AbortError struct {
	Op     string
	Reason error
}

func (e *AbortError) Error() string {
	if e.Reason != nil {
		return fmt.Sprintf("%s aborted: %v", e.Op, e.Reason)
	}
	return e.Op + " aborted"
}

// Is matches ErrAborted
func (e *AbortError) Is(target error) bool { return target == ErrAborted }

// Unwrap returns the cancellation cause
func (e *AbortError) Unwrap() error { return e.Reason }

// NewAbortError creates an AbortError, taking the cause from ctx when present
func NewAbortError(ctx context.Context, op string) *AbortError {
	var reason error
	if ctx != nil {
		reason = context.Cause(ctx)
	}
	return &AbortError{Op: op, Reason: reason}
}

// IsAbort reports whether err is (or wraps) a cancellation
func IsAbort(err error) bool {
	return errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled)
}

// PackError wraps a failed pack call
type PackError struct {
	Spec      types.PkgManagerSpec
	Workspace types.WorkspaceInfo
	Cwd       string
	Err       error
}

func (e *PackError) Error() string {
	return fmt.Sprintf("%s failed to pack %s in %s: %v", e.Spec, e.Workspace.PkgName, e.Cwd, e.Err)
}

func (e *PackError) Unwrap() error { return e.Err }

// PackParseError means a backend returned a malformed artifact descriptor
type PackParseError struct {
	Spec      types.PkgManagerSpec
	Workspace types.WorkspaceInfo
	Reason    string
}

func (e *PackParseError) Error() string {
	return fmt.Sprintf("%s returned an invalid pack artifact for %s: %s", e.Spec, e.Workspace.PkgName, e.Reason)
}

// InstallError wraps a failed install, including non-zero exits
type InstallError struct {
	Spec     types.PkgManagerSpec
	Manifest types.InstallManifest
	Result   *types.ExecResult
	Err      error
}

func (e *InstallError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed to install %s in %s", e.Spec, e.Manifest.PkgSpec, e.Manifest.Cwd)
	if e.Result != nil && e.Result.Failed() {
		fmt.Fprintf(&b, " (exit code %d)", e.Result.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *InstallError) Unwrap() error { return e.Err }

// LifecycleError wraps a failed setup or teardown hook
type LifecycleError struct {
	Spec   types.PkgManagerSpec
	Hook   string
	TmpDir string
	Err    error
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("%s %s hook failed (sandbox %s): %v", e.Spec, e.Hook, e.TmpDir, e.Err)
}

func (e *LifecycleError) Unwrap() error { return e.Err }

// TempDirError means the sandbox directory could not be created
type TempDirError struct {
	Spec types.PkgManagerSpec
	Err  error
}

func (e *TempDirError) Error() string {
	return fmt.Sprintf("failed to create sandbox for %s: %v", e.Spec, e.Err)
}

func (e *TempDirError) Unwrap() error { return e.Err }

// CleanupError means the sandbox directory could not be pruned
type CleanupError struct {
	Spec   types.PkgManagerSpec
	TmpDir string
	Err    error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("failed to prune sandbox %s for %s: %v", e.TmpDir, e.Spec, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }

// RuleError means a rule crashed; distinct from a rule reporting issues
type RuleError struct {
	Rule     string
	Spec     types.PkgManagerSpec
	Manifest types.LintManifest
	Err      error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %q crashed while checking %s (%s): %v", e.Rule, e.Manifest.PkgName, e.Spec, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }

// ScriptFailedError means a script ran and exited non-zero
type ScriptFailedError struct {
	Spec     types.PkgManagerSpec
	Manifest types.RunScriptManifest
	Result   *types.ExecResult
}

func (e *ScriptFailedError) Error() string {
	code := -1
	if e.Result != nil {
		code = e.Result.ExitCode
	}
	return fmt.Sprintf("script %q in %s failed with exit code %d (%s)", e.Manifest.Script, e.Manifest.PkgName, code, e.Spec)
}

// RunScriptError means a script could not be run at all
type RunScriptError struct {
	Spec     types.PkgManagerSpec
	Manifest types.RunScriptManifest
	Err      error
}

func (e *RunScriptError) Error() string {
	return fmt.Sprintf("failed to run script %q in %s (%s): %v", e.Manifest.Script, e.Manifest.PkgName, e.Spec, e.Err)
}

func (e *RunScriptError) Unwrap() error { return e.Err }

// UnknownScriptError means the workspace does not define the script
type UnknownScriptError struct {
	Script  string
	PkgName string
}

func (e *UnknownScriptError) Error() string {
	return fmt.Sprintf("script %q not found in %s", e.Script, e.PkgName)
}

func (e *UnknownScriptError) Is(target error) bool { return target == ErrUnknownScript }

// UnsupportedPackageManagerError means no plugin provides the requested spec
type UnsupportedPackageManagerError struct {
	Requested string
	Known     []string
}

func (e *UnsupportedPackageManagerError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("unsupported package manager: %s", e.Requested)
	}
	return fmt.Sprintf("unsupported package manager: %s (known: %s)", e.Requested, strings.Join(e.Known, ", "))
}

// ValidationError means a value failed a shape check at a boundary
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsFatal reports whether err must abort the run
func IsFatal(err error) bool {
	if err == nil || IsAbort(err) {
		return false
	}
	var (
		ruleErr    *RuleError
		failedErr  *ScriptFailedError
		runErr     *RunScriptError
		unknownErr *UnknownScriptError
	)
	switch {
	case errors.As(err, &ruleErr), errors.As(err, &failedErr),
		errors.As(err, &runErr), errors.As(err, &unknownErr):
		return false
	}
	return true
}
