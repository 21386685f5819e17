package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	smokeerrors "github.com/smoker/smoker/pkg/errors"
	"github.com/smoker/smoker/pkg/logger"
	"github.com/smoker/smoker/pkg/pkgmanager"
	"github.com/smoker/smoker/pkg/rule"
	"github.com/smoker/smoker/pkg/types"
)

// Operation actors. Each performs exactly one call against a backend or
// rule under ctx and turns the outcome into a typed result. They never
// retry; the pipeline decides what a failure means.

func aborted(ctx context.Context, err error) bool {
	return ctx.Err() != nil || smokeerrors.IsAbort(err)
}

// installPath is where a package named pkgName ends up inside a sandbox
func installPath(tmpDir, pkgName string) string {
	return filepath.Join(tmpDir, "node_modules", filepath.FromSlash(pkgName))
}

// packActor packs one workspace and returns the install manifest for the
// resulting artifact
func packActor(ctx context.Context, pm pkgmanager.PkgManager, pc *pkgmanager.PackContext) (types.InstallManifest, error) {
	if ctx.Err() != nil {
		return types.InstallManifest{}, smokeerrors.NewAbortError(ctx, "pack")
	}

	artifact, err := pm.Pack(ctx, pc)
	if err != nil {
		if aborted(ctx, err) {
			return types.InstallManifest{}, smokeerrors.NewAbortError(ctx, "pack")
		}
		return types.InstallManifest{}, &smokeerrors.PackError{
			Spec:      pc.Spec,
			Workspace: pc.Workspace,
			Cwd:       pc.Workspace.LocalPath,
			Err:       err,
		}
	}
	if ctx.Err() != nil {
		return types.InstallManifest{}, smokeerrors.NewAbortError(ctx, "pack")
	}

	switch {
	case artifact == nil:
		return types.InstallManifest{}, &smokeerrors.PackParseError{Spec: pc.Spec, Workspace: pc.Workspace, Reason: "no artifact returned"}
	case artifact.PkgSpec == "":
		return types.InstallManifest{}, &smokeerrors.PackParseError{Spec: pc.Spec, Workspace: pc.Workspace, Reason: "artifact has no package spec"}
	case artifact.PkgName == "":
		return types.InstallManifest{}, &smokeerrors.PackParseError{Spec: pc.Spec, Workspace: pc.Workspace, Reason: "artifact has no package name"}
	}

	return types.InstallManifest{
		PkgSpec:     artifact.PkgSpec,
		PkgName:     artifact.PkgName,
		Cwd:         pc.TmpDir,
		InstallPath: installPath(pc.TmpDir, artifact.PkgName),
		LocalPath:   pc.Workspace.LocalPath,
	}, nil
}

// installActor installs one manifest. A non-zero exit is an InstallError.
func installActor(ctx context.Context, pm pkgmanager.PkgManager, ic *pkgmanager.InstallContext) (types.InstallResult, error) {
	if ctx.Err() != nil {
		return types.InstallResult{}, smokeerrors.NewAbortError(ctx, "install")
	}

	raw, err := pm.Install(ctx, ic)
	if err != nil {
		if aborted(ctx, err) {
			return types.InstallResult{}, smokeerrors.NewAbortError(ctx, "install")
		}
		return types.InstallResult{}, &smokeerrors.InstallError{Spec: ic.Spec, Manifest: ic.Manifest, Result: raw, Err: err}
	}
	if ctx.Err() != nil {
		return types.InstallResult{}, smokeerrors.NewAbortError(ctx, "install")
	}
	if raw == nil {
		return types.InstallResult{}, &smokeerrors.InstallError{
			Spec:     ic.Spec,
			Manifest: ic.Manifest,
			Err:      &smokeerrors.ValidationError{Field: "install result", Reason: "no result returned"},
		}
	}
	if raw.Failed() {
		return types.InstallResult{}, &smokeerrors.InstallError{Spec: ic.Spec, Manifest: ic.Manifest, Result: raw}
	}

	return types.InstallResult{
		Type:       types.ResultOk,
		PkgManager: ic.Spec,
		Manifest:   ic.Manifest,
		RawResult:  raw,
	}, nil
}

// prepareLintActor reads the installed package.json of a workspace and
// builds its lint manifest
func prepareLintActor(ctx context.Context, installed types.InstallManifest, ws types.WorkspaceInfo) (types.LintManifest, error) {
	if ctx.Err() != nil {
		return types.LintManifest{}, smokeerrors.NewAbortError(ctx, "lint")
	}

	pkgJSONPath := filepath.Join(installed.InstallPath, "package.json")
	data, err := os.ReadFile(pkgJSONPath)
	if err != nil {
		return types.LintManifest{}, fmt.Errorf("failed to read installed package.json: %w", err)
	}

	var pkgJSON map[string]any
	if err := json.Unmarshal(data, &pkgJSON); err != nil {
		return types.LintManifest{}, fmt.Errorf("failed to parse %s: %w", pkgJSONPath, err)
	}

	return types.LintManifest{
		PkgName:     installed.PkgName,
		InstallPath: installed.InstallPath,
		PkgJSON:     pkgJSON,
		Workspace:   ws,
	}, nil
}

// ruleActor runs one rule against one lint manifest. The returned error is
// only ever an AbortError; crashes and issues are encoded in the result.
func ruleActor(ctx context.Context, spec types.PkgManagerSpec, cr rule.Configured, manifest types.LintManifest, log logger.Logger) (result types.RuleResult, err error) {
	result = types.RuleResult{
		Rule:       cr.Name(),
		Severity:   cr.Severity,
		PkgManager: spec,
		Manifest:   manifest,
	}
	if ctx.Err() != nil {
		return result, smokeerrors.NewAbortError(ctx, "rule "+cr.Name())
	}

	crashed := func(cause error) {
		ruleErr := &smokeerrors.RuleError{Rule: cr.Name(), Spec: spec, Manifest: manifest, Err: cause}
		result.Type = types.ResultError
		result.Error = ruleErr
		result.ErrorText = ruleErr.Error()
	}
	defer recoverTo(log, "rule "+cr.Name(), crashed)

	issues, checkErr := cr.Rule.Check(ctx, &rule.Context{
		Spec:     spec,
		Manifest: manifest,
		Severity: cr.Severity,
		Opts:     cr.Opts,
		Logger:   log,
	})
	if checkErr != nil {
		if aborted(ctx, checkErr) {
			return result, smokeerrors.NewAbortError(ctx, "rule "+cr.Name())
		}
		crashed(checkErr)
		return result, nil
	}

	for i := range issues {
		if issues[i].Rule == "" {
			issues[i].Rule = cr.Name()
		}
		if issues[i].Severity == "" {
			issues[i].Severity = cr.Severity
		}
	}
	result.Issues = issues
	if len(issues) > 0 {
		result.Type = types.ResultFailed
	} else {
		result.Type = types.ResultOk
	}
	return result, nil
}

// scriptActor runs one script. The returned error is only ever an
// AbortError; failures are encoded in the result.
func scriptActor(ctx context.Context, pm pkgmanager.PkgManager, rc *pkgmanager.RunScriptContext) (types.RunScriptResult, error) {
	result := types.RunScriptResult{PkgManager: rc.Spec, Manifest: rc.Manifest}
	if ctx.Err() != nil {
		return result, smokeerrors.NewAbortError(ctx, "script "+rc.Manifest.Script)
	}

	raw, err := pm.RunScript(ctx, rc)
	result.RawResult = raw
	switch {
	case err != nil && smokeerrors.Is(err, smokeerrors.ErrUnknownScript):
		result.Type = types.ResultSkipped
		result.SkipReason = err.Error()
	case aborted(ctx, err):
		return result, smokeerrors.NewAbortError(ctx, "script "+rc.Manifest.Script)
	case err != nil:
		runErr := &smokeerrors.RunScriptError{Spec: rc.Spec, Manifest: rc.Manifest, Err: err}
		result.Type = types.ResultError
		result.Error = runErr
		result.ErrorText = runErr.Error()
	case raw == nil:
		runErr := &smokeerrors.RunScriptError{
			Spec:     rc.Spec,
			Manifest: rc.Manifest,
			Err:      &smokeerrors.ValidationError{Field: "script result", Reason: "no result returned"},
		}
		result.Type = types.ResultError
		result.Error = runErr
		result.ErrorText = runErr.Error()
	case raw.Failed():
		failed := &smokeerrors.ScriptFailedError{Spec: rc.Spec, Manifest: rc.Manifest, Result: raw}
		result.Type = types.ResultFailed
		result.Error = failed
		result.ErrorText = failed.Error()
	default:
		result.Type = types.ResultOk
	}
	return result, nil
}

var unsafeDirChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// startupActor creates the sandbox and runs the optional setup hook. On a
// setup failure the sandbox path is still returned so it can be pruned.
func startupActor(ctx context.Context, env pkgmanager.Envelope, base pkgmanager.Context) (*pkgmanager.Context, error) {
	if ctx.Err() != nil {
		return nil, smokeerrors.NewAbortError(ctx, "startup")
	}

	prefix := "smoker-" + unsafeDirChars.ReplaceAllString(env.Spec.String(), "_") + "-"
	tmpDir, err := os.MkdirTemp("", prefix)
	if err != nil {
		return nil, &smokeerrors.TempDirError{Spec: env.Spec, Err: err}
	}

	pc := base
	pc.Spec = env.Spec
	pc.TmpDir = tmpDir

	if s, ok := env.PkgManager.(pkgmanager.Setupper); ok {
		if err := s.Setup(ctx, &pc); err != nil {
			if aborted(ctx, err) {
				return &pc, smokeerrors.NewAbortError(ctx, "setup")
			}
			return &pc, &smokeerrors.LifecycleError{Spec: env.Spec, Hook: "setup", TmpDir: tmpDir, Err: err}
		}
	}
	return &pc, nil
}

// shutdownActor runs the optional teardown hook and then prunes or retains
// the sandbox. Every failure is returned; none stops the rest of shutdown.
func shutdownActor(ctx context.Context, env pkgmanager.Envelope, pc *pkgmanager.Context, linger bool, timeout time.Duration) (lingered bool, errs []error) {
	if pc == nil {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if t, ok := env.PkgManager.(pkgmanager.Teardowner); ok {
		if err := t.Teardown(ctx, pc); err != nil {
			errs = append(errs, &smokeerrors.LifecycleError{Spec: env.Spec, Hook: "teardown", TmpDir: pc.TmpDir, Err: err})
		}
	}

	if pc.TmpDir == "" {
		return false, errs
	}
	if linger {
		return true, errs
	}
	if err := os.RemoveAll(pc.TmpDir); err != nil {
		errs = append(errs, &smokeerrors.CleanupError{Spec: env.Spec, TmpDir: pc.TmpDir, Err: err})
	}
	return false, errs
}

// additionalManifest builds the install manifest for an extra dependency
// such as "lodash@4" or "@scope/pkg@^1"
func additionalManifest(dep, tmpDir string) types.InstallManifest {
	name := dep
	if i := strings.LastIndex(dep, "@"); i > 0 {
		name = dep[:i]
	}
	return types.InstallManifest{
		PkgSpec:      dep,
		PkgName:      name,
		Cwd:          tmpDir,
		InstallPath:  installPath(tmpDir, name),
		IsAdditional: true,
	}
}
