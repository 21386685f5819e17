package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/smoker/smoker/internal/executor"
	smokeerrors "github.com/smoker/smoker/pkg/errors"
	"github.com/smoker/smoker/pkg/pkgmanager"
	"github.com/smoker/smoker/pkg/types"
)

const (
	npmBin      = "npm"
	npxBin      = "npx"
	npmVersions = ">=7.0.0"
)

// NPM drives the npm CLI. The system npm is used for "npm@system";
// any other version is run through npx.
type NPM struct {
	spec   types.PkgManagerSpec
	runner executor.Runner
}

// NewNPM creates an npm backend for spec
func NewNPM(spec types.PkgManagerSpec, runner executor.Runner) (*NPM, error) {
	if spec.Name != npmBin {
		return nil, fmt.Errorf("npm backend cannot serve %s", spec)
	}
	if runner == nil {
		return nil, fmt.Errorf("npm backend requires a command runner")
	}
	return &NPM{spec: spec, runner: runner}, nil
}

func npmDefinition(runner executor.Runner) pkgmanager.Definition {
	return pkgmanager.Definition{
		Name:        npmBin,
		Bin:         npmBin,
		Description: "npm, the Node.js package manager",
		Versions:    npmVersions,
		New: func(spec types.PkgManagerSpec) (pkgmanager.PkgManager, error) {
			return NewNPM(spec, runner)
		},
	}
}

// command builds an npm invocation for the configured version
func (n *NPM) command(dir string, args ...string) executor.Command {
	env := map[string]string{
		"npm_config_fund":            "false",
		"npm_config_audit":           "false",
		"npm_config_update_notifier": "false",
	}
	if n.spec.IsSystem {
		return executor.Command{Name: npmBin, Args: args, Dir: dir, Env: env}
	}
	return executor.Command{
		Name: npxBin,
		Args: append([]string{"--yes", "npm@" + n.spec.Version}, args...),
		Dir:  dir,
		Env:  env,
	}
}

// Setup seeds the sandbox with a package.json so installs stay inside it
func (n *NPM) Setup(ctx context.Context, c *pkgmanager.Context) error {
	data := []byte(`{"name":"smoker-sandbox","version":"0.0.0","private":true}` + "\n")
	if err := os.WriteFile(filepath.Join(c.TmpDir, "package.json"), data, 0o644); err != nil {
		return fmt.Errorf("failed to seed sandbox: %w", err)
	}
	return nil
}

type npmPackEntry struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Filename string `json:"filename"`
}

// Pack runs "npm pack --json" in the workspace and writes the tarball into
// the sandbox
func (n *NPM) Pack(ctx context.Context, pc *pkgmanager.PackContext) (*types.PackArtifact, error) {
	cmd := n.command(pc.Workspace.LocalPath, "pack", "--json", "--pack-destination", pc.TmpDir)
	result, err := n.runner.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if result.Failed() {
		return nil, fmt.Errorf("%s exited with code %d: %s", cmd, result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	entries, err := parsePackOutput(result.Stdout)
	if err != nil {
		return nil, err
	}
	entry := entries[0]
	return &types.PackArtifact{
		PkgSpec: filepath.Join(pc.TmpDir, filepath.Base(entry.Filename)),
		PkgName: entry.Name,
	}, nil
}

// parsePackOutput decodes the JSON npm pack prints. Lifecycle scripts may
// print before it, so everything ahead of the array is skipped.
func parsePackOutput(stdout string) ([]npmPackEntry, error) {
	start := strings.Index(stdout, "[")
	if start < 0 {
		return nil, fmt.Errorf("npm pack printed no JSON")
	}
	var entries []npmPackEntry
	if err := json.Unmarshal([]byte(stdout[start:]), &entries); err != nil {
		return nil, fmt.Errorf("failed to parse npm pack output: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("npm pack reported no tarball")
	}
	return entries, nil
}

// Install installs the manifest's package spec into the sandbox
func (n *NPM) Install(ctx context.Context, ic *pkgmanager.InstallContext) (*types.ExecResult, error) {
	cmd := n.command(ic.Manifest.Cwd, "install", "--no-save", "--no-package-lock", ic.Manifest.PkgSpec)
	return n.runner.Run(ctx, cmd)
}

// RunScript runs an npm script inside the installed package
func (n *NPM) RunScript(ctx context.Context, rc *pkgmanager.RunScriptContext) (*types.ExecResult, error) {
	pkgJSON, err := readPkgJSON(filepath.Join(rc.Manifest.Cwd, "package.json"))
	if err != nil {
		return nil, err
	}
	if _, ok := types.ManifestScripts(pkgJSON)[rc.Manifest.Script]; !ok {
		return nil, &smokeerrors.UnknownScriptError{Script: rc.Manifest.Script, PkgName: rc.Manifest.PkgName}
	}
	return n.runner.Run(ctx, n.command(rc.Manifest.Cwd, "run", rc.Manifest.Script))
}

func readPkgJSON(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var pkgJSON map[string]any
	if err := json.Unmarshal(data, &pkgJSON); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return pkgJSON, nil
}
