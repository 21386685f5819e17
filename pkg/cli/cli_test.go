package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smoker/smoker/internal/engine"
	"github.com/smoker/smoker/pkg/config"
	smokeerrors "github.com/smoker/smoker/pkg/errors"
	"github.com/smoker/smoker/pkg/event"
	"github.com/smoker/smoker/pkg/mocks"
	"github.com/smoker/smoker/pkg/pkgmanager"
	"github.com/smoker/smoker/pkg/plugin"
	"github.com/smoker/smoker/pkg/types"
)

// stubPM packs and installs nothing; scripts named "fail" exit 1
type stubPM struct {
	packErr error
}

func (s *stubPM) Pack(_ context.Context, pc *pkgmanager.PackContext) (*types.PackArtifact, error) {
	if s.packErr != nil {
		return nil, s.packErr
	}
	return &types.PackArtifact{
		PkgSpec: filepath.Join(pc.TmpDir, pc.Workspace.PkgName+"-1.0.0.tgz"),
		PkgName: pc.Workspace.PkgName,
	}, nil
}

func (s *stubPM) Install(_ context.Context, ic *pkgmanager.InstallContext) (*types.ExecResult, error) {
	return &types.ExecResult{Command: "stub", Args: []string{"install", ic.Manifest.PkgSpec}}, nil
}

func (s *stubPM) RunScript(_ context.Context, rc *pkgmanager.RunScriptContext) (*types.ExecResult, error) {
	res := &types.ExecResult{Command: "stub", Args: []string{"run", rc.Manifest.Script}}
	if rc.Manifest.Script == "fail" {
		res.ExitCode = 1
	}
	return res, nil
}

func stubRegistry(t *testing.T, pm *stubPM) *plugin.Registry {
	t.Helper()
	reg := plugin.NewRegistry()
	require.NoError(t, reg.Register(&plugin.Plugin{
		Name:    "stub-plugin",
		Version: "1.0.0",
		PkgManagers: []pkgmanager.Definition{{
			Name:        "stub",
			Description: "does nothing",
			New: func(types.PkgManagerSpec) (pkgmanager.PkgManager, error) {
				return pm, nil
			},
		}},
	}))
	return reg
}

type cliFixture struct {
	cli      *CLI
	out      *bytes.Buffer
	errOut   *bytes.Buffer
	listener *mocks.RecordingListener
	dir      string
}

func newCLIFixture(t *testing.T, pm *stubPM) *cliFixture {
	t.Helper()
	dir := t.TempDir()
	f := &cliFixture{
		out:      &bytes.Buffer{},
		errOut:   &bytes.Buffer{},
		listener: mocks.NewRecordingListener("rec"),
		dir:      dir,
	}
	f.cli = NewCLIWithOutput(NewConfig(), f.out, f.errOut).WithDependencies(engine.Dependencies{
		Finder: &mocks.MockWorkspaceFinder{Workspaces: []types.WorkspaceInfo{{
			PkgName:     "widget",
			PkgJSONPath: filepath.Join(dir, "package.json"),
			LocalPath:   dir,
		}}},
		Resolver:  stubRegistry(t, pm),
		Listeners: []event.Listener{f.listener},
	})
	return f
}

func (f *cliFixture) execute(args ...string) error {
	return f.cli.Execute(append(args, "--cwd", f.dir))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCLI_Version(t *testing.T) {
	cfg := NewConfig()
	cfg.Version = "1.2.3"
	out := &bytes.Buffer{}
	c := NewCLIWithOutput(cfg, out, &bytes.Buffer{})

	require.NoError(t, c.Execute([]string{"--version"}))
	assert.Equal(t, "smoker v1.2.3\n", out.String())
}

func TestCLI_Run(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		f := newCLIFixture(t, &stubPM{})
		require.NoError(t, f.execute("run", "--pm", "stub", "--no-lint", "smoke"))

		names := f.listener.Names()
		require.NotEmpty(t, names)
		assert.Equal(t, event.NameBeforeExit, names[len(names)-1])
		assert.Equal(t, 1, f.listener.Count(event.NameSmokeOk))
		assert.Equal(t, 1, f.listener.Count(event.NameRunScriptOk))
		assert.Zero(t, f.listener.Count(event.NameLintBegin))
		assert.True(t, f.listener.Flushed())
	})

	t.Run("failed script exits 1", func(t *testing.T) {
		f := newCLIFixture(t, &stubPM{})
		err := f.execute("run", "--pm", "stub", "--no-lint", "fail")
		require.Error(t, err)

		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 1, exitErr.Code)
		assert.ErrorIs(t, err, errSmokeFailed)
		assert.Equal(t, 1, f.listener.Count(event.NameSmokeFailed))
	})

	t.Run("pack error exits 1", func(t *testing.T) {
		f := newCLIFixture(t, &stubPM{packErr: assert.AnError})
		err := f.execute("run", "--pm", "stub", "--no-lint", "smoke")
		require.Error(t, err)

		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 1, exitErr.Code)
		var packErr *smokeerrors.PackError
		assert.ErrorAs(t, err, &packErr)
		assert.Equal(t, 1, f.listener.Count(event.NameSmokeError))
	})

	t.Run("unknown package manager", func(t *testing.T) {
		f := newCLIFixture(t, &stubPM{})
		err := f.execute("run", "--pm", "ghostpm", "smoke")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ghostpm")
	})
}

// prepareRun parses args against the run command the way Execute would
func prepareRun(t *testing.T, c *CLI, args ...string) *cobra.Command {
	t.Helper()
	cmd, _, err := c.rootCmd.Find([]string{"run"})
	require.NoError(t, err)
	require.NoError(t, cmd.ParseFlags(args))
	require.NoError(t, c.initializeConfig(cmd, nil))
	return cmd
}

func TestCLI_BuildOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		dir := t.TempDir()
		c := NewCLIWithOutput(NewConfig(), &bytes.Buffer{}, &bytes.Buffer{})
		prepareRun(t, c, "--cwd", dir)

		opts, err := c.buildOptions(nil)
		require.NoError(t, err)
		assert.Equal(t, dir, opts.Cwd)
		assert.Equal(t, []string{types.DefaultPkgManager}, opts.PkgManagers)
		assert.True(t, opts.Lint)
		assert.Equal(t, types.DefaultPackConcurrency, opts.PackConcurrency)
		assert.Equal(t, types.DefaultShutdownTimeout, opts.ShutdownTimeout)
	})

	t.Run("flags and env override config file", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "smoker.config.yaml"), `
version: "1.0"
pkgManager: [npm@9]
script: [smoke]
bail: true
packConcurrency: 2
scriptConcurrency: 5
`)
		t.Setenv("SMOKER_LINGER", "true")
		t.Setenv("SMOKER_SCRIPT_CONCURRENCY", "3")

		c := NewCLIWithOutput(NewConfig(), &bytes.Buffer{}, &bytes.Buffer{})
		prepareRun(t, c, "--cwd", dir, "--pm", "npm@10", "--pm", "npm@11")

		opts, err := c.buildOptions(nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"npm@10", "npm@11"}, opts.PkgManagers)
		assert.Equal(t, []string{"smoke"}, opts.Scripts)
		assert.True(t, opts.Bail)
		assert.True(t, opts.Linger)
		assert.Equal(t, 2, opts.PackConcurrency)
		assert.Equal(t, 3, opts.ScriptConcurrency)
	})

	t.Run("positional scripts replace configured ones", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "smoker.config.json"), `{"script": ["smoke"]}`)

		c := NewCLIWithOutput(NewConfig(), &bytes.Buffer{}, &bytes.Buffer{})
		prepareRun(t, c, "--cwd", dir)

		opts, err := c.buildOptions([]string{"test", "e2e"})
		require.NoError(t, err)
		assert.Equal(t, []string{"test", "e2e"}, opts.Scripts)
	})

	t.Run("json and no-lint", func(t *testing.T) {
		c := NewCLIWithOutput(NewConfig(), &bytes.Buffer{}, &bytes.Buffer{})
		prepareRun(t, c, "--cwd", t.TempDir(), "--json", "--no-lint", "--reporter", "console")

		opts, err := c.buildOptions(nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"json"}, opts.Reporters)
		assert.False(t, opts.Lint)
	})

	t.Run("explicit config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "custom.json")
		writeFile(t, path, `{"version": "1.0", "all": true, "includeRoot": true}`)

		c := NewCLIWithOutput(NewConfig(), &bytes.Buffer{}, &bytes.Buffer{})
		prepareRun(t, c, "--cwd", dir, "--config", path)

		opts, err := c.buildOptions(nil)
		require.NoError(t, err)
		assert.True(t, opts.All)
		assert.True(t, opts.IncludeRoot)
	})

	t.Run("invalid config file", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "smoker.config.json"), `{"version": "9.9"}`)

		c := NewCLIWithOutput(NewConfig(), &bytes.Buffer{}, &bytes.Buffer{})
		prepareRun(t, c, "--cwd", dir)

		_, err := c.buildOptions(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid config")
	})

	t.Run("negative concurrency", func(t *testing.T) {
		c := NewCLIWithOutput(NewConfig(), &bytes.Buffer{}, &bytes.Buffer{})
		prepareRun(t, c, "--cwd", t.TempDir(), "--pack-concurrency=-1")

		_, err := c.buildOptions(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "negative")
	})
}

func TestCLI_List(t *testing.T) {
	tests := []struct {
		what string
		want []string
	}{
		{what: "pkg-managers", want: []string{"NAME", "npm"}},
		{what: "rules", want: []string{"SEVERITY", "no-banned-files", "no-missing-entry-point"}},
		{what: "reporters", want: []string{"console", "json"}},
	}

	for _, tt := range tests {
		t.Run(tt.what, func(t *testing.T) {
			out := &bytes.Buffer{}
			c := NewCLIWithOutput(NewConfig(), out, &bytes.Buffer{})
			require.NoError(t, c.Execute([]string{"list", tt.what}))
			for _, want := range tt.want {
				assert.Contains(t, out.String(), want)
			}
		})
	}

	t.Run("unknown", func(t *testing.T) {
		c := NewCLIWithOutput(NewConfig(), &bytes.Buffer{}, &bytes.Buffer{})
		assert.Error(t, c.Execute([]string{"list", "plugins"}))
	})
}

func TestCLI_Init(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "package.json"), `{
  "name": "mono",
  "private": true,
  "workspaces": ["packages/*"],
  "scripts": {"smoke": "node smoke.js"}
}`)

	initCmd := func(args ...string) (string, error) {
		out := &bytes.Buffer{}
		c := NewCLIWithOutput(NewConfig(), out, &bytes.Buffer{})
		err := c.Execute(append([]string{"init", "--cwd", dir}, args...))
		return out.String(), err
	}

	out, err := initCmd()
	require.NoError(t, err)
	assert.Contains(t, out, "Created configuration")

	path := filepath.Join(dir, "smoker.config.json")
	cfg, err := config.NewManager().LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.All)
	assert.Equal(t, []string{"smoke"}, cfg.Scripts)
	assert.Equal(t, config.CurrentVersion, cfg.Version)

	_, err = initCmd()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = initCmd("--force")
	assert.NoError(t, err)
}

func TestCLI_InitWithoutManifest(t *testing.T) {
	c := NewCLIWithOutput(NewConfig(), &bytes.Buffer{}, &bytes.Buffer{})
	err := c.Execute([]string{"init", "--cwd", t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "package.json")
}

func TestExitError(t *testing.T) {
	err := &ExitError{Code: 130}
	assert.Equal(t, "exit status 130", err.Error())

	wrapped := &ExitError{Code: 1, Err: errSmokeFailed}
	assert.ErrorIs(t, wrapped, errSmokeFailed)
	assert.Equal(t, errSmokeFailed.Error(), wrapped.Error())
}
