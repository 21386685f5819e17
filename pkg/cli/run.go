package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/smoker/smoker/internal/engine"
	"github.com/smoker/smoker/pkg/config"
	"github.com/smoker/smoker/pkg/logger"
	"github.com/smoker/smoker/pkg/process"
	"github.com/smoker/smoker/pkg/reporter"
	"github.com/smoker/smoker/pkg/types"
)

var errSmokeFailed = errors.New("smoke test failed")

// exitInterrupted is the conventional exit code after SIGINT
const exitInterrupted = 130

func (c *CLI) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [scripts...]",
		Short: "Pack, install, lint and run scripts",
		Long: `Pack every selected workspace, install the tarballs into a scratch
project once per package manager, lint the installed packages and run the
given scripts in each of them.

Flags override the config file; SMOKER_* environment variables override
both (e.g. SMOKER_PM="npm@9 npm@10", SMOKER_BAIL=true).`,
		Example: `  smoker run smoke
  smoker run --pm npm@9 --pm npm@10 --all test
  smoker run --no-lint --json smoke`,
		RunE: c.runSmoke,
	}

	flags := cmd.Flags()
	flags.StringSlice("pm", nil, "package manager to test with, e.g. npm, npm@9 (repeatable)")
	flags.StringSliceP("workspace", "w", nil, "workspace to test, by name or path (repeatable)")
	flags.BoolP("all", "a", false, "test every workspace")
	flags.Bool("include-root", false, "also test the workspace root when using --all")
	flags.StringSlice("add", nil, "additional dependency to install alongside the packages (repeatable)")
	flags.Bool("lint", true, "lint installed packages")
	flags.Bool("no-lint", false, "skip linting")
	flags.Bool("bail", false, "stop running scripts after the first failure")
	flags.Bool("linger", false, "keep the scratch directories after the run")
	flags.StringSlice("reporter", nil, "reporter to use (repeatable)")
	flags.Bool("json", false, "print the result as JSON instead of progress")
	flags.Bool("verbose", false, "show output of every command")
	flags.Int("pack-concurrency", 0, "packs running at once per package manager")
	flags.Int("script-concurrency", 0, "scripts running at once per package manager")
	flags.Duration("shutdown-timeout", 0, "how long to wait for a clean shutdown")

	return cmd
}

func (c *CLI) runSmoke(cmd *cobra.Command, args []string) error {
	opts, err := c.buildOptions(args)
	if err != nil {
		return err
	}

	pm := process.NewManager(c.logger.WithTarget("process"))
	ctx := pm.Start(cmd.Context())
	defer pm.Stop()

	factory := engine.NewDependencyFactory(opts, c.logger, c.output)
	deps, err := factory.CreateWithOverrides(c.overrides)
	if err != nil {
		return err
	}

	res, err := engine.New(opts, c.logger, deps).Run(ctx)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	var sigErr *process.SignalError
	switch {
	case res.Aborted && errors.As(context.Cause(ctx), &sigErr):
		return &ExitError{Code: exitInterrupted, Err: sigErr}
	case res.Type == types.ResultFailed:
		return &ExitError{Code: 1, Err: errSmokeFailed}
	}
	return nil
}

// buildOptions merges defaults, the config file and flags or environment
// variables, in increasing precedence
func (c *CLI) buildOptions(args []string) (types.SmokerOptions, error) {
	cwd, err := filepath.Abs(c.config.Cwd)
	if err != nil {
		return types.SmokerOptions{}, fmt.Errorf("invalid working directory: %w", err)
	}

	m := config.NewManager()
	path := c.config.ConfigFile
	if path == "" {
		if path, err = m.FindConfig(cwd); err != nil {
			return types.SmokerOptions{}, err
		}
	}

	var fileCfg *config.Config
	if path != "" {
		if fileCfg, err = m.LoadConfig(path); err != nil {
			return types.SmokerOptions{}, fmt.Errorf("invalid config %s: %w", path, err)
		}
		c.logger.Debug("Loaded config file", logger.WithField("path", path))
	}
	opts := m.ToOptions(fileCfg, cwd)

	v := c.viper
	if v.IsSet("pm") {
		opts.PkgManagers = v.GetStringSlice("pm")
	}
	if v.IsSet("workspace") {
		opts.Workspaces = v.GetStringSlice("workspace")
	}
	if v.IsSet("all") {
		opts.All = v.GetBool("all")
	}
	if v.IsSet("include-root") {
		opts.IncludeRoot = v.GetBool("include-root")
	}
	if v.IsSet("add") {
		opts.AdditionalDeps = v.GetStringSlice("add")
	}
	if v.IsSet("lint") {
		opts.Lint = v.GetBool("lint")
	}
	if v.GetBool("no-lint") {
		opts.Lint = false
	}
	if v.IsSet("bail") {
		opts.Bail = v.GetBool("bail")
	}
	if v.IsSet("linger") {
		opts.Linger = v.GetBool("linger")
	}
	if v.IsSet("reporter") {
		opts.Reporters = v.GetStringSlice("reporter")
	}
	if v.GetBool("json") {
		opts.Reporters = []string{reporter.JSONName}
	}
	if v.IsSet("verbose") {
		opts.Verbose = v.GetBool("verbose")
	}
	if v.IsSet("pack-concurrency") {
		opts.PackConcurrency = v.GetInt("pack-concurrency")
	}
	if v.IsSet("script-concurrency") {
		opts.ScriptConcurrency = v.GetInt("script-concurrency")
	}
	if v.IsSet("shutdown-timeout") {
		opts.ShutdownTimeout = v.GetDuration("shutdown-timeout")
	}
	if len(args) > 0 {
		opts.Scripts = args
	}

	if opts.PackConcurrency < 0 || opts.ScriptConcurrency < 0 {
		return types.SmokerOptions{}, fmt.Errorf("concurrency must not be negative")
	}
	if opts.ShutdownTimeout < 0 {
		return types.SmokerOptions{}, fmt.Errorf("shutdown timeout must not be negative: %s", opts.ShutdownTimeout)
	}
	if opts.IncludeRoot && !opts.All {
		c.logger.Warn("--include-root has no effect without --all")
	}
	return opts.WithDefaults(), nil
}
