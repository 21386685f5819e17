// Package cli provides the command-line interface for smoker
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smoker/smoker/internal/engine"
	"github.com/smoker/smoker/pkg/logger"
)

// EnvPrefix prefixes every environment variable the CLI reads, e.g.
// SMOKER_PM or SMOKER_SHUTDOWN_TIMEOUT
const EnvPrefix = "SMOKER"

// ExitError carries the process exit code of a command
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// CLI owns the command tree and everything the commands share
type CLI struct {
	config    *Config
	rootCmd   *cobra.Command
	viper     *viper.Viper
	logger    logger.Logger
	overrides engine.Dependencies
	output    io.Writer
	errorOut  io.Writer
}

// NewCLI creates a new CLI instance with the given configuration
func NewCLI(config *Config) *CLI {
	if config == nil {
		config = NewConfig()
	}

	cli := &CLI{
		config:   config,
		viper:    viper.New(),
		output:   os.Stdout,
		errorOut: os.Stderr,
	}

	cli.setupCommands()
	return cli
}

// NewCLIWithOutput creates a CLI with custom output writers (for testing)
func NewCLIWithOutput(config *Config, output, errorOut io.Writer) *CLI {
	cli := NewCLI(config)
	cli.output = output
	cli.errorOut = errorOut
	cli.rootCmd.SetOut(output)
	cli.rootCmd.SetErr(errorOut)
	return cli
}

// WithDependencies replaces the finder, resolver or listeners used by run.
// Unset fields keep their defaults.
func (c *CLI) WithDependencies(deps engine.Dependencies) *CLI {
	c.overrides = deps
	return c
}

// Execute runs the CLI with the given arguments
func (c *CLI) Execute(args []string) error {
	return c.ExecuteContext(context.Background(), args)
}

// ExecuteContext runs the CLI with context support
func (c *CLI) ExecuteContext(ctx context.Context, args []string) error {
	c.rootCmd.SetArgs(args)
	return c.rootCmd.ExecuteContext(ctx)
}

func (c *CLI) setupCommands() {
	c.rootCmd = &cobra.Command{
		Use:   "smoker",
		Short: "Smoke test your packages the way your users install them",
		Long: `smoker packs each workspace, installs the tarballs into a scratch
project with every requested package manager, lints what was installed and
runs your smoke scripts against it.`,

		PersistentPreRunE: c.initializeConfig,
		SilenceUsage:      true,
		SilenceErrors:     true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	c.setupFlags()

	c.rootCmd.Version = c.config.Version
	c.rootCmd.SetVersionTemplate("smoker v{{.Version}}\n")

	c.rootCmd.AddCommand(c.newRunCmd())
	c.rootCmd.AddCommand(c.newListCmd())
	c.rootCmd.AddCommand(c.newInitCmd())
}

func (c *CLI) setupFlags() {
	flags := c.rootCmd.PersistentFlags()

	flags.StringVar(&c.config.ConfigFile, "config", "", "config file (default: smoker.config.json or smoker.config.yaml)")
	flags.StringVarP(&c.config.Cwd, "cwd", "C", c.config.Cwd, "project root directory")
	flags.StringVar(&c.config.Verbosity, "verbosity", c.config.Verbosity, "log level (debug, info, warn, error)")
}

func (c *CLI) initializeConfig(cmd *cobra.Command, args []string) error {
	v := c.viper
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	c.config.ConfigFile = v.GetString("config")
	c.config.Cwd = v.GetString("cwd")
	c.config.Verbosity = v.GetString("verbosity")

	c.logger = logger.CreateLoggerWithOutput("", c.config.Verbosity, c.errorOut)
	c.logger.Debug("CLI initialized",
		logger.WithField("command", cmd.Name()),
		logger.WithField("cwd", c.config.Cwd))
	return nil
}

// Helper methods for user-facing output

func (c *CLI) printSuccess(message string) {
	fmt.Fprintf(c.output, "%s %s\n", color.GreenString("[smoker]"), message)
}

func (c *CLI) printError(message string) {
	fmt.Fprintf(c.errorOut, "%s %s\n", color.RedString("[smoker]"), message)
}

func (c *CLI) printInfo(message string) {
	fmt.Fprintf(c.output, "%s %s\n", color.CyanString("[smoker]"), message)
}

// Main runs the CLI against os.Args and returns the process exit code
func Main(ctx context.Context, version string) int {
	cfg := NewConfig()
	cfg.Version = version
	c := NewCLI(cfg)

	err := c.ExecuteContext(ctx, os.Args[1:])
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			c.printError(exitErr.Err.Error())
		}
		return exitErr.Code
	}
	c.printError(err.Error())
	return 1
}
