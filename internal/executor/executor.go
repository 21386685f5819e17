// Package executor runs external commands on behalf of package-manager
// backends and captures their output.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/smoker/smoker/pkg/logger"
	"github.com/smoker/smoker/pkg/types"
)

// Runner executes a command. A command that starts and exits non-zero is
// not an error; its exit code is reported in the result.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*types.ExecResult, error)
}

// Command describes one external invocation
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  map[string]string
}

// String renders the command line
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Executor is the os/exec backed Runner
type Executor struct {
	logger  logger.Logger
	verbose bool
	// waitDelay bounds how long a cancelled command may take to exit
	waitDelay time.Duration
}

// New creates an Executor
func New(log logger.Logger, verbose bool) *Executor {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Executor{
		logger:    log,
		verbose:   verbose,
		waitDelay: 5 * time.Second,
	}
}

// Run executes cmd and waits for it to exit
func (e *Executor) Run(ctx context.Context, cmd Command) (*types.ExecResult, error) {
	if cmd.Name == "" {
		return nil, fmt.Errorf("no command given")
	}

	start := time.Now()
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.WaitDelay = e.waitDelay
	if len(cmd.Env) > 0 {
		c.Env = os.Environ()
		for k, v := range cmd.Env {
			c.Env = append(c.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	e.logger.Debug("Executing command", logger.WithField("cmd", cmd.String()), logger.WithField("cwd", cmd.Dir))
	runErr := c.Run()

	result := &types.ExecResult{
		Command:  cmd.Name,
		Args:     cmd.Args,
		Cwd:      cmd.Dir,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if ctx.Err() != nil {
		return result, fmt.Errorf("%s: %w", cmd.String(), context.Cause(ctx))
	}

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
	case errors.As(runErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		e.logger.Debug("Command exited non-zero",
			logger.WithField("cmd", cmd.String()),
			logger.WithField("exit_code", result.ExitCode))
	default:
		return result, fmt.Errorf("failed to run %s: %w", cmd.String(), runErr)
	}

	if e.verbose && result.Stdout != "" {
		e.logger.Debug("Command output", logger.WithField("output", result.Stdout))
	}
	return result, nil
}
