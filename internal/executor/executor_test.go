package executor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smoker/smoker/internal/executor"
	"github.com/smoker/smoker/pkg/logger"
)

func TestExecutor_Run(t *testing.T) {
	exec := executor.New(logger.NewNopLogger(), false)

	t.Run("captures output", func(t *testing.T) {
		dir := t.TempDir()
		result, err := exec.Run(context.Background(), executor.Command{
			Name: "sh",
			Args: []string{"-c", "echo out; echo err >&2"},
			Dir:  dir,
		})
		require.NoError(t, err)
		assert.Equal(t, 0, result.ExitCode)
		assert.Equal(t, "out\n", result.Stdout)
		assert.Equal(t, "err\n", result.Stderr)
		assert.Equal(t, dir, result.Cwd)
		assert.False(t, result.Failed())
	})

	t.Run("non-zero exit is not an error", func(t *testing.T) {
		result, err := exec.Run(context.Background(), executor.Command{
			Name: "sh",
			Args: []string{"-c", "exit 3"},
		})
		require.NoError(t, err)
		assert.Equal(t, 3, result.ExitCode)
		assert.True(t, result.Failed())
		assert.Equal(t, "sh -c exit 3", result.CommandLine())
	})

	t.Run("missing binary", func(t *testing.T) {
		_, err := exec.Run(context.Background(), executor.Command{Name: "definitely-not-a-real-binary-xyz"})
		assert.Error(t, err)
	})

	t.Run("empty command", func(t *testing.T) {
		_, err := exec.Run(context.Background(), executor.Command{})
		assert.Error(t, err)
	})

	t.Run("environment", func(t *testing.T) {
		result, err := exec.Run(context.Background(), executor.Command{
			Name: "sh",
			Args: []string{"-c", "printf %s \"$SMOKER_TEST_VALUE\""},
			Env:  map[string]string{"SMOKER_TEST_VALUE": "hello"},
		})
		require.NoError(t, err)
		assert.Equal(t, "hello", result.Stdout)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := exec.Run(ctx, executor.Command{Name: "sleep", Args: []string{"5"}})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
