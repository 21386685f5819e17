package errors_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	smokeerrors "github.com/smoker/smoker/pkg/errors"
	"github.com/smoker/smoker/pkg/types"
)

func TestMachineError_AppendNeverDiscards(t *testing.T) {
	agg := smokeerrors.NewMachineError("smoker")
	assert.True(t, agg.Empty())
	assert.NoError(t, agg.ErrOrNil())

	packErr := &smokeerrors.PackError{Spec: types.PkgManagerSpec{Name: "npm", Version: "9.0.0"}, Err: fmt.Errorf("boom")}
	installErr := &smokeerrors.InstallError{Spec: types.PkgManagerSpec{Name: "yarn", Version: "1.22.0"}}

	agg.Append(packErr, nil)
	agg.Append(installErr)

	require.Equal(t, 2, agg.Len())
	assert.ErrorAs(t, agg, new(*smokeerrors.PackError))
	assert.ErrorAs(t, agg, new(*smokeerrors.InstallError))
	assert.Contains(t, agg.Error(), "2 errors occurred")
}

func TestMachineError_FlattensNested(t *testing.T) {
	inner := smokeerrors.NewMachineError("npm@9.0.0")
	inner.Append(fmt.Errorf("one"), fmt.Errorf("two"))

	outer := smokeerrors.NewMachineError("smoker")
	outer.Append(fmt.Errorf("zero"), inner)

	assert.Equal(t, 3, outer.Len())
}

func TestAbortError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := smokeerrors.NewAbortError(ctx, "pack")
	assert.True(t, smokeerrors.IsAbort(err))
	assert.ErrorIs(t, err, smokeerrors.ErrAborted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, smokeerrors.IsFatal(err))
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil", nil, false},
		{"pack", &smokeerrors.PackError{}, true},
		{"pack parse", &smokeerrors.PackParseError{}, true},
		{"install", &smokeerrors.InstallError{}, true},
		{"lifecycle", &smokeerrors.LifecycleError{Hook: "setup"}, true},
		{"tempdir", &smokeerrors.TempDirError{}, true},
		{"cleanup", &smokeerrors.CleanupError{}, true},
		{"unsupported", &smokeerrors.UnsupportedPackageManagerError{Requested: "ghostpm@1"}, true},
		{"rule", &smokeerrors.RuleError{Rule: "no-banned-files"}, false},
		{"script failed", &smokeerrors.ScriptFailedError{}, false},
		{"run script", &smokeerrors.RunScriptError{}, false},
		{"wrapped rule", fmt.Errorf("ctx: %w", &smokeerrors.RuleError{}), false},
		{"abort", &smokeerrors.AbortError{Op: "install"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, smokeerrors.IsFatal(tt.err))
		})
	}
}

func TestUnsupportedPackageManagerError_KeepsRequestedVerbatim(t *testing.T) {
	err := &smokeerrors.UnsupportedPackageManagerError{Requested: "ghostpm@1", Known: []string{"npm"}}
	assert.Contains(t, err.Error(), "ghostpm@1")
}

func TestInstallError_ReportsExitCode(t *testing.T) {
	err := &smokeerrors.InstallError{
		Spec:     types.PkgManagerSpec{Name: "npm", Version: "9.0.0"},
		Manifest: types.InstallManifest{PkgSpec: "/tmp/foo-1.0.0.tgz", Cwd: "/tmp/sandbox"},
		Result:   &types.ExecResult{Command: "npm", ExitCode: 1},
	}
	assert.Contains(t, err.Error(), "exit code 1")
}
