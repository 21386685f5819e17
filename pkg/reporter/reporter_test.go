package reporter_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smoker/smoker/pkg/event"
	"github.com/smoker/smoker/pkg/reporter"
	"github.com/smoker/smoker/pkg/types"
)

var npm = types.PkgManagerSpec{Name: "npm", Version: "system", IsSystem: true}

func TestConsole_Progress(t *testing.T) {
	var buf bytes.Buffer
	c := reporter.NewConsole(&buf, false)
	ctx := context.Background()

	events := []event.Event{
		event.SmokeBegin{PkgManagers: []types.PkgManagerSpec{npm}, Workspaces: []types.WorkspaceInfo{{PkgName: "a"}}},
		event.PackBegin{PhaseBegin: event.PhaseBegin{Total: 1}},
		event.PackOk{Manifests: []types.InstallManifest{{PkgName: "a"}}},
		event.RunScriptFailed{Result: types.RunScriptResult{
			PkgManager: npm,
			Manifest:   types.RunScriptManifest{Script: "test", PkgName: "a"},
			RawResult:  &types.ExecResult{ExitCode: 2, Stderr: "boom"},
		}},
		event.SmokeFailed{Results: &types.SmokeResults{Duration: 2 * time.Second}},
	}
	for _, ev := range events {
		require.NoError(t, c.Handle(ctx, ev))
	}

	out := buf.String()
	assert.Contains(t, out, "1 workspace with npm@system")
	assert.Contains(t, out, "Packing 1 package…")
	assert.Contains(t, out, "Packed 1 package")
	assert.Contains(t, out, "a › test (npm@system) exited with code 2")
	assert.Contains(t, out, "    boom")
	assert.Contains(t, out, "Smoke test failed")
	assert.NotContains(t, out, "\x1b[", "colors must be off for non-terminal writers")
}

func TestConsole_VerboseOnlyEvents(t *testing.T) {
	ok := event.RunScriptOk{Result: types.RunScriptResult{
		PkgManager: npm,
		Manifest:   types.RunScriptManifest{Script: "test", PkgName: "a"},
	}}

	var quiet bytes.Buffer
	require.NoError(t, reporter.NewConsole(&quiet, false).Handle(context.Background(), ok))
	assert.Empty(t, quiet.String())

	var loud bytes.Buffer
	require.NoError(t, reporter.NewConsole(&loud, true).Handle(context.Background(), ok))
	assert.Contains(t, loud.String(), "a › test")
}

func TestConsole_LintIssues(t *testing.T) {
	var buf bytes.Buffer
	c := reporter.NewConsole(&buf, false)

	require.NoError(t, c.Handle(context.Background(), event.RuleFailed{Result: types.RuleResult{
		Rule:     "no-banned-files",
		Manifest: types.LintManifest{PkgName: "a"},
		Issues: []types.Issue{
			{Rule: "no-banned-files", Message: "banned file .env found", Severity: types.SeverityError},
		},
	}}))
	require.NoError(t, c.Handle(context.Background(), event.Lingered{Directories: []string{"/tmp/smoker-1"}}))

	assert.Contains(t, buf.String(), "a (no-banned-files): banned file .env found")
	assert.Contains(t, buf.String(), "/tmp/smoker-1")
}

func TestJSON_WritesFinalResultOnFlush(t *testing.T) {
	var buf bytes.Buffer
	j := reporter.NewJSON(&buf)
	ctx := context.Background()

	results := &types.SmokeResults{
		Type:        types.ResultError,
		RunID:       "run_1",
		PkgManagers: []types.PkgManagerSpec{npm},
		Error:       errors.New("pack failed"),
		ErrorText:   "pack failed",
	}
	require.NoError(t, j.Handle(ctx, event.PackBegin{}))
	require.NoError(t, j.Handle(ctx, event.SmokeError{Results: results, Err: results.Error}))
	assert.Empty(t, buf.String(), "nothing is written before flush")

	require.NoError(t, j.Flush(ctx))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "error", decoded["type"])
	assert.Equal(t, "run_1", decoded["runId"])
	assert.Equal(t, "pack failed", decoded["error"])
}

func TestJSON_FlushWithoutResult(t *testing.T) {
	var buf bytes.Buffer
	j := reporter.NewJSON(&buf)

	require.NoError(t, j.Flush(context.Background()))
	assert.Empty(t, buf.String())
}
