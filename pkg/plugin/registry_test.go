package plugin_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	smokeerrors "github.com/smoker/smoker/pkg/errors"
	"github.com/smoker/smoker/pkg/event"
	"github.com/smoker/smoker/pkg/pkgmanager"
	"github.com/smoker/smoker/pkg/plugin"
	"github.com/smoker/smoker/pkg/rule"
	"github.com/smoker/smoker/pkg/types"
)

type stubPM struct{ spec types.PkgManagerSpec }

func (s *stubPM) Pack(context.Context, *pkgmanager.PackContext) (*types.PackArtifact, error) {
	return nil, nil
}

func (s *stubPM) Install(context.Context, *pkgmanager.InstallContext) (*types.ExecResult, error) {
	return nil, nil
}

func (s *stubPM) RunScript(context.Context, *pkgmanager.RunScriptContext) (*types.ExecResult, error) {
	return nil, nil
}

func newRegistry(t *testing.T) *plugin.Registry {
	t.Helper()
	reg := plugin.NewRegistry()
	require.NoError(t, reg.Register(&plugin.Plugin{
		Name:    "builtin",
		Version: "1.0.0",
		PkgManagers: []pkgmanager.Definition{{
			Name:     "npm",
			Versions: ">=7.0.0",
			New: func(spec types.PkgManagerSpec) (pkgmanager.PkgManager, error) {
				return &stubPM{spec: spec}, nil
			},
		}},
		Rules: []rule.Rule{
			rule.New("no-missing-entry-point", "", types.SeverityError,
				func(context.Context, *rule.Context) ([]types.Issue, error) { return nil, nil }),
		},
		Reporters: []plugin.ReporterDefinition{{
			Name: "silent",
			New: func(plugin.ReporterOptions) (event.Listener, error) {
				return event.ListenerFunc(func(context.Context, event.Event) error { return nil }), nil
			},
		}},
	}))
	return reg
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	reg := newRegistry(t)
	err := reg.Register(&plugin.Plugin{Name: "builtin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_ResolvePkgManagers(t *testing.T) {
	reg := newRegistry(t)

	tests := []struct {
		name      string
		requested []string
		want      []string
		wantErr   string
	}{
		{name: "default", requested: nil, want: []string{"npm@system"}},
		{name: "system", requested: []string{"npm"}, want: []string{"npm@system"}},
		{name: "exact", requested: []string{"npm@9.8.1"}, want: []string{"npm@9.8.1"}},
		{name: "major", requested: []string{"npm@9"}, want: []string{"npm@9"}},
		{name: "range", requested: []string{"npm@^10.1"}, want: []string{"npm@^10.1"}},
		{name: "dist tag", requested: []string{"npm@latest"}, want: []string{"npm@latest"}},
		{name: "dedupe", requested: []string{"npm@9", "NPM@9"}, want: []string{"npm@9"}},
		{name: "too old", requested: []string{"npm@6.14.0"}, wantErr: "npm@6.14.0"},
		{name: "unknown", requested: []string{"ghostpm@1"}, wantErr: "ghostpm@1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envs, err := reg.ResolvePkgManagers(tt.requested)
			if tt.wantErr != "" {
				var unsupported *smokeerrors.UnsupportedPackageManagerError
				require.ErrorAs(t, err, &unsupported)
				assert.Equal(t, tt.wantErr, unsupported.Requested)
				assert.Equal(t, []string{"npm"}, unsupported.Known)
				return
			}
			require.NoError(t, err)
			got := make([]string, 0, len(envs))
			for _, env := range envs {
				got = append(got, env.Spec.String())
				assert.Equal(t, "builtin", env.Plugin)
				assert.NotNil(t, env.PkgManager)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_Metadata(t *testing.T) {
	reg := newRegistry(t)
	md := reg.Metadata()
	require.Len(t, md, 1)
	assert.Equal(t, "builtin", md[0].Name)
	assert.Equal(t, []string{"npm"}, md[0].PkgManagers)
	assert.Equal(t, []string{"no-missing-entry-point"}, md[0].Rules)
	assert.Equal(t, []string{"silent"}, md[0].Reporters)
}

func TestRegistry_ResolveReporters(t *testing.T) {
	reg := newRegistry(t)

	listeners, err := reg.ResolveReporters([]string{"silent"}, plugin.ReporterOptions{})
	require.NoError(t, err)
	require.Len(t, listeners, 1)

	_, err = reg.ResolveReporters([]string{"loud"}, plugin.ReporterOptions{})
	require.Error(t, err)
}

func TestRegistry_ResolveRules(t *testing.T) {
	reg := newRegistry(t)
	rules, err := reg.ResolveRules(map[string]types.RuleConfig{
		"no-missing-entry-point": {Severity: types.SeverityWarn},
	})
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, types.SeverityWarn, rules[0].Severity)
}
