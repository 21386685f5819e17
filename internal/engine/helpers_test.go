package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	smokeerrors "github.com/smoker/smoker/pkg/errors"
	"github.com/smoker/smoker/pkg/event"
	"github.com/smoker/smoker/pkg/pkgmanager"
	"github.com/smoker/smoker/pkg/rule"
	"github.com/smoker/smoker/pkg/types"
)

const testTimeout = 10 * time.Second

// fakePM is a deterministic backend. Install writes the installed
// package.json so lint preparation and scripts find it.
type fakePM struct {
	scripts map[string]string
	// exits maps script name to exit code; missing means 0
	exits map[string]int
	// blockScripts run until their context is cancelled
	blockScripts map[string]bool
	packErr      map[string]error
	installExit  map[string]int
	setupErr     error
	teardownErr  error
	// blockPack makes Pack wait for cancellation
	blockPack   bool
	installTime time.Duration

	installing    atomic.Int32
	maxInstalling atomic.Int32

	mu        sync.Mutex
	installed []string
	ran       []string
}

func newFakePM() *fakePM {
	return &fakePM{
		scripts:      map[string]string{"smoke": "node smoke.js", "test": "node test.js", "fail": "exit 1"},
		exits:        map[string]int{"fail": 1},
		blockScripts: map[string]bool{},
		packErr:      map[string]error{},
		installExit:  map[string]int{},
		installTime:  2 * time.Millisecond,
	}
}

func (f *fakePM) Setup(_ context.Context, _ *pkgmanager.Context) error {
	return f.setupErr
}

func (f *fakePM) Teardown(_ context.Context, _ *pkgmanager.Context) error {
	return f.teardownErr
}

func (f *fakePM) Pack(ctx context.Context, pc *pkgmanager.PackContext) (*types.PackArtifact, error) {
	if f.blockPack {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := f.packErr[pc.Workspace.PkgName]; err != nil {
		return nil, err
	}
	name := pc.Workspace.PkgName
	return &types.PackArtifact{
		PkgSpec: filepath.Join(pc.TmpDir, name+"-1.0.0.tgz"),
		PkgName: name,
	}, nil
}

func (f *fakePM) Install(ctx context.Context, ic *pkgmanager.InstallContext) (*types.ExecResult, error) {
	n := f.installing.Add(1)
	defer f.installing.Add(-1)
	for {
		peak := f.maxInstalling.Load()
		if n <= peak || f.maxInstalling.CompareAndSwap(peak, n) {
			break
		}
	}

	select {
	case <-time.After(f.installTime):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	f.mu.Lock()
	f.installed = append(f.installed, ic.Manifest.PkgName)
	f.mu.Unlock()

	if code := f.installExit[ic.Manifest.PkgName]; code != 0 {
		return &types.ExecResult{Command: "fake", ExitCode: code, Stderr: "install failed"}, nil
	}
	if !ic.Manifest.IsAdditional {
		if err := writeInstalled(ic.Manifest.InstallPath, ic.Manifest.PkgName, f.scripts); err != nil {
			return nil, err
		}
	}
	return &types.ExecResult{Command: "fake", Args: []string{"install", ic.Manifest.PkgSpec}}, nil
}

func (f *fakePM) RunScript(ctx context.Context, rc *pkgmanager.RunScriptContext) (*types.ExecResult, error) {
	if _, ok := f.scripts[rc.Manifest.Script]; !ok {
		return nil, &smokeerrors.UnknownScriptError{Script: rc.Manifest.Script, PkgName: rc.Manifest.PkgName}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	f.mu.Lock()
	f.ran = append(f.ran, rc.Manifest.PkgName+":"+rc.Manifest.Script)
	f.mu.Unlock()
	if f.blockScripts[rc.Manifest.Script] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &types.ExecResult{
		Command:  "fake",
		Args:     []string{"run", rc.Manifest.Script},
		ExitCode: f.exits[rc.Manifest.Script],
	}, nil
}

func (f *fakePM) Installed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.installed...)
}

func (f *fakePM) Ran() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ran...)
}

func writeInstalled(dir, name string, scripts map[string]string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(map[string]any{"name": name, "version": "1.0.0", "main": "index.js", "scripts": scripts})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "package.json"), data, 0o644)
}

func testSpec(version string) types.PkgManagerSpec {
	return types.PkgManagerSpec{Name: "fake", Version: version}
}

func envelope(pm pkgmanager.PkgManager, version string) pkgmanager.Envelope {
	return pkgmanager.Envelope{Spec: testSpec(version), PkgManager: pm, Plugin: "test"}
}

func testWorkspaces(names ...string) []types.WorkspaceInfo {
	ws := make([]types.WorkspaceInfo, 0, len(names))
	for _, name := range names {
		ws = append(ws, types.WorkspaceInfo{
			PkgName:   name,
			LocalPath: filepath.Join("/repo/packages", name),
			PkgJSON:   map[string]any{"name": name},
		})
	}
	return ws
}

func okRule(name string) rule.Configured {
	return rule.Configured{
		Rule: rule.New(name, "always passes", types.SeverityError,
			func(context.Context, *rule.Context) ([]types.Issue, error) { return nil, nil }),
		Severity: types.SeverityError,
	}
}

func issueRule(name string, severity types.Severity) rule.Configured {
	return rule.Configured{
		Rule: rule.New(name, "always complains", severity,
			func(_ context.Context, rc *rule.Context) ([]types.Issue, error) {
				return []types.Issue{rc.Issue(name, "bad "+rc.Manifest.PkgName)}, nil
			}),
		Severity: severity,
	}
}

func panicRule(name string) rule.Configured {
	return rule.Configured{
		Rule: rule.New(name, "crashes", types.SeverityError,
			func(context.Context, *rule.Context) ([]types.Issue, error) { panic("boom") }),
		Severity: types.SeverityError,
	}
}

// recorder collects events from a pipeline or bus
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) add(ev event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) emitPhase(ev event.PhaseEvent) { r.add(ev) }

func (r *recorder) all() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...)
}

func (r *recorder) count(name event.Name) int {
	n := 0
	for _, ev := range r.all() {
		if ev.Name() == name {
			n++
		}
	}
	return n
}

func (r *recorder) first(name event.Name) (event.Event, bool) {
	for _, ev := range r.all() {
		if ev.Name() == name {
			return ev, true
		}
	}
	return nil, false
}

// runPipeline starts a pipeline and waits for its output
func runPipeline(t *testing.T, ctx context.Context, cfg PipelineConfig) (*PipelineOutput, *recorder) {
	t.Helper()
	rec := &recorder{}
	cfg.Emit = rec.emitPhase
	p := NewPipeline(cfg)
	p.Start(ctx)

	select {
	case <-p.Done():
	case <-time.After(testTimeout):
		t.Fatalf("pipeline %s did not finish", p.Spec())
	}
	out := p.Output()
	require.NotNil(t, out)
	t.Cleanup(func() {
		if out.TmpDir != "" {
			_ = os.RemoveAll(out.TmpDir)
		}
	})
	return out, rec
}

// fakeResolver resolves every request to fixed envelopes
type fakeResolver struct {
	envelopes map[string]pkgmanager.Envelope
	rules     []rule.Configured
	ruleErr   error
	// none makes ResolvePkgManagers succeed with nothing
	none bool
}

func (f *fakeResolver) Metadata() []types.PluginMetadata {
	return []types.PluginMetadata{{Name: "test", Version: "1.0.0"}}
}

func (f *fakeResolver) ResolvePkgManagers(requested []string) ([]pkgmanager.Envelope, error) {
	if f.none {
		return nil, nil
	}
	envs := make([]pkgmanager.Envelope, 0, len(requested))
	known := make([]string, 0, len(f.envelopes))
	for name := range f.envelopes {
		known = append(known, name)
	}
	for _, req := range requested {
		env, ok := f.envelopes[req]
		if !ok {
			return nil, &smokeerrors.UnsupportedPackageManagerError{Requested: req, Known: known}
		}
		envs = append(envs, env)
	}
	return envs, nil
}

func (f *fakeResolver) ResolveRules(map[string]types.RuleConfig) ([]rule.Configured, error) {
	if f.ruleErr != nil {
		return nil, f.ruleErr
	}
	return f.rules, nil
}
