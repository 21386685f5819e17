package engine

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	pcontext "github.com/smoker/smoker/pkg/context"
	smokeerrors "github.com/smoker/smoker/pkg/errors"
	"github.com/smoker/smoker/pkg/event"
	"github.com/smoker/smoker/pkg/logger"
	"github.com/smoker/smoker/pkg/pkgmanager"
	"github.com/smoker/smoker/pkg/rule"
	"github.com/smoker/smoker/pkg/types"
)

type pipelineState int

const (
	stateIdle pipelineState = iota
	stateStartup
	stateWorking
	stateShutdown
	stateDone
)

func (s pipelineState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateStartup:
		return "startup"
	case stateWorking:
		return "working"
	case stateShutdown:
		return "shutdown"
	case stateDone:
		return "done"
	}
	return "unknown"
}

const bailReason = "bail"

var errBail = smokeerrors.New("script bailed")

// PipelineConfig configures one pipeline
type PipelineConfig struct {
	Envelope          pkgmanager.Envelope
	Workspaces        []types.WorkspaceInfo
	Scripts           []string
	Lint              bool
	Rules             []rule.Configured
	AdditionalDeps    []string
	Linger            bool
	Bail              bool
	PackConcurrency   int
	ScriptConcurrency int
	ShutdownTimeout   time.Duration
	Verbose           bool
	Logger            logger.Logger

	// Emit receives every backend and item event in order
	Emit func(event.PhaseEvent)
	// OnDone receives the output once the pipeline has shut down
	OnDone func(*PipelineOutput)
}

// PipelineOutput is the terminal report of a pipeline
type PipelineOutput struct {
	Spec     types.PkgManagerSpec
	Type     types.ResultType
	Error    *smokeerrors.MachineError
	Aborted  bool
	Noop     bool
	TmpDir   string
	Lingered bool
	Installs []types.InstallResult
	Lint     []types.LintResult
	Scripts  []types.RunScriptResult
}

type pipelineMsg interface{ pipelineMsg() }

type (
	msgAbort       struct{ reason error }
	msgStartupDone struct {
		pc  *pkgmanager.Context
		err error
	}
	msgPackDone struct {
		ws       types.WorkspaceInfo
		manifest types.InstallManifest
		err      error
	}
	msgInstallDone struct {
		manifest types.InstallManifest
		result   types.InstallResult
		err      error
	}
	msgLintPrepared struct {
		installed types.InstallManifest
		ws        types.WorkspaceInfo
		manifest  types.LintManifest
		err       error
	}
	msgRuleDone struct {
		result types.RuleResult
		err    error
	}
	msgScriptDone struct {
		manifest types.RunScriptManifest
		result   types.RunScriptResult
		err      error
	}
	msgShutdownDone struct {
		lingered bool
		errs     []error
	}
)

func (msgAbort) pipelineMsg()        {}
func (msgStartupDone) pipelineMsg()  {}
func (msgPackDone) pipelineMsg()     {}
func (msgInstallDone) pipelineMsg()  {}
func (msgLintPrepared) pipelineMsg() {}
func (msgRuleDone) pipelineMsg()     {}
func (msgScriptDone) pipelineMsg()   {}
func (msgShutdownDone) pipelineMsg() {}

// Pipeline drives pack, install, lint and run-script for one backend. All
// state below mb is owned by the run goroutine.
type Pipeline struct {
	cfg  PipelineConfig
	spec types.PkgManagerSpec
	mb   *mailbox[pipelineMsg]
	done chan struct{}

	log          logger.Logger
	state        pipelineState
	ctx          context.Context
	workCtx      context.Context
	workCancel   context.CancelCauseFunc
	scriptCtx    context.Context
	scriptCancel context.CancelCauseFunc
	pkgCtx       *pkgmanager.Context

	packQueue    *Queue[types.WorkspaceInfo]
	installQueue *Queue[types.InstallManifest]
	scriptQueue  *Queue[types.RunScriptManifest]
	packSem      *semaphore.Weighted
	scriptSem    *semaphore.Weighted
	inflight     int
	installing   bool

	byLocalPath    map[string]types.WorkspaceInfo
	packed         []types.InstallManifest
	installs       []types.InstallResult
	ruleResults    map[string][]types.RuleResult
	rulesDone      int
	lintStarted    bool
	scripts        []types.RunScriptResult
	scriptsStarted bool
	bailed         bool

	errs     *smokeerrors.MachineError
	halted   bool
	aborted  bool
	lingered bool
	output   *PipelineOutput
}

// NewPipeline creates a pipeline. It does nothing until Start.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Envelope.PkgManager == nil {
		panic("pipeline requires a package manager")
	}
	if cfg.PackConcurrency < 1 {
		cfg.PackConcurrency = types.DefaultPackConcurrency
	}
	if cfg.ScriptConcurrency < 1 {
		cfg.ScriptConcurrency = types.DefaultScriptConcurrency
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = types.DefaultShutdownTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	if cfg.Emit == nil {
		cfg.Emit = func(event.PhaseEvent) {}
	}

	byLocalPath := make(map[string]types.WorkspaceInfo, len(cfg.Workspaces))
	for _, ws := range cfg.Workspaces {
		byLocalPath[ws.LocalPath] = ws
	}

	return &Pipeline{
		cfg:          cfg,
		spec:         cfg.Envelope.Spec,
		mb:           newMailbox[pipelineMsg](),
		done:         make(chan struct{}),
		packQueue:    NewQueue[types.WorkspaceInfo](),
		installQueue: NewQueue[types.InstallManifest](),
		scriptQueue:  NewQueue[types.RunScriptManifest](),
		packSem:      semaphore.NewWeighted(int64(cfg.PackConcurrency)),
		scriptSem:    semaphore.NewWeighted(int64(cfg.ScriptConcurrency)),
		byLocalPath:  byLocalPath,
		ruleResults:  make(map[string][]types.RuleResult),
		errs:         smokeerrors.NewMachineError(cfg.Envelope.Spec.String()),
	}
}

// Spec returns the backend spec this pipeline drives
func (p *Pipeline) Spec() types.PkgManagerSpec { return p.spec }

// Start runs the pipeline in its own goroutine. Cancelling ctx aborts it.
func (p *Pipeline) Start(ctx context.Context) {
	go p.run(ctx)
}

// Abort stops every in-flight operation and moves the pipeline to shutdown
func (p *Pipeline) Abort(reason error) {
	p.mb.send(msgAbort{reason: reason})
}

// Done is closed once the pipeline has shut down
func (p *Pipeline) Done() <-chan struct{} { return p.done }

// Output returns the terminal report; nil until Done is closed
func (p *Pipeline) Output() *PipelineOutput {
	select {
	case <-p.done:
		return p.output
	default:
		return nil
	}
}

func (p *Pipeline) run(ctx context.Context) {
	defer close(p.done)

	ctx = pcontext.WithComponent(ctx, "pipeline:"+p.spec.String())
	p.ctx = ctx
	p.log = logger.WithContext(ctx, p.cfg.Logger.WithTarget(p.spec.String()))
	p.workCtx, p.workCancel = context.WithCancelCause(ctx)
	defer p.workCancel(nil)

	stop := context.AfterFunc(ctx, func() { p.Abort(context.Cause(ctx)) })
	defer stop()

	if len(p.cfg.Workspaces) == 0 {
		p.log.Debug("No workspaces; nothing to do")
		p.state = stateDone
		p.finish()
		return
	}

	p.enterStartup()
	for p.state != stateDone {
		<-p.mb.ready()
		for _, msg := range p.mb.drain() {
			p.handle(msg)
			if p.state == stateDone {
				break
			}
		}
	}
}

func (p *Pipeline) handle(msg pipelineMsg) {
	switch m := msg.(type) {
	case msgAbort:
		p.abort(m.reason)
	case msgStartupDone:
		p.inflight--
		p.onStartupDone(m)
	case msgPackDone:
		p.inflight--
		p.packSem.Release(1)
		p.onPackDone(m)
	case msgInstallDone:
		p.inflight--
		p.installing = false
		p.onInstallDone(m)
	case msgLintPrepared:
		p.inflight--
		p.onLintPrepared(m)
	case msgRuleDone:
		p.inflight--
		p.onRuleDone(m)
	case msgScriptDone:
		p.inflight--
		p.scriptSem.Release(1)
		p.onScriptDone(m)
	case msgShutdownDone:
		p.inflight--
		p.onShutdownDone(m)
		return
	}
	p.advance()
}

// advance moves the machine forward after every message
func (p *Pipeline) advance() {
	switch p.state {
	case stateStartup:
		if p.halted && p.inflight == 0 {
			p.enterShutdown()
		}
	case stateWorking:
		if p.halted {
			if p.inflight == 0 {
				p.enterShutdown()
			}
			return
		}
		p.pump()
		if p.workDone() {
			p.enterShutdown()
		}
	}
}

// spawn starts an operation actor. Every actor sends exactly one message
// back, even when it panics.
func (p *Pipeline) spawn(name string, fn func() pipelineMsg, onPanic func(error) pipelineMsg) {
	p.inflight++
	go func() {
		var msg pipelineMsg
		defer func() { p.mb.send(msg) }()
		defer recoverTo(p.log, name, func(err error) { msg = onPanic(err) })
		msg = fn()
	}()
}

func (p *Pipeline) emit(ev event.PhaseEvent) {
	p.cfg.Emit(ev)
}

func (p *Pipeline) source() event.Source {
	return event.Source{Spec: p.spec}
}

func (p *Pipeline) lintEnabled() bool {
	return p.cfg.Lint && len(p.cfg.Rules) > 0
}

func (p *Pipeline) expectedInstalls() int {
	return len(p.cfg.Workspaces) + len(p.cfg.AdditionalDeps)
}

func (p *Pipeline) expectedRules() int {
	return len(p.cfg.Workspaces) * len(p.cfg.Rules)
}

func (p *Pipeline) expectedScripts() int {
	return len(p.cfg.Workspaces) * len(p.cfg.Scripts)
}

// fail records a fatal error and halts the pipeline
func (p *Pipeline) fail(err error) {
	p.log.Error("Pipeline failed", logger.WithError(err), logger.WithField("state", p.state.String()))
	p.errs.Append(err)
	p.halt(err)
}

func (p *Pipeline) abort(reason error) {
	if p.state >= stateShutdown || p.halted {
		return
	}
	p.log.Warn("Pipeline aborted", logger.WithField("state", p.state.String()), logger.WithField("reason", reason))
	p.aborted = true
	p.halt(&smokeerrors.AbortError{Op: p.spec.String(), Reason: reason})
}

// halt cancels every in-flight actor and drops queued work. No further
// actors are spawned afterwards.
func (p *Pipeline) halt(cause error) {
	if p.halted {
		return
	}
	p.halted = true
	p.workCancel(cause)
	p.packQueue.Clear()
	p.installQueue.Clear()
	p.scriptQueue.Clear()
}

// startup

func (p *Pipeline) enterStartup() {
	p.state = stateStartup
	p.log.Debug("Creating sandbox")

	base := pkgmanager.Context{Logger: p.log, Verbose: p.cfg.Verbose}
	p.spawn("startup",
		func() pipelineMsg {
			pc, err := startupActor(p.workCtx, p.cfg.Envelope, base)
			return msgStartupDone{pc: pc, err: err}
		},
		func(err error) pipelineMsg {
			return msgStartupDone{err: &smokeerrors.LifecycleError{Spec: p.spec, Hook: "setup", Err: err}}
		})
}

func (p *Pipeline) onStartupDone(m msgStartupDone) {
	p.pkgCtx = m.pc
	if m.err != nil {
		if !smokeerrors.IsAbort(m.err) {
			p.fail(m.err)
		}
		return
	}
	if p.halted {
		return
	}
	p.log.Debug("Sandbox ready", logger.WithField("tmp_dir", m.pc.TmpDir))
	p.enterWorking()
}

// working

func (p *Pipeline) enterWorking() {
	p.state = stateWorking
	p.scriptCtx, p.scriptCancel = context.WithCancelCause(p.workCtx)

	p.emit(event.PkgManagerPackBegin{Source: p.source()})
	p.emit(event.PkgManagerInstallBegin{Source: p.source()})

	p.packQueue.Enqueue(p.cfg.Workspaces...)
	for _, dep := range p.cfg.AdditionalDeps {
		p.installQueue.Enqueue(additionalManifest(dep, p.pkgCtx.TmpDir))
	}
}

// pump admits queued work: packing and scripts up to their limits,
// installing one at a time
func (p *Pipeline) pump() {
	for p.packSem.TryAcquire(1) {
		ws, ok := p.packQueue.Dequeue()
		if !ok {
			p.packSem.Release(1)
			break
		}
		p.spawnPack(ws)
	}

	if !p.installing {
		if manifest, ok := p.installQueue.Dequeue(); ok {
			p.spawnInstall(manifest)
		}
	}

	for p.scriptSem.TryAcquire(1) {
		manifest, ok := p.scriptQueue.Dequeue()
		if !ok {
			p.scriptSem.Release(1)
			break
		}
		p.spawnScript(manifest)
	}
}

func (p *Pipeline) workDone() bool {
	if p.inflight > 0 || p.packQueue.Size()+p.installQueue.Size()+p.scriptQueue.Size() > 0 {
		return false
	}
	if len(p.packed) < len(p.cfg.Workspaces) || len(p.installs) < p.expectedInstalls() {
		return false
	}
	if p.lintEnabled() && p.rulesDone < p.expectedRules() {
		return false
	}
	return len(p.scripts) >= p.expectedScripts()
}

// packing

func (p *Pipeline) spawnPack(ws types.WorkspaceInfo) {
	p.emit(event.PkgPackBegin{Source: p.source(), Workspace: ws})
	pc := &pkgmanager.PackContext{Context: *p.pkgCtx, Workspace: ws}
	p.spawn("pack "+ws.PkgName,
		func() pipelineMsg {
			manifest, err := packActor(pcontext.WithPhase(p.workCtx, "pack"), p.cfg.Envelope.PkgManager, pc)
			return msgPackDone{ws: ws, manifest: manifest, err: err}
		},
		func(err error) pipelineMsg {
			return msgPackDone{ws: ws, err: &smokeerrors.PackError{Spec: p.spec, Workspace: ws, Cwd: ws.LocalPath, Err: err}}
		})
}

func (p *Pipeline) onPackDone(m msgPackDone) {
	if m.err != nil {
		if smokeerrors.IsAbort(m.err) {
			return
		}
		p.emit(event.PkgPackFailed{Source: p.source(), Workspace: m.ws, Err: m.err})
		if !p.halted {
			p.emit(event.PkgManagerPackFailed{Source: p.source(), Err: m.err})
		}
		p.fail(m.err)
		return
	}
	if p.halted {
		return
	}

	p.packed = append(p.packed, m.manifest)
	p.log.Debug("Packed workspace", logger.WithField("pkg", m.manifest.PkgName), logger.WithField("spec", m.manifest.PkgSpec))
	p.emit(event.PkgPackOk{Source: p.source(), Workspace: m.ws, Manifest: m.manifest})
	p.installQueue.Enqueue(m.manifest)

	if len(p.packed) == len(p.cfg.Workspaces) {
		p.emit(event.PkgManagerPackOk{Source: p.source(), Manifests: append([]types.InstallManifest(nil), p.packed...)})
	}
}

// installing

func (p *Pipeline) spawnInstall(manifest types.InstallManifest) {
	p.installing = true
	p.emit(event.PkgInstallBegin{Source: p.source(), Manifest: manifest})
	ic := &pkgmanager.InstallContext{Context: *p.pkgCtx, Manifest: manifest}
	p.spawn("install "+manifest.PkgName,
		func() pipelineMsg {
			result, err := installActor(pcontext.WithPhase(p.workCtx, "install"), p.cfg.Envelope.PkgManager, ic)
			return msgInstallDone{manifest: manifest, result: result, err: err}
		},
		func(err error) pipelineMsg {
			return msgInstallDone{manifest: manifest, err: &smokeerrors.InstallError{Spec: p.spec, Manifest: manifest, Err: err}}
		})
}

func (p *Pipeline) onInstallDone(m msgInstallDone) {
	if m.err != nil {
		if smokeerrors.IsAbort(m.err) {
			return
		}
		p.emit(event.PkgInstallFailed{Source: p.source(), Manifest: m.manifest, Err: m.err})
		if !p.halted {
			p.emit(event.PkgManagerInstallFailed{Source: p.source(), Err: m.err})
		}
		p.fail(m.err)
		return
	}
	if p.halted {
		return
	}

	p.installs = append(p.installs, m.result)
	p.log.Debug("Installed package", logger.WithField("pkg", m.manifest.PkgName))
	p.emit(event.PkgInstallOk{Source: p.source(), Manifest: m.manifest, Result: m.result})

	if !m.manifest.IsAdditional {
		ws := p.byLocalPath[m.manifest.LocalPath]
		p.requestLint(m.manifest, ws)
		p.requestScripts(m.manifest, ws)
	}

	if len(p.installs) == p.expectedInstalls() {
		p.emit(event.PkgManagerInstallOk{Source: p.source(), Results: append([]types.InstallResult(nil), p.installs...)})
	}
}

// linting

func (p *Pipeline) requestLint(installed types.InstallManifest, ws types.WorkspaceInfo) {
	if !p.lintEnabled() {
		return
	}
	if !p.lintStarted {
		p.lintStarted = true
		p.emit(event.PkgManagerLintBegin{Source: p.source()})
	}
	p.spawn("prepare lint "+installed.PkgName,
		func() pipelineMsg {
			manifest, err := prepareLintActor(pcontext.WithPhase(p.workCtx, "lint"), installed, ws)
			return msgLintPrepared{installed: installed, ws: ws, manifest: manifest, err: err}
		},
		func(err error) pipelineMsg {
			return msgLintPrepared{installed: installed, ws: ws, err: err}
		})
}

func (p *Pipeline) onLintPrepared(m msgLintPrepared) {
	if m.err != nil {
		if smokeerrors.IsAbort(m.err) || p.halted {
			return
		}
		// every rule of this workspace becomes a rule error; never fatal
		manifest := types.LintManifest{PkgName: m.installed.PkgName, InstallPath: m.installed.InstallPath, Workspace: m.ws}
		for _, cr := range p.cfg.Rules {
			ruleErr := &smokeerrors.RuleError{Rule: cr.Name(), Spec: p.spec, Manifest: manifest, Err: m.err}
			p.recordRule(types.RuleResult{
				Type:       types.ResultError,
				Rule:       cr.Name(),
				Severity:   cr.Severity,
				PkgManager: p.spec,
				Manifest:   manifest,
				Error:      ruleErr,
				ErrorText:  ruleErr.Error(),
			})
		}
		return
	}
	if p.halted {
		return
	}

	for _, cr := range p.cfg.Rules {
		p.spawnRule(cr, m.manifest)
	}
}

func (p *Pipeline) spawnRule(cr rule.Configured, manifest types.LintManifest) {
	p.emit(event.RuleBegin{Source: p.source(), Rule: cr.Name(), Manifest: manifest})
	log := p.log.WithTarget(p.spec.String() + ":" + cr.Name())
	p.spawn("rule "+cr.Name(),
		func() pipelineMsg {
			result, err := ruleActor(pcontext.WithPhase(p.workCtx, "lint"), p.spec, cr, manifest, log)
			return msgRuleDone{result: result, err: err}
		},
		func(err error) pipelineMsg {
			ruleErr := &smokeerrors.RuleError{Rule: cr.Name(), Spec: p.spec, Manifest: manifest, Err: err}
			return msgRuleDone{result: types.RuleResult{
				Type:       types.ResultError,
				Rule:       cr.Name(),
				Severity:   cr.Severity,
				PkgManager: p.spec,
				Manifest:   manifest,
				Error:      ruleErr,
				ErrorText:  ruleErr.Error(),
			}}
		})
}

func (p *Pipeline) onRuleDone(m msgRuleDone) {
	if m.err != nil || p.halted {
		return
	}
	p.recordRule(m.result)
}

func (p *Pipeline) recordRule(result types.RuleResult) {
	key := result.Manifest.Workspace.LocalPath
	p.ruleResults[key] = append(p.ruleResults[key], result)
	p.rulesDone++
	p.emit(event.RuleResultEvent(p.source(), result))

	if p.rulesDone == p.expectedRules() {
		results := p.lintResults()
		for _, lr := range results {
			if lr.HasErrors() {
				p.emit(event.PkgManagerLintFailed{Source: p.source(), Results: results})
				return
			}
		}
		p.emit(event.PkgManagerLintOk{Source: p.source(), Results: results})
	}
}

// lintResults groups rule results per workspace, in workspace order
func (p *Pipeline) lintResults() []types.LintResult {
	var results []types.LintResult
	for _, ws := range p.cfg.Workspaces {
		rr, ok := p.ruleResults[ws.LocalPath]
		if !ok {
			continue
		}
		lr := types.LintResult{
			Type:       types.ResultOk,
			PkgName:    ws.PkgName,
			PkgManager: p.spec,
			Results:    append([]types.RuleResult(nil), rr...),
		}
		if lr.HasErrors() {
			lr.Type = types.ResultFailed
		}
		results = append(results, lr)
	}
	return results
}

// running scripts

func (p *Pipeline) requestScripts(installed types.InstallManifest, ws types.WorkspaceInfo) {
	if len(p.cfg.Scripts) == 0 {
		return
	}
	if !p.scriptsStarted {
		p.scriptsStarted = true
		p.emit(event.PkgManagerRunScriptsBegin{Source: p.source()})
	}
	for _, script := range p.cfg.Scripts {
		manifest := types.RunScriptManifest{
			Script:    script,
			PkgName:   installed.PkgName,
			Cwd:       installed.InstallPath,
			Workspace: ws,
		}
		if p.bailed {
			p.recordScript(p.skippedScript(manifest, bailReason))
			continue
		}
		p.scriptQueue.Enqueue(manifest)
	}
}

func (p *Pipeline) spawnScript(manifest types.RunScriptManifest) {
	p.emit(event.RunScriptBegin{Source: p.source(), Manifest: manifest})
	rc := &pkgmanager.RunScriptContext{Context: *p.pkgCtx, Manifest: manifest}
	p.spawn("script "+manifest.Script,
		func() pipelineMsg {
			result, err := scriptActor(pcontext.WithPhase(p.scriptCtx, "script"), p.cfg.Envelope.PkgManager, rc)
			return msgScriptDone{manifest: manifest, result: result, err: err}
		},
		func(err error) pipelineMsg {
			runErr := &smokeerrors.RunScriptError{Spec: p.spec, Manifest: manifest, Err: err}
			return msgScriptDone{manifest: manifest, result: types.RunScriptResult{
				Type:       types.ResultError,
				PkgManager: p.spec,
				Manifest:   manifest,
				Error:      runErr,
				ErrorText:  runErr.Error(),
			}}
		})
}

func (p *Pipeline) onScriptDone(m msgScriptDone) {
	if p.halted {
		return
	}
	result := m.result
	if m.err != nil {
		if p.bailed {
			result = p.skippedScript(m.manifest, bailReason)
		} else {
			runErr := &smokeerrors.RunScriptError{Spec: p.spec, Manifest: m.manifest, Err: m.err}
			result.Type = types.ResultError
			result.Error = runErr
			result.ErrorText = runErr.Error()
		}
	}
	p.recordScript(result)

	if p.cfg.Bail && !p.bailed && (result.Type == types.ResultFailed || result.Type == types.ResultError) {
		p.bail(result)
	}
}

// bail cancels the remaining script work of this pipeline only. In-flight
// scripts and every later request are recorded as skipped.
func (p *Pipeline) bail(cause types.RunScriptResult) {
	p.bailed = true
	p.log.Warn("Script failed; skipping remaining scripts",
		logger.WithField("script", cause.Manifest.Script),
		logger.WithField("pkg", cause.Manifest.PkgName))
	p.scriptCancel(errBail)
	for _, manifest := range p.scriptQueue.Drain() {
		p.recordScript(p.skippedScript(manifest, bailReason))
	}
}

func (p *Pipeline) skippedScript(manifest types.RunScriptManifest, reason string) types.RunScriptResult {
	return types.RunScriptResult{
		Type:       types.ResultSkipped,
		PkgManager: p.spec,
		Manifest:   manifest,
		SkipReason: reason,
	}
}

func (p *Pipeline) recordScript(result types.RunScriptResult) {
	p.scripts = append(p.scripts, result)
	p.emit(event.ScriptResultEvent(p.source(), result))

	if len(p.scripts) == p.expectedScripts() {
		results := append([]types.RunScriptResult(nil), p.scripts...)
		for _, r := range results {
			if r.Type == types.ResultFailed || r.Type == types.ResultError {
				p.emit(event.PkgManagerRunScriptsFailed{Source: p.source(), Results: results})
				return
			}
		}
		p.emit(event.PkgManagerRunScriptsOk{Source: p.source(), Results: results})
	}
}

// shutdown

func (p *Pipeline) enterShutdown() {
	p.state = stateShutdown
	if p.scriptCancel != nil {
		p.scriptCancel(nil)
	}
	pc := p.pkgCtx
	p.spawn("shutdown",
		func() pipelineMsg {
			lingered, errs := shutdownActor(p.ctx, p.cfg.Envelope, pc, p.cfg.Linger, p.cfg.ShutdownTimeout)
			return msgShutdownDone{lingered: lingered, errs: errs}
		},
		func(err error) pipelineMsg {
			return msgShutdownDone{errs: []error{&smokeerrors.LifecycleError{Spec: p.spec, Hook: "teardown", Err: err}}}
		})
}

func (p *Pipeline) onShutdownDone(m msgShutdownDone) {
	for _, err := range m.errs {
		p.log.Warn("Shutdown error", logger.WithError(err))
	}
	p.errs.Append(m.errs...)
	p.lingered = m.lingered
	if p.lingered {
		p.log.Info("Leaving sandbox in place", logger.WithField("tmp_dir", p.pkgCtx.TmpDir))
	}
	p.state = stateDone
	p.finish()
}

func (p *Pipeline) finish() {
	out := &PipelineOutput{
		Spec:     p.spec,
		Type:     types.ResultOk,
		Aborted:  p.aborted,
		Noop:     len(p.cfg.Workspaces) == 0,
		Lingered: p.lingered,
		Installs: p.installs,
		Lint:     p.lintResults(),
		Scripts:  p.scripts,
	}
	if p.pkgCtx != nil {
		out.TmpDir = p.pkgCtx.TmpDir
	}
	if !p.errs.Empty() {
		out.Type = types.ResultError
		out.Error = p.errs
	}
	p.output = out

	if out.Type == types.ResultError {
		p.log.Error("Pipeline finished with errors", logger.WithError(out.Error))
	} else {
		p.log.Debug("Pipeline finished", logger.WithField("aborted", out.Aborted))
	}
	if p.cfg.OnDone != nil {
		p.cfg.OnDone(out)
	}
}
