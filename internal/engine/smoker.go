package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	pcontext "github.com/smoker/smoker/pkg/context"
	smokeerrors "github.com/smoker/smoker/pkg/errors"
	"github.com/smoker/smoker/pkg/event"
	"github.com/smoker/smoker/pkg/logger"
	"github.com/smoker/smoker/pkg/pkgmanager"
	"github.com/smoker/smoker/pkg/rule"
	"github.com/smoker/smoker/pkg/types"
)

// Smoker runs one pipeline per package manager, relays their events
// through the phase buses to every listener and folds the outputs into a
// single result.
type Smoker struct {
	opts      types.SmokerOptions
	logger    logger.Logger
	finder    WorkspaceFinder
	resolver  ComponentResolver
	listeners []event.Listener

	mu        sync.Mutex
	isRunning bool
}

// New creates a Smoker. Finder and Resolver are required.
func New(opts types.SmokerOptions, log logger.Logger, deps Dependencies) *Smoker {
	if deps.Finder == nil {
		panic("Finder dependency is required")
	}
	if deps.Resolver == nil {
		panic("Resolver dependency is required")
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Smoker{
		opts:      opts.WithDefaults(),
		logger:    log,
		finder:    deps.Finder,
		resolver:  deps.Resolver,
		listeners: deps.Listeners,
	}
}

// Run performs a complete smoke test. The returned error is non-nil only
// when the result type is error; failed scripts and lint errors are
// reported through the result.
func (s *Smoker) Run(ctx context.Context) (*types.SmokeResults, error) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil, fmt.Errorf("smoker is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	}()

	ctx = pcontext.WithComponent(pcontext.EnrichContext(ctx), "smoker")
	r := &smokeRun{
		s:         s,
		ctx:       ctx,
		log:       logger.WithContext(ctx, s.logger),
		mb:        newMailbox[runMsg](),
		started:   time.Now(),
		pipelines: make(map[string]*Pipeline),
		outputs:   make(map[string]*PipelineOutput),
		buses:     make(map[event.Phase]*Bus),
		errs:      smokeerrors.NewMachineError("smoker"),
	}
	return r.execute()
}

type runMsg interface{ runMsg() }

type (
	msgRunAbort     struct{ reason error }
	msgPipelineEmit struct{ ev event.PhaseEvent }
	msgPipelineDone struct{ out *PipelineOutput }
	msgBusEmit      struct{ ev event.Event }
	msgBusDone      struct{ result BusResult }
)

func (msgRunAbort) runMsg()     {}
func (msgPipelineEmit) runMsg() {}
func (msgPipelineDone) runMsg() {}
func (msgBusEmit) runMsg()      {}
func (msgBusDone) runMsg()      {}

// smokeRun is the state of a single Run call. Everything is owned by the
// goroutine calling Run.
type smokeRun struct {
	s       *Smoker
	ctx     context.Context
	log     logger.Logger
	mb      *mailbox[runMsg]
	started time.Time

	listeners  []*listenerActor
	workspaces []types.WorkspaceInfo
	plugins    []types.PluginMetadata
	envelopes  []pkgmanager.Envelope
	rules      []rule.Configured

	order        []string
	pipelines    map[string]*Pipeline
	outputs      map[string]*PipelineOutput
	buses        map[event.Phase]*Bus
	pendingBuses int
	busesStopped bool
	installSeen  bool

	aborted       bool
	abortDeadline <-chan time.Time
	errs          *smokeerrors.MachineError
}

func (r *smokeRun) execute() (*types.SmokeResults, error) {
	for _, l := range r.s.listeners {
		r.listeners = append(r.listeners, startListener(r.ctx, l, r.s.logger))
	}

	if err := r.init(); err != nil {
		if r.ctx.Err() != nil {
			r.aborted = true
			r.emit(event.Aborted{Reason: context.Cause(r.ctx)})
		} else {
			r.log.Error("Initialization failed", logger.WithError(err))
			r.errs.Append(err)
		}
		return r.shutdown(r.results())
	}

	if len(r.envelopes) == 0 {
		err := &smokeerrors.ValidationError{Field: "pkgManager", Reason: "no package manager resolved"}
		r.log.Error("Initialization failed", logger.WithError(err))
		r.errs.Append(err)
		return r.shutdown(r.results())
	}

	if len(r.workspaces) == 0 {
		r.log.Warn("No workspaces found; nothing to do")
		results := r.results()
		results.Noop = true
		return r.shutdown(results)
	}

	r.emit(event.SmokeBegin{
		RunID:       pcontext.GetRunID(r.ctx),
		PkgManagers: r.specs(),
		Workspaces:  r.workspaces,
		Plugins:     r.plugins,
		Scripts:     r.s.opts.Scripts,
		Lint:        r.lintEnabled(),
	})

	stop := context.AfterFunc(r.ctx, func() {
		r.mb.send(msgRunAbort{reason: context.Cause(r.ctx)})
	})
	defer stop()

	r.startBuses()
	r.startPipelines()
	r.loop()

	return r.shutdown(r.results())
}

// init discovers workspaces and resolves components in parallel
func (r *smokeRun) init() error {
	opts := r.s.opts
	g, gctx := NewSafeGroup(pcontext.WithPhase(r.ctx, "init"), r.log)

	g.Go(func() error {
		ws, err := r.s.finder.Find(gctx, opts)
		if err != nil {
			return fmt.Errorf("workspace discovery failed: %w", err)
		}
		r.workspaces = ws
		return nil
	})
	g.Go(func() error {
		r.plugins = r.s.resolver.Metadata()
		return nil
	})
	g.Go(func() error {
		envs, err := r.s.resolver.ResolvePkgManagers(opts.PkgManagers)
		if err != nil {
			return err
		}
		r.envelopes = envs
		return nil
	})
	if opts.Lint {
		g.Go(func() error {
			rules, err := r.s.resolver.ResolveRules(opts.Rules)
			if err != nil {
				return fmt.Errorf("invalid rule configuration: %w", err)
			}
			r.rules = rules
			return nil
		})
	}
	return g.Wait()
}

func (r *smokeRun) lintEnabled() bool {
	return r.s.opts.Lint && len(r.rules) > 0
}

func (r *smokeRun) specs() []types.PkgManagerSpec {
	specs := make([]types.PkgManagerSpec, 0, len(r.envelopes))
	for _, env := range r.envelopes {
		specs = append(specs, env.Spec)
	}
	return specs
}

func (r *smokeRun) ruleNames() []string {
	names := make([]string, 0, len(r.rules))
	for _, cr := range r.rules {
		names = append(names, cr.Name())
	}
	return names
}

func (r *smokeRun) emit(ev event.Event) {
	for _, a := range r.listeners {
		a.send(ev)
	}
}

// startBuses creates one bus per requested phase. Pack and install listen
// immediately; lint and run-scripts wait for the first install.
func (r *smokeRun) startBuses() {
	phases := []event.Phase{event.PhasePack, event.PhaseInstall}
	if r.lintEnabled() {
		phases = append(phases, event.PhaseLint)
	}
	if len(r.s.opts.Scripts) > 0 {
		phases = append(phases, event.PhaseRunScripts)
	}

	for _, phase := range phases {
		b := NewBus(BusConfig{
			Phase:          phase,
			PkgManagers:    r.specs(),
			Workspaces:     r.workspaces,
			Scripts:        r.s.opts.Scripts,
			Rules:          r.ruleNames(),
			AdditionalDeps: r.s.opts.AdditionalDeps,
			Logger:         r.log.WithTarget("bus:" + string(phase)),
			Emit:           func(ev event.Event) { r.mb.send(msgBusEmit{ev: ev}) },
			OnDone:         func(res BusResult) { r.mb.send(msgBusDone{result: res}) },
		})
		r.buses[phase] = b
		r.pendingBuses++
		b.Start()
		if phase == event.PhasePack || phase == event.PhaseInstall {
			b.Listen()
		}
	}
}

func (r *smokeRun) startPipelines() {
	opts := r.s.opts
	for _, env := range r.envelopes {
		p := NewPipeline(PipelineConfig{
			Envelope:          env,
			Workspaces:        r.workspaces,
			Scripts:           opts.Scripts,
			Lint:              opts.Lint,
			Rules:             r.rules,
			AdditionalDeps:    opts.AdditionalDeps,
			Linger:            opts.Linger,
			Bail:              opts.Bail,
			PackConcurrency:   opts.PackConcurrency,
			ScriptConcurrency: opts.ScriptConcurrency,
			ShutdownTimeout:   opts.ShutdownTimeout,
			Verbose:           opts.Verbose,
			Logger:            r.s.logger,
			Emit:              func(ev event.PhaseEvent) { r.mb.send(msgPipelineEmit{ev: ev}) },
			OnDone:            func(out *PipelineOutput) { r.mb.send(msgPipelineDone{out: out}) },
		})
		key := env.Spec.String()
		r.order = append(r.order, key)
		r.pipelines[key] = p
		p.Start(r.ctx)
	}
}

func (r *smokeRun) finished() bool {
	return len(r.outputs) == len(r.pipelines) && r.pendingBuses == 0
}

func (r *smokeRun) loop() {
	for !r.finished() {
		select {
		case <-r.mb.ready():
			for _, msg := range r.mb.drain() {
				r.handle(msg)
			}
		case <-r.abortDeadline:
			for _, key := range r.order {
				if _, ok := r.outputs[key]; !ok {
					r.log.Error("Pipeline did not shut down in time", logger.WithField("pkg_manager", key))
					r.errs.Append(fmt.Errorf("%s: %w", key, smokeerrors.ErrShutdownTimeout))
				}
			}
			return
		}
	}
}

func (r *smokeRun) handle(msg runMsg) {
	switch m := msg.(type) {
	case msgRunAbort:
		r.abort(m.reason)
	case msgPipelineEmit:
		r.route(m.ev)
	case msgPipelineDone:
		r.outputs[m.out.Spec.String()] = m.out
		// a fatal output only cancels pipelines that are still running
		if fatalOutput(m.out) && !r.aborted && len(r.outputs) < len(r.pipelines) {
			r.abort(m.out.Error)
		}
		if len(r.outputs) == len(r.pipelines) {
			r.stopBuses()
		}
	case msgBusEmit:
		r.emit(m.ev)
	case msgBusDone:
		r.pendingBuses--
		delete(r.buses, m.result.Phase)
	}
}

// route hands a pipeline event to the bus of its phase
func (r *smokeRun) route(ev event.PhaseEvent) {
	if _, ok := ev.(event.PkgInstallOk); ok && !r.installSeen {
		r.installSeen = true
		for _, phase := range []event.Phase{event.PhaseLint, event.PhaseRunScripts} {
			if b := r.buses[phase]; b != nil {
				b.Listen()
			}
		}
	}
	if b := r.buses[ev.Phase()]; b != nil {
		b.Forward(ev)
	}
}

// stopBuses terminates every bus that has not ended on its own. Stop is
// queued behind pending events, so buses that can still finish do.
func (r *smokeRun) stopBuses() {
	if r.busesStopped {
		return
	}
	r.busesStopped = true
	for _, b := range r.buses {
		b.Stop()
	}
}

// abort halts every pipeline. A user abort is not an error by itself; a
// fatal pipeline error is already recorded in that pipeline's output.
func (r *smokeRun) abort(reason error) {
	if r.aborted {
		return
	}
	r.aborted = true
	r.log.Warn("Aborting run", logger.WithField("reason", reason))

	for _, key := range r.order {
		r.pipelines[key].Abort(reason)
	}
	r.stopBuses()
	r.emit(event.Aborted{Reason: reason})
	r.abortDeadline = time.After(r.s.opts.ShutdownTimeout)
}

// results folds the pipeline outputs into the run result and classifies it
func (r *smokeRun) results() *types.SmokeResults {
	res := &types.SmokeResults{
		RunID:       pcontext.GetRunID(r.ctx),
		PkgManagers: r.specs(),
		Workspaces:  r.workspaces,
		Plugins:     r.plugins,
		Aborted:     r.aborted,
		Duration:    time.Since(r.started),
	}

	for _, key := range r.order {
		out := r.outputs[key]
		if out == nil {
			continue
		}
		res.Lint = append(res.Lint, out.Lint...)
		res.Scripts = append(res.Scripts, out.Scripts...)
		if out.Lingered {
			res.Lingered = append(res.Lingered, out.TmpDir)
		}
		if out.Error != nil {
			r.errs.Append(out.Error)
		}
	}

	switch {
	case !r.errs.Empty():
		res.Type = types.ResultError
		res.Error = r.errs
		res.ErrorText = r.errs.Error()
	case hasFailures(res):
		res.Type = types.ResultFailed
	default:
		res.Type = types.ResultOk
	}
	return res
}

func fatalOutput(out *PipelineOutput) bool {
	for _, err := range out.Error.Errors() {
		if smokeerrors.IsFatal(err) {
			return true
		}
	}
	return false
}

func hasFailures(res *types.SmokeResults) bool {
	for _, lr := range res.Lint {
		if lr.HasErrors() {
			return true
		}
	}
	for _, sr := range res.Scripts {
		if sr.Type == types.ResultFailed || sr.Type == types.ResultError {
			return true
		}
	}
	return false
}

// shutdown emits the final events and closes every listener
func (r *smokeRun) shutdown(res *types.SmokeResults) (*types.SmokeResults, error) {
	if !res.Noop {
		switch res.Type {
		case types.ResultOk:
			r.emit(event.SmokeOk{Results: res})
		case types.ResultFailed:
			r.emit(event.SmokeFailed{Results: res})
		case types.ResultError:
			r.emit(event.SmokeError{Results: res, Err: res.Error})
		}
		if len(res.Lingered) > 0 {
			r.emit(event.Lingered{Directories: res.Lingered})
		}
	}
	r.emit(event.BeforeExit{})

	if err := closeListeners(r.listeners, r.s.opts.ShutdownTimeout); err != nil {
		r.log.Error("Listeners did not exit cleanly", logger.WithError(err))
		r.errs.Append(err)
		res.Type = types.ResultError
		res.Error = r.errs
		res.ErrorText = r.errs.Error()
	}

	res.Duration = time.Since(r.started)
	switch res.Type {
	case types.ResultError:
		r.log.Error("Smoke test errored", logger.WithField("duration", res.Duration))
		return res, r.errs.ErrOrNil()
	case types.ResultFailed:
		r.log.Warn("Smoke test failed", logger.WithField("duration", res.Duration))
	default:
		r.log.Success("Smoke test passed", logger.WithField("duration", res.Duration))
	}
	return res, nil
}
