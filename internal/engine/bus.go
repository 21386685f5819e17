package engine

import (
	"time"

	"github.com/smoker/smoker/pkg/event"
	"github.com/smoker/smoker/pkg/logger"
	"github.com/smoker/smoker/pkg/types"
)

// BusConfig configures the bus of one phase
type BusConfig struct {
	Phase          event.Phase
	PkgManagers    []types.PkgManagerSpec
	Workspaces     []types.WorkspaceInfo
	Scripts        []string
	Rules          []string
	AdditionalDeps []string
	Logger         logger.Logger

	// Emit receives every event the bus produces, in order
	Emit func(event.Event)
	// OnDone is called exactly once when the bus terminates
	OnDone func(BusResult)
}

// BusResult is the terminal report of a bus
type BusResult struct {
	Phase   event.Phase
	Failed  bool
	Stopped bool
	Err     error
}

type busMsg interface{ busMsg() }

type (
	busListen  struct{}
	busForward struct{ ev event.PhaseEvent }
	busStop    struct{}
)

func (busListen) busMsg()  {}
func (busForward) busMsg() {}
func (busStop) busMsg()    {}

// Bus aggregates the backend and item events of one phase from every
// pipeline into a single begin event and a single end event. Item events
// are tagged with run-wide progress before they are relayed.
type Bus struct {
	cfg   BusConfig
	total int
	mb    *mailbox[busMsg]

	listening     bool
	started       time.Time
	backendsBegun int
	backendsEnded int
	itemsBegun    int
	itemsEnded    int
	failed        bool

	manifests []types.InstallManifest
	installs  []types.InstallResult
	lint      []types.LintResult
	scripts   []types.RunScriptResult
	done      bool
}

// NewBus creates the bus of one phase. It does nothing until Start.
func NewBus(cfg BusConfig) *Bus {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	if cfg.Emit == nil {
		cfg.Emit = func(event.Event) {}
	}
	if cfg.OnDone == nil {
		cfg.OnDone = func(BusResult) {}
	}
	return &Bus{
		cfg:   cfg,
		total: busTotal(cfg),
		mb:    newMailbox[busMsg](),
	}
}

// busTotal is the number of items the phase expects across every backend
func busTotal(cfg BusConfig) int {
	backends, workspaces := len(cfg.PkgManagers), len(cfg.Workspaces)
	switch cfg.Phase {
	case event.PhasePack:
		return backends * workspaces
	case event.PhaseInstall:
		return backends * (workspaces + len(cfg.AdditionalDeps))
	case event.PhaseLint:
		return backends * workspaces * len(cfg.Rules)
	case event.PhaseRunScripts:
		return backends * workspaces * len(cfg.Scripts)
	}
	return 0
}

// Total returns the number of items the bus expects
func (b *Bus) Total() int { return b.total }

// Start runs the bus in its own goroutine
func (b *Bus) Start() {
	go b.run()
}

// Listen makes the bus emit its begin event
func (b *Bus) Listen() { b.mb.send(busListen{}) }

// Forward hands a pipeline event to the bus
func (b *Bus) Forward(ev event.PhaseEvent) { b.mb.send(busForward{ev: ev}) }

// Stop terminates the bus without an end event unless it already ended
func (b *Bus) Stop() { b.mb.send(busStop{}) }

func (b *Bus) run() {
	for !b.done {
		<-b.mb.ready()
		for _, msg := range b.mb.drain() {
			b.handle(msg)
			if b.done {
				return
			}
		}
	}
}

func (b *Bus) handle(msg busMsg) {
	switch m := msg.(type) {
	case busListen:
		b.listen()
	case busForward:
		b.forward(m.ev)
	case busStop:
		b.cfg.Logger.Debug("Bus stopped", logger.WithField("phase", string(b.cfg.Phase)))
		b.done = true
		b.cfg.OnDone(BusResult{Phase: b.cfg.Phase, Stopped: true})
	}
}

func (b *Bus) listen() {
	if b.listening {
		return
	}
	b.listening = true
	b.started = time.Now()

	begin := event.PhaseBegin{
		PkgManagers: b.cfg.PkgManagers,
		Workspaces:  b.cfg.Workspaces,
		Total:       b.total,
	}
	switch b.cfg.Phase {
	case event.PhasePack:
		b.cfg.Emit(event.PackBegin{PhaseBegin: begin})
	case event.PhaseInstall:
		b.cfg.Emit(event.InstallBegin{PhaseBegin: begin, AdditionalDeps: b.cfg.AdditionalDeps})
	case event.PhaseLint:
		b.cfg.Emit(event.LintBegin{PhaseBegin: begin, Rules: b.cfg.Rules})
	case event.PhaseRunScripts:
		b.cfg.Emit(event.RunScriptsBegin{PhaseBegin: begin, Scripts: b.cfg.Scripts})
	}
}

func (b *Bus) forward(ev event.PhaseEvent) {
	if ev.Phase() != b.cfg.Phase {
		b.cfg.Logger.Warn("Dropping event for another phase",
			logger.WithField("phase", string(b.cfg.Phase)),
			logger.WithField("event", string(ev.Name())))
		return
	}
	b.listen()

	backends := len(b.cfg.PkgManagers)
	var count event.Count
	switch {
	case event.IsBackendBegin(ev):
		b.backendsBegun++
		count = event.Count{Current: b.backendsBegun, Total: backends}
	case event.IsBackendEnd(ev):
		b.backendsEnded++
		count = event.Count{Current: b.backendsEnded, Total: backends}
	case event.IsItemBegin(ev):
		b.itemsBegun++
		count = event.Count{Current: b.itemsBegun, Total: b.total}
	default:
		b.itemsEnded++
		count = event.Count{Current: b.itemsEnded, Total: b.total}
	}
	b.cfg.Emit(ev.WithCount(count))

	switch e := ev.(type) {
	case event.PkgManagerPackOk:
		b.manifests = append(b.manifests, e.Manifests...)
	case event.PkgManagerInstallOk:
		b.installs = append(b.installs, e.Results...)
	case event.PkgManagerLintOk:
		b.lint = append(b.lint, e.Results...)
	case event.PkgManagerLintFailed:
		b.lint = append(b.lint, e.Results...)
		b.failed = true
	case event.PkgManagerRunScriptsOk:
		b.scripts = append(b.scripts, e.Results...)
	case event.PkgManagerRunScriptsFailed:
		b.scripts = append(b.scripts, e.Results...)
		b.failed = true
	case event.PkgManagerPackFailed:
		b.end(true, e.Err)
		return
	case event.PkgManagerInstallFailed:
		b.end(true, e.Err)
		return
	}

	if b.backendsEnded >= backends {
		b.end(b.failed, nil)
	}
}

// end emits the single end event of the phase and terminates the bus
func (b *Bus) end(failed bool, err error) {
	end := event.PhaseEnd{
		PkgManagers: b.cfg.PkgManagers,
		Total:       b.total,
		Duration:    time.Since(b.started),
	}

	switch b.cfg.Phase {
	case event.PhasePack:
		if failed {
			b.cfg.Emit(event.PackFailed{PhaseEnd: end, Manifests: b.manifests, Err: err})
		} else {
			b.cfg.Emit(event.PackOk{PhaseEnd: end, Manifests: b.manifests})
		}
	case event.PhaseInstall:
		if failed {
			b.cfg.Emit(event.InstallFailed{PhaseEnd: end, Results: b.installs, Err: err})
		} else {
			b.cfg.Emit(event.InstallOk{PhaseEnd: end, Results: b.installs})
		}
	case event.PhaseLint:
		if failed {
			b.cfg.Emit(event.LintFailed{PhaseEnd: end, Results: b.lint})
		} else {
			b.cfg.Emit(event.LintOk{PhaseEnd: end, Results: b.lint})
		}
	case event.PhaseRunScripts:
		if failed {
			b.cfg.Emit(event.RunScriptsFailed{PhaseEnd: end, Results: b.scripts})
		} else {
			b.cfg.Emit(event.RunScriptsOk{PhaseEnd: end, Results: b.scripts})
		}
	}

	b.done = true
	b.cfg.OnDone(BusResult{Phase: b.cfg.Phase, Failed: failed, Err: err})
}
