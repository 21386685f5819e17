// Package event defines the closed set of lifecycle events a smoke run emits
// to listeners.
//
// Events fall into three groups. Run events (SmokeBegin, SmokeOk, ...) are
// emitted once per run. Phase events (PackBegin, InstallOk, ...) are emitted
// once per phase by the phase bus. Backend and item events (PkgManagerPackOk,
// PkgInstallBegin, RuleError, ...) are produced by pipelines, counted by the
// phase bus and then relayed.
package event

import (
	"context"
	"time"

	"github.com/smoker/smoker/pkg/types"
)

// Name identifies an event type
type Name string

// Phase names one stage of a pipeline
type Phase string

const (
	PhasePack       Phase = "pack"
	PhaseInstall    Phase = "install"
	PhaseLint       Phase = "lint"
	PhaseRunScripts Phase = "runScripts"
)

// Phases lists every phase in pipeline order
var Phases = []Phase{PhasePack, PhaseInstall, PhaseLint, PhaseRunScripts}

// Event is implemented by every lifecycle event
type Event interface {
	Name() Name
}

// Count is the run-wide progress of an item or backend event. The bus fills
// it in before the event reaches listeners.
type Count struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// PhaseEvent is a backend or item event produced by a pipeline. It is routed
// to the bus for its phase.
type PhaseEvent interface {
	Event
	Phase() Phase
	PkgManager() types.PkgManagerSpec
	WithCount(Count) PhaseEvent
}

// Listener receives events. Handle is called from a single goroutine per
// listener, in emission order.
type Listener interface {
	Name() string
	Handle(ctx context.Context, ev Event) error
}

// Flusher is implemented by listeners that buffer output
type Flusher interface {
	Flush(ctx context.Context) error
}

// ListenerFunc adapts a function to the Listener interface
type ListenerFunc func(ctx context.Context, ev Event) error

// Name implements Listener
func (f ListenerFunc) Name() string { return "func" }

// Handle implements Listener
func (f ListenerFunc) Handle(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Run events

const (
	NameSmokeBegin  Name = "SmokeBegin"
	NameSmokeOk     Name = "SmokeOk"
	NameSmokeFailed Name = "SmokeFailed"
	NameSmokeError  Name = "SmokeError"
	NameLingered    Name = "Lingered"
	NameBeforeExit  Name = "BeforeExit"
	NameAborted     Name = "Aborted"
)

type SmokeBegin struct {
	RunID       string                 `json:"runId"`
	PkgManagers []types.PkgManagerSpec `json:"pkgManagers"`
	Workspaces  []types.WorkspaceInfo  `json:"workspaceInfo"`
	Plugins     []types.PluginMetadata `json:"plugins"`
	Scripts     []string               `json:"scripts,omitempty"`
	Lint        bool                   `json:"lint"`
}

type SmokeOk struct {
	Results *types.SmokeResults `json:"results"`
}

type SmokeFailed struct {
	Results *types.SmokeResults `json:"results"`
}

type SmokeError struct {
	Results *types.SmokeResults `json:"results"`
	Err     error               `json:"-"`
}

// Lingered lists the sandbox directories retained after the run
type Lingered struct {
	Directories []string `json:"directories"`
}

type BeforeExit struct{}

type Aborted struct {
	Reason error `json:"-"`
}

func (SmokeBegin) Name() Name  { return NameSmokeBegin }
func (SmokeOk) Name() Name     { return NameSmokeOk }
func (SmokeFailed) Name() Name { return NameSmokeFailed }
func (SmokeError) Name() Name  { return NameSmokeError }
func (Lingered) Name() Name    { return NameLingered }
func (BeforeExit) Name() Name  { return NameBeforeExit }
func (Aborted) Name() Name     { return NameAborted }

// PhaseBegin is the payload of every phase begin event
type PhaseBegin struct {
	PkgManagers []types.PkgManagerSpec `json:"pkgManagers"`
	Workspaces  []types.WorkspaceInfo  `json:"workspaceInfo"`
	Total       int                    `json:"total"`
}

// PhaseEnd is the payload shared by every phase end event
type PhaseEnd struct {
	PkgManagers []types.PkgManagerSpec `json:"pkgManagers"`
	Total       int                    `json:"total"`
	Duration    time.Duration          `json:"duration"`
}

// Source identifies the backend a pipeline event came from and carries its
// run-wide progress
type Source struct {
	Spec types.PkgManagerSpec `json:"pkgManager"`
	Count
}

// PkgManager returns the backend spec
func (s Source) PkgManager() types.PkgManagerSpec { return s.Spec }
