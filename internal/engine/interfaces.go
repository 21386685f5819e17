package engine

import (
	"context"

	"github.com/smoker/smoker/pkg/event"
	"github.com/smoker/smoker/pkg/pkgmanager"
	"github.com/smoker/smoker/pkg/rule"
	"github.com/smoker/smoker/pkg/types"
)

// WorkspaceFinder discovers the packages under test.
// An empty result is not an error; the run becomes a no-op.
type WorkspaceFinder interface {
	Find(ctx context.Context, opts types.SmokerOptions) ([]types.WorkspaceInfo, error)
}

// ComponentResolver turns requested package managers and rule
// configuration into loaded components. *plugin.Registry implements it.
type ComponentResolver interface {
	Metadata() []types.PluginMetadata
	ResolvePkgManagers(requested []string) ([]pkgmanager.Envelope, error)
	ResolveRules(config map[string]types.RuleConfig) ([]rule.Configured, error)
}

// Dependencies holds everything a Smoker needs besides its options
type Dependencies struct {
	Finder    WorkspaceFinder
	Resolver  ComponentResolver
	Listeners []event.Listener
}
