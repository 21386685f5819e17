package engine

import (
	"io"
	"os"

	"github.com/smoker/smoker/internal/builtin"
	"github.com/smoker/smoker/internal/executor"
	"github.com/smoker/smoker/internal/workspace"
	"github.com/smoker/smoker/pkg/event"
	"github.com/smoker/smoker/pkg/logger"
	"github.com/smoker/smoker/pkg/plugin"
	"github.com/smoker/smoker/pkg/reporter"
	"github.com/smoker/smoker/pkg/types"
)

// DependencyFactory creates default implementations of dependencies,
// keeping concrete fallbacks out of the Smoker constructor.
type DependencyFactory struct {
	opts     types.SmokerOptions
	logger   logger.Logger
	out      io.Writer
	registry *plugin.Registry
}

// NewDependencyFactory creates a new dependency factory. Reporters write
// to out, or to stdout when out is nil.
func NewDependencyFactory(opts types.SmokerOptions, log logger.Logger, out io.Writer) *DependencyFactory {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if out == nil {
		out = os.Stdout
	}
	return &DependencyFactory{
		opts:   opts,
		logger: log,
		out:    out,
	}
}

// Registry returns the plugin registry, creating it on first use
func (f *DependencyFactory) Registry() (*plugin.Registry, error) {
	if f.registry != nil {
		return f.registry, nil
	}
	runner := executor.New(f.logger.WithTarget("exec"), f.opts.Verbose)
	reg, err := builtin.NewRegistry(runner)
	if err != nil {
		return nil, err
	}
	f.registry = reg
	return reg, nil
}

// CreateDefaults creates the workspace finder, the builtin plugin registry
// and the reporters named in the options
func (f *DependencyFactory) CreateDefaults() (Dependencies, error) {
	reg, err := f.Registry()
	if err != nil {
		return Dependencies{}, err
	}
	listeners, err := f.createListeners(reg)
	if err != nil {
		return Dependencies{}, err
	}
	return Dependencies{
		Finder:    f.createFinder(),
		Resolver:  reg,
		Listeners: listeners,
	}, nil
}

// CreateWithOverrides creates dependencies with specific overrides.
// Non-nil overrides replace the defaults.
func (f *DependencyFactory) CreateWithOverrides(overrides Dependencies) (Dependencies, error) {
	deps, err := f.CreateDefaults()
	if err != nil {
		return Dependencies{}, err
	}

	if overrides.Finder != nil {
		deps.Finder = overrides.Finder
	}
	if overrides.Resolver != nil {
		deps.Resolver = overrides.Resolver
	}
	if overrides.Listeners != nil {
		deps.Listeners = overrides.Listeners
	}
	return deps, nil
}

func (f *DependencyFactory) createFinder() WorkspaceFinder {
	return workspace.NewFinder(f.logger)
}

func (f *DependencyFactory) createListeners(reg *plugin.Registry) ([]event.Listener, error) {
	names := f.opts.Reporters
	if len(names) == 0 {
		names = []string{reporter.ConsoleName}
	}
	return reg.ResolveReporters(names, plugin.ReporterOptions{
		Out:     f.out,
		Verbose: f.opts.Verbose,
		Logger:  f.logger,
	})
}
