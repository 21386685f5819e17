// Package builtin provides the plugin that ships with smoker: the npm
// backend, the default lint rules and the standard reporters.
package builtin

import (
	"github.com/smoker/smoker/internal/executor"
	"github.com/smoker/smoker/pkg/event"
	"github.com/smoker/smoker/pkg/notifier"
	"github.com/smoker/smoker/pkg/pkgmanager"
	"github.com/smoker/smoker/pkg/plugin"
	"github.com/smoker/smoker/pkg/reporter"
)

// PluginName is the name of the builtin plugin
const PluginName = "smoker-builtin"

// Version is reported in plugin metadata and by the CLI
var Version = "dev"

// NewPlugin creates the builtin plugin. Backends run commands through
// runner.
func NewPlugin(runner executor.Runner) *plugin.Plugin {
	return &plugin.Plugin{
		Name:        PluginName,
		Version:     Version,
		Description: "Backends, rules and reporters bundled with smoker",
		PkgManagers: []pkgmanager.Definition{npmDefinition(runner)},
		Rules:       Rules(),
		Reporters:   Reporters(),
	}
}

// Reporters returns the builtin reporter definitions
func Reporters() []plugin.ReporterDefinition {
	return []plugin.ReporterDefinition{
		{
			Name:        reporter.ConsoleName,
			Description: "Human-readable progress on the terminal",
			New: func(opts plugin.ReporterOptions) (event.Listener, error) {
				return reporter.NewConsole(opts.Out, opts.Verbose), nil
			},
		},
		{
			Name:        reporter.JSONName,
			Description: "The final result as a JSON document",
			New: func(opts plugin.ReporterOptions) (event.Listener, error) {
				return reporter.NewJSON(opts.Out), nil
			},
		},
		{
			Name:        notifier.Name,
			Description: "A desktop notification when the run ends",
			New: func(opts plugin.ReporterOptions) (event.Listener, error) {
				return notifier.New(notifier.Config{Enabled: true, Sound: true}, opts.Logger), nil
			},
		},
	}
}

// NewRegistry creates a registry holding only the builtin plugin
func NewRegistry(runner executor.Runner) (*plugin.Registry, error) {
	reg := plugin.NewRegistry()
	if err := reg.Register(NewPlugin(runner)); err != nil {
		return nil, err
	}
	return reg, nil
}
