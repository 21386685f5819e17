// Package plugin registers the package managers, rules and reporters that a
// smoke run can use, and resolves user requests against them.
package plugin

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"

	smokeerrors "github.com/smoker/smoker/pkg/errors"
	"github.com/smoker/smoker/pkg/event"
	"github.com/smoker/smoker/pkg/logger"
	"github.com/smoker/smoker/pkg/pkgmanager"
	"github.com/smoker/smoker/pkg/rule"
	"github.com/smoker/smoker/pkg/types"
)

// ReporterOptions configures a reporter instance
type ReporterOptions struct {
	Out     io.Writer
	Verbose bool
	Logger  logger.Logger
}

// ReporterDefinition declares a reporter a plugin can provide
type ReporterDefinition struct {
	Name        string
	Description string
	New         func(opts ReporterOptions) (event.Listener, error)
}

// Plugin is a named bundle of capabilities
type Plugin struct {
	Name        string
	Version     string
	Description string
	PkgManagers []pkgmanager.Definition
	Rules       []rule.Rule
	Reporters   []ReporterDefinition
}

// Metadata describes the plugin for results and listings
func (p *Plugin) Metadata() types.PluginMetadata {
	md := types.PluginMetadata{
		Name:        p.Name,
		Version:     p.Version,
		Description: p.Description,
	}
	for _, d := range p.PkgManagers {
		md.PkgManagers = append(md.PkgManagers, d.Name)
	}
	for _, r := range p.Rules {
		md.Rules = append(md.Rules, r.Name())
	}
	for _, r := range p.Reporters {
		md.Reporters = append(md.Reporters, r.Name)
	}
	return md
}

// Registry holds every registered plugin
type Registry struct {
	mu      sync.RWMutex
	plugins []*Plugin
	names   map[string]struct{}
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// Register adds a plugin. Plugin names must be unique.
func (r *Registry) Register(p *Plugin) error {
	if p == nil || p.Name == "" {
		return &smokeerrors.ValidationError{Field: "plugin", Reason: "name is required"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.names[p.Name]; exists {
		return fmt.Errorf("plugin %q already registered", p.Name)
	}
	r.names[p.Name] = struct{}{}
	r.plugins = append(r.plugins, p)
	return nil
}

// Plugins returns the registered plugins in registration order
func (r *Registry) Plugins() []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Plugin, len(r.plugins))
	copy(out, r.plugins)
	return out
}

// Metadata returns metadata for every registered plugin
func (r *Registry) Metadata() []types.PluginMetadata {
	plugins := r.Plugins()
	md := make([]types.PluginMetadata, 0, len(plugins))
	for _, p := range plugins {
		md = append(md, p.Metadata())
	}
	return md
}

// KnownPkgManagers lists the backend names every plugin provides
func (r *Registry) KnownPkgManagers() []string {
	var names []string
	for _, p := range r.Plugins() {
		for _, d := range p.PkgManagers {
			names = append(names, d.Name)
		}
	}
	sort.Strings(names)
	return names
}

var distTag = regexp.MustCompile(`^[a-z][a-z0-9._-]*$`)

// accepts reports whether def can serve the requested version
func accepts(def pkgmanager.Definition, spec types.PkgManagerSpec) bool {
	if spec.IsSystem {
		return true
	}

	var supported *semver.Constraints
	if def.Versions != "" {
		c, err := semver.NewConstraint(def.Versions)
		if err != nil {
			return false
		}
		supported = c
	}

	if v, err := semver.NewVersion(spec.Version); err == nil {
		return supported == nil || supported.Check(v)
	}
	if _, err := semver.NewConstraint(spec.Version); err == nil {
		return true
	}
	return distTag.MatchString(spec.Version)
}

// ResolvePkgManagers resolves requested specs (npm, npm@9, npm@^9.1,
// npm@latest) into envelopes. Duplicate requests collapse to one envelope.
// A request no plugin can serve yields an UnsupportedPackageManagerError
// carrying the request verbatim.
func (r *Registry) ResolvePkgManagers(requested []string) ([]pkgmanager.Envelope, error) {
	if len(requested) == 0 {
		requested = []string{types.DefaultPkgManager}
	}

	seen := make(map[string]struct{}, len(requested))
	envelopes := make([]pkgmanager.Envelope, 0, len(requested))

	for _, req := range requested {
		spec, err := types.ParsePkgManagerSpec(req)
		if err != nil {
			return nil, &smokeerrors.UnsupportedPackageManagerError{Requested: req, Known: r.KnownPkgManagers()}
		}
		if _, dup := seen[spec.String()]; dup {
			continue
		}

		env, ok, err := r.resolveOne(spec)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &smokeerrors.UnsupportedPackageManagerError{Requested: req, Known: r.KnownPkgManagers()}
		}
		seen[spec.String()] = struct{}{}
		envelopes = append(envelopes, env)
	}
	return envelopes, nil
}

func (r *Registry) resolveOne(spec types.PkgManagerSpec) (pkgmanager.Envelope, bool, error) {
	for _, p := range r.Plugins() {
		for _, def := range p.PkgManagers {
			if def.Name != spec.Name || !accepts(def, spec) {
				continue
			}
			pm, err := def.New(spec)
			if err != nil {
				return pkgmanager.Envelope{}, false, fmt.Errorf("plugin %s failed to create %s: %w", p.Name, spec, err)
			}
			return pkgmanager.Envelope{Spec: spec, PkgManager: pm, Plugin: p.Name}, true, nil
		}
	}
	return pkgmanager.Envelope{}, false, nil
}

// Rules returns every registered rule
func (r *Registry) Rules() []rule.Rule {
	var rules []rule.Rule
	for _, p := range r.Plugins() {
		rules = append(rules, p.Rules...)
	}
	return rules
}

// ResolveRules applies config to every registered rule and returns the
// enabled ones
func (r *Registry) ResolveRules(config map[string]types.RuleConfig) ([]rule.Configured, error) {
	return rule.Configure(r.Rules(), config)
}

// Reporters returns every registered reporter definition
func (r *Registry) Reporters() []ReporterDefinition {
	var defs []ReporterDefinition
	for _, p := range r.Plugins() {
		defs = append(defs, p.Reporters...)
	}
	return defs
}

// ResolveReporters instantiates the named reporters
func (r *Registry) ResolveReporters(names []string, opts ReporterOptions) ([]event.Listener, error) {
	byName := make(map[string]ReporterDefinition)
	for _, d := range r.Reporters() {
		byName[d.Name] = d
	}

	listeners := make([]event.Listener, 0, len(names))
	for _, name := range names {
		def, ok := byName[name]
		if !ok {
			return nil, &smokeerrors.ValidationError{Field: "reporter", Reason: fmt.Sprintf("unknown reporter %q", name)}
		}
		l, err := def.New(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create reporter %s: %w", name, err)
		}
		listeners = append(listeners, l)
	}
	return listeners, nil
}
