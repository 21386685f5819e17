// Package rule defines lint rules checked against installed packages.
package rule

import (
	"context"
	"fmt"
	"sort"

	smokeerrors "github.com/smoker/smoker/pkg/errors"
	"github.com/smoker/smoker/pkg/logger"
	"github.com/smoker/smoker/pkg/types"
)

// Context is the input of one rule check
type Context struct {
	Spec     types.PkgManagerSpec
	Manifest types.LintManifest
	Severity types.Severity
	Opts     map[string]any
	Logger   logger.Logger
}

// Issue builds an issue at the configured severity
func (c *Context) Issue(rule, message string) types.Issue {
	return types.Issue{Rule: rule, Message: message, Severity: c.Severity}
}

// Rule checks an installed package. Returned issues mean the package broke
// the rule; a returned error means the rule itself could not run.
type Rule interface {
	Name() string
	Description() string
	DefaultSeverity() types.Severity
	Check(ctx context.Context, rc *Context) ([]types.Issue, error)
}

// CheckFunc is the body of a rule built with New
type CheckFunc func(ctx context.Context, rc *Context) ([]types.Issue, error)

type funcRule struct {
	name        string
	description string
	severity    types.Severity
	check       CheckFunc
}

// New creates a Rule from a check function
func New(name, description string, severity types.Severity, check CheckFunc) Rule {
	return &funcRule{name: name, description: description, severity: severity, check: check}
}

func (r *funcRule) Name() string                    { return r.name }
func (r *funcRule) Description() string             { return r.description }
func (r *funcRule) DefaultSeverity() types.Severity { return r.severity }

func (r *funcRule) Check(ctx context.Context, rc *Context) ([]types.Issue, error) {
	return r.check(ctx, rc)
}

// Configured is a rule with its effective severity and options
type Configured struct {
	Rule     Rule
	Severity types.Severity
	Opts     map[string]any
}

// Name returns the rule name
func (c Configured) Name() string { return c.Rule.Name() }

// Configure applies per-rule config to the available rules and returns the
// enabled ones sorted by name. Rules switched off are dropped. Config for an
// unknown rule or an invalid severity is an error.
func Configure(rules []Rule, config map[string]types.RuleConfig) ([]Configured, error) {
	byName := make(map[string]Rule, len(rules))
	for _, r := range rules {
		byName[r.Name()] = r
	}

	for name, rc := range config {
		if _, ok := byName[name]; !ok {
			return nil, &smokeerrors.ValidationError{Field: "rules", Reason: fmt.Sprintf("unknown rule %q", name)}
		}
		if rc.Severity != "" && !rc.Severity.Valid() {
			return nil, &smokeerrors.ValidationError{
				Field:  "rules." + name,
				Reason: fmt.Sprintf("invalid severity %q", rc.Severity),
			}
		}
	}

	configured := make([]Configured, 0, len(rules))
	for name, r := range byName {
		severity := r.DefaultSeverity()
		var opts map[string]any
		if rc, ok := config[name]; ok {
			if rc.Severity != "" {
				severity = rc.Severity
			}
			opts = rc.Opts
		}
		if severity == types.SeverityOff {
			continue
		}
		configured = append(configured, Configured{Rule: r, Severity: severity, Opts: opts})
	}

	sort.Slice(configured, func(i, j int) bool {
		return configured[i].Name() < configured[j].Name()
	})
	return configured, nil
}
