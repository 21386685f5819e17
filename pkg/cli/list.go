package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smoker/smoker/internal/engine"
	"github.com/smoker/smoker/pkg/types"
)

const (
	listPkgManagers = "pkg-managers"
	listRules       = "rules"
	listReporters   = "reporters"
)

func (c *CLI) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "list {pkg-managers|rules|reporters}",
		Short:     "List the package managers, rules or reporters plugins provide",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{listPkgManagers, listRules, listReporters},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runList(args[0])
		},
	}
}

func (c *CLI) runList(what string) error {
	factory := engine.NewDependencyFactory(types.SmokerOptions{}, c.logger, c.output)
	reg, err := factory.Registry()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	switch what {
	case listPkgManagers:
		fmt.Fprintln(w, "NAME\tVERSIONS\tPLUGIN\tDESCRIPTION")
		for _, p := range reg.Plugins() {
			for _, d := range p.PkgManagers {
				versions := d.Versions
				if versions == "" {
					versions = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Name, versions, p.Name, d.Description)
			}
		}
	case listRules:
		fmt.Fprintln(w, "NAME\tSEVERITY\tPLUGIN\tDESCRIPTION")
		for _, p := range reg.Plugins() {
			for _, r := range p.Rules {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name(), r.DefaultSeverity(), p.Name, r.Description())
			}
		}
	case listReporters:
		fmt.Fprintln(w, "NAME\tPLUGIN\tDESCRIPTION")
		for _, p := range reg.Plugins() {
			for _, r := range p.Reporters {
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, p.Name, r.Description)
			}
		}
	default:
		return fmt.Errorf("unknown list %q, want one of %s", what,
			strings.Join([]string{listPkgManagers, listRules, listReporters}, ", "))
	}
	return w.Flush()
}
