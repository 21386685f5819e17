// Package reporter provides the listeners that present a smoke run to the
// user.
package reporter

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/smoker/smoker/pkg/event"
	"github.com/smoker/smoker/pkg/types"
)

// ConsoleName is the name the console reporter registers under
const ConsoleName = "console"

// Console prints human-readable progress lines
type Console struct {
	out     io.Writer
	verbose bool
	mu      sync.Mutex

	green  func(a ...interface{}) string
	red    func(a ...interface{}) string
	yellow func(a ...interface{}) string
	cyan   func(a ...interface{}) string
	faint  func(a ...interface{}) string
}

// NewConsole creates a console reporter writing to out. Colors are used
// only when out is a terminal stream and color output is enabled.
func NewConsole(out io.Writer, verbose bool) *Console {
	if out == nil {
		out = os.Stderr
	}
	useColor := (out == os.Stdout || out == os.Stderr) && !color.NoColor

	paint := func(attrs ...color.Attribute) func(a ...interface{}) string {
		c := color.New(attrs...)
		if !useColor {
			c.DisableColor()
		}
		return c.SprintFunc()
	}

	return &Console{
		out:     out,
		verbose: verbose,
		green:   paint(color.FgGreen),
		red:     paint(color.FgRed, color.Bold),
		yellow:  paint(color.FgYellow),
		cyan:    paint(color.FgCyan),
		faint:   paint(color.Faint),
	}
}

// Name implements event.Listener
func (c *Console) Name() string { return ConsoleName }

func (c *Console) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format+"\n", args...)
}

// Handle implements event.Listener
func (c *Console) Handle(ctx context.Context, ev event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e := ev.(type) {
	case event.SmokeBegin:
		c.printf("💨 %s %s with %s",
			c.cyan("smoker"),
			plural(len(e.Workspaces), "workspace"),
			joinSpecs(e.PkgManagers))

	case event.PackBegin:
		c.printf("%s Packing %s…", c.faint("•"), plural(e.Total, "package"))
	case event.PackOk:
		c.printf("%s Packed %s %s", c.green("✔"), plural(len(e.Manifests), "package"), c.faint(formatDuration(e.Duration)))
	case event.PackFailed:
		c.printf("%s Packing failed: %v", c.red("✖"), e.Err)

	case event.InstallBegin:
		c.printf("%s Installing %s…", c.faint("•"), plural(e.Total, "package"))
	case event.PkgInstallOk:
		if c.verbose {
			c.printf("  %s %s %s", c.green("✔"), e.Manifest.PkgName, c.faint(fmt.Sprintf("[%d/%d] %s", e.Current, e.Total, e.Spec)))
		}
	case event.InstallOk:
		c.printf("%s Installed %s %s", c.green("✔"), plural(len(e.Results), "package"), c.faint(formatDuration(e.Duration)))
	case event.InstallFailed:
		c.printf("%s Installation failed: %v", c.red("✖"), e.Err)

	case event.LintBegin:
		c.printf("%s Running %s…", c.faint("•"), plural(e.Total, "rule check"))
	case event.RuleFailed:
		for _, issue := range e.Result.Issues {
			mark := c.yellow("⚠")
			if issue.Severity == types.SeverityError {
				mark = c.red("✖")
			}
			c.printf("  %s %s %s: %s", mark, e.Result.Manifest.PkgName, c.faint("("+issue.Rule+")"), issue.Message)
		}
	case event.RuleError:
		c.printf("  %s rule %s crashed: %s", c.red("✖"), e.Result.Rule, e.Result.ErrorText)
	case event.RuleOk:
		if c.verbose {
			c.printf("  %s %s %s", c.green("✔"), e.Result.Manifest.PkgName, c.faint("("+e.Result.Rule+")"))
		}
	case event.LintOk:
		c.printf("%s Lint passed %s", c.green("✔"), c.faint(formatDuration(e.Duration)))
	case event.LintFailed:
		c.printf("%s Lint found problems", c.red("✖"))

	case event.RunScriptsBegin:
		c.printf("%s Running %s…", c.faint("•"), plural(e.Total, "script"))
	case event.RunScriptOk:
		if c.verbose {
			c.printf("  %s %s %s", c.green("✔"), scriptLabel(e.Result), c.faint(fmt.Sprintf("[%d/%d]", e.Current, e.Total)))
		}
	case event.RunScriptFailed:
		c.printf("  %s %s exited with code %d", c.red("✖"), scriptLabel(e.Result), exitCode(e.Result.RawResult))
		if out := tail(e.Result.RawResult); out != "" {
			c.printf("%s", c.faint(indent(out, "    ")))
		}
	case event.RunScriptError:
		c.printf("  %s %s: %s", c.red("✖"), scriptLabel(e.Result), e.Result.ErrorText)
	case event.RunScriptSkipped:
		c.printf("  %s %s skipped %s", c.yellow("-"), scriptLabel(e.Result), c.faint("("+e.Result.SkipReason+")"))
	case event.RunScriptsOk:
		c.printf("%s Ran %s %s", c.green("✔"), plural(len(e.Results), "script"), c.faint(formatDuration(e.Duration)))
	case event.RunScriptsFailed:
		c.printf("%s Some scripts failed", c.red("✖"))

	case event.Aborted:
		c.printf("%s Aborted: %v", c.yellow("⏹"), e.Reason)
	case event.Lingered:
		c.printf("%s Sandboxes left in place:", c.yellow("!"))
		for _, dir := range e.Directories {
			c.printf("  %s", dir)
		}
	case event.SmokeOk:
		c.printf("%s Lovey-dovey! 💖 %s", c.green("✔"), c.faint(formatDuration(e.Results.Duration)))
	case event.SmokeFailed:
		c.printf("%s Smoke test failed %s", c.red("✖"), c.faint(formatDuration(e.Results.Duration)))
	case event.SmokeError:
		c.printf("%s Smoke test errored: %v", c.red("✖"), e.Err)
	}
	return nil
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func joinSpecs(specs []types.PkgManagerSpec) string {
	names := make([]string, 0, len(specs))
	for _, s := range specs {
		names = append(names, s.String())
	}
	return strings.Join(names, ", ")
}

func scriptLabel(r types.RunScriptResult) string {
	return fmt.Sprintf("%s › %s (%s)", r.Manifest.PkgName, r.Manifest.Script, r.PkgManager)
}

func exitCode(r *types.ExecResult) int {
	if r == nil {
		return -1
	}
	return r.ExitCode
}

// tail returns the last lines of a command's output, preferring stderr
func tail(r *types.ExecResult) string {
	if r == nil {
		return ""
	}
	out := strings.TrimSpace(r.Stderr)
	if out == "" {
		out = strings.TrimSpace(r.Stdout)
	}
	lines := strings.Split(out, "\n")
	if len(lines) > 10 {
		lines = lines[len(lines)-10:]
	}
	return strings.Join(lines, "\n")
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
