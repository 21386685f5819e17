// Package notifier sends a desktop notification when a smoke run ends
package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/smoker/smoker/pkg/event"
	"github.com/smoker/smoker/pkg/logger"
	"github.com/smoker/smoker/pkg/types"
)

// Name is the name the notifier registers under as a reporter
const Name = "notify"

// Config represents notification configuration
type Config struct {
	Enabled bool
	// Sound plays a beep along with failure notifications
	Sound bool
}

// Notifier is a listener that reports the final outcome of a run
type Notifier struct {
	enabled bool
	sound   bool
	logger  logger.Logger

	notify func(title, message string) error
	beep   func() error
}

// New creates a new notifier
func New(config Config, log logger.Logger) *Notifier {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Notifier{
		enabled: config.Enabled,
		sound:   config.Sound,
		logger:  log,
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
		beep: func() error {
			return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration)
		},
	}
}

// Name implements event.Listener
func (n *Notifier) Name() string { return Name }

// Handle implements event.Listener
func (n *Notifier) Handle(ctx context.Context, ev event.Event) error {
	if !n.enabled {
		return nil
	}

	switch e := ev.(type) {
	case event.SmokeOk:
		n.send("✅ Smoke test passed", summary(e.Results), false)
	case event.SmokeFailed:
		n.send("❌ Smoke test failed", failureSummary(e.Results), true)
	case event.SmokeError:
		n.send("💥 Smoke test errored", fmt.Sprintf("%v", e.Err), true)
	case event.Aborted:
		n.send("⏹ Smoke test aborted", fmt.Sprintf("%v", e.Reason), false)
	}
	return nil
}

func (n *Notifier) send(title, message string, failure bool) {
	if err := n.notify(title, message); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithError(err))
	}
	if failure && n.sound {
		if err := n.beep(); err != nil {
			n.logger.Debug("Failed to play sound", logger.WithError(err))
		}
	}
}

func summary(r *types.SmokeResults) string {
	if r == nil {
		return ""
	}
	return fmt.Sprintf("%d workspace(s) × %d package manager(s) in %s",
		len(r.Workspaces), len(r.PkgManagers), formatDuration(r.Duration))
}

func failureSummary(r *types.SmokeResults) string {
	if r == nil {
		return ""
	}
	var scripts, lint int
	for _, s := range r.Scripts {
		if s.Type == types.ResultFailed || s.Type == types.ResultError {
			scripts++
		}
	}
	for _, l := range r.Lint {
		if l.HasErrors() {
			lint++
		}
	}
	return fmt.Sprintf("%d failed script(s), %d package(s) with lint errors", scripts, lint)
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
