// Package context carries run-scoped tracing values through a smoke run.
package context

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Context keys. Unexported struct pointers prevent key collisions.
var (
	runIDKey     = &struct{}{}
	componentKey = &struct{}{}
	phaseKey     = &struct{}{}
	startTimeKey = &struct{}{}
)

const (
	unknownRunID     = "unknown-run"
	unknownComponent = "unknown-component"
	unknownPhase     = "unknown-phase"
)

// WithRunID adds a run ID to the context, generating one if empty
func WithRunID(parent context.Context, runID string) context.Context {
	if runID == "" {
		runID = GenerateRunID()
	}
	return context.WithValue(parent, runIDKey, runID)
}

// GetRunID retrieves the run ID from context
func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok && id != "" {
		return id
	}
	return unknownRunID
}

// HasRunID reports whether a run ID has been set
func HasRunID(ctx context.Context) bool {
	return GetRunID(ctx) != unknownRunID
}

// WithComponent names the actor (orchestrator, pipeline, bus) doing the work
func WithComponent(parent context.Context, component string) context.Context {
	return context.WithValue(parent, componentKey, component)
}

// GetComponent retrieves the component name from context
func GetComponent(ctx context.Context) string {
	if c, ok := ctx.Value(componentKey).(string); ok && c != "" {
		return c
	}
	return unknownComponent
}

// WithPhase adds the pipeline phase (pack, install, lint, script) to the context
func WithPhase(parent context.Context, phase string) context.Context {
	return context.WithValue(parent, phaseKey, phase)
}

// GetPhase retrieves the phase from context
func GetPhase(ctx context.Context) string {
	if p, ok := ctx.Value(phaseKey).(string); ok && p != "" {
		return p
	}
	return unknownPhase
}

// WithStartTime adds the operation start time to the context
func WithStartTime(parent context.Context, startTime time.Time) context.Context {
	return context.WithValue(parent, startTimeKey, startTime)
}

// GetStartTime retrieves the start time, or the zero time when unset
func GetStartTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(startTimeKey).(time.Time); ok {
		return t
	}
	return time.Time{}
}

// GetDuration returns the time elapsed since the start time, or 0 when unset
func GetDuration(ctx context.Context) time.Duration {
	start := GetStartTime(ctx)
	if start.IsZero() {
		return 0
	}
	return time.Since(start)
}

// GenerateRunID creates a new unique run ID
func GenerateRunID() string {
	return "run_" + uuid.New().String()
}

// EnrichContext adds a run ID (if missing) and a start time
func EnrichContext(parent context.Context) context.Context {
	ctx := parent
	if !HasRunID(ctx) {
		ctx = WithRunID(ctx, GenerateRunID())
	}
	return WithStartTime(ctx, time.Now())
}

// TracingFields returns the tracing values present in ctx for structured logging
func TracingFields(ctx context.Context) map[string]interface{} {
	fields := make(map[string]interface{}, 4)
	if id := GetRunID(ctx); id != unknownRunID {
		fields["run_id"] = id
	}
	if c := GetComponent(ctx); c != unknownComponent {
		fields["component"] = c
	}
	if p := GetPhase(ctx); p != unknownPhase {
		fields["phase"] = p
	}
	if d := GetDuration(ctx); d > 0 {
		fields["duration_ms"] = d.Milliseconds()
	}
	return fields
}
