package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/smoker/smoker/pkg/event"
	"github.com/smoker/smoker/pkg/types"
)

// JSONName is the name the JSON reporter registers under
const JSONName = "json"

// JSON writes the final result of a run as a single JSON document
type JSON struct {
	out     io.Writer
	mu      sync.Mutex
	results *types.SmokeResults
}

// NewJSON creates a JSON reporter writing to out
func NewJSON(out io.Writer) *JSON {
	if out == nil {
		out = os.Stdout
	}
	return &JSON{out: out}
}

// Name implements event.Listener
func (j *JSON) Name() string { return JSONName }

// Handle implements event.Listener
func (j *JSON) Handle(ctx context.Context, ev event.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch e := ev.(type) {
	case event.SmokeOk:
		j.results = e.Results
	case event.SmokeFailed:
		j.results = e.Results
	case event.SmokeError:
		j.results = e.Results
	}
	return nil
}

// Flush implements event.Flusher
func (j *JSON) Flush(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.results == nil {
		return nil
	}
	data, err := json.MarshalIndent(j.results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	if _, err := fmt.Fprintln(j.out, string(data)); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}
