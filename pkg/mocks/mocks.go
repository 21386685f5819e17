// Package mocks provides test doubles for listeners, rules and workspace
// discovery.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/smoker/smoker/pkg/event"
	"github.com/smoker/smoker/pkg/rule"
	"github.com/smoker/smoker/pkg/types"
)

// MockListener is a testify mock of event.Listener and event.Flusher
type MockListener struct {
	mock.Mock
}

// Name returns the mocked listener name
func (m *MockListener) Name() string {
	return m.Called().String(0)
}

// Handle records the event
func (m *MockListener) Handle(ctx context.Context, ev event.Event) error {
	return m.Called(ctx, ev).Error(0)
}

// Flush records the flush
func (m *MockListener) Flush(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// RecordingListener collects every event it receives
type RecordingListener struct {
	mu     sync.Mutex
	name   string
	events []event.Event
	// FlushDelay makes Flush block, ignoring its context
	FlushDelay time.Duration
	flushed    bool
}

// NewRecordingListener creates a new recording listener
func NewRecordingListener(name string) *RecordingListener {
	return &RecordingListener{name: name}
}

// Name implements event.Listener
func (r *RecordingListener) Name() string { return r.name }

// Handle implements event.Listener
func (r *RecordingListener) Handle(_ context.Context, ev event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Flush implements event.Flusher
func (r *RecordingListener) Flush(context.Context) error {
	if r.FlushDelay > 0 {
		time.Sleep(r.FlushDelay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushed = true
	return nil
}

// Events returns a copy of the received events
func (r *RecordingListener) Events() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...)
}

// Names returns the names of the received events in order
func (r *RecordingListener) Names() []event.Name {
	events := r.Events()
	names := make([]event.Name, 0, len(events))
	for _, ev := range events {
		names = append(names, ev.Name())
	}
	return names
}

// Count returns how many events with the given name were received
func (r *RecordingListener) Count(name event.Name) int {
	n := 0
	for _, got := range r.Names() {
		if got == name {
			n++
		}
	}
	return n
}

// Flushed reports whether Flush completed
func (r *RecordingListener) Flushed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushed
}

// MockRule is a testify mock of rule.Rule
type MockRule struct {
	mock.Mock
}

var _ rule.Rule = (*MockRule)(nil)

// Name returns the mocked rule name
func (m *MockRule) Name() string {
	return m.Called().String(0)
}

// Description returns the mocked description
func (m *MockRule) Description() string {
	return m.Called().String(0)
}

// DefaultSeverity returns the mocked severity
func (m *MockRule) DefaultSeverity() types.Severity {
	return m.Called().Get(0).(types.Severity)
}

// Check returns the mocked issues
func (m *MockRule) Check(ctx context.Context, rc *rule.Context) ([]types.Issue, error) {
	args := m.Called(ctx, rc)
	issues, _ := args.Get(0).([]types.Issue)
	return issues, args.Error(1)
}

// MockWorkspaceFinder returns fixed workspaces
type MockWorkspaceFinder struct {
	Workspaces []types.WorkspaceInfo
	Err        error
	// Block makes Find wait for its context to be cancelled
	Block bool
}

// Find returns the configured workspaces
func (m *MockWorkspaceFinder) Find(ctx context.Context, _ types.SmokerOptions) ([]types.WorkspaceInfo, error) {
	if m.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.Workspaces, m.Err
}
