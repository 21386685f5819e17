// Package process provides process management utilities
package process

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/smoker/smoker/pkg/logger"
)

// SignalError is the cancellation cause of a context cancelled by a signal
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("received signal %s", e.Signal)
}

// Manager turns termination signals into context cancellation. The first
// signal cancels the run so it can shut down cleanly; a second one calls
// the force handler.
type Manager struct {
	logger           logger.Logger
	shutdownHandlers []func()
	signals          []os.Signal

	// notify and stop default to signal.Notify and signal.Stop
	notify func(c chan<- os.Signal, sig ...os.Signal)
	stop   func(c chan<- os.Signal)
	force  func()

	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewManager creates a new process manager
func NewManager(log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Manager{
		logger:  log,
		signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
		notify:  signal.Notify,
		stop:    signal.Stop,
		force:   func() { os.Exit(130) },
	}
}

// RegisterShutdownHandler adds a handler run when a signal arrives.
// Handlers run in reverse registration order.
func (m *Manager) RegisterShutdownHandler(handler func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shutdownHandlers = append(m.shutdownHandlers, handler)
}

// OnForce replaces the handler for a second signal
func (m *Manager) OnForce(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.force = fn
}

// Start returns a context derived from ctx that is cancelled with a
// SignalError when the process is asked to terminate. Stop releases the
// signal handler.
func (m *Manager) Start(ctx context.Context) context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ctx
	}
	m.running = true
	m.done = make(chan struct{})

	ctx, cancel := context.WithCancelCause(ctx)
	sigChan := make(chan os.Signal, 2)
	m.notify(sigChan, m.signals...)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.stop(sigChan)

		select {
		case <-m.done:
			cancel(nil)
			return
		case sig := <-sigChan:
			m.logger.Warn("Received signal, shutting down", logger.WithField("signal", sig.String()))
			cancel(&SignalError{Signal: sig})
			m.handleShutdown()
		}

		select {
		case <-m.done:
		case sig := <-sigChan:
			m.logger.Error("Received second signal, forcing exit", logger.WithField("signal", sig.String()))
			m.mu.Lock()
			force := m.force
			m.mu.Unlock()
			force()
		}
	}()
	return ctx
}

// Stop stops the process manager
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.done)
	m.mu.Unlock()

	m.wg.Wait()
}

// IsRunning checks if the process manager is running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) handleShutdown() {
	m.mu.Lock()
	handlers := make([]func(), len(m.shutdownHandlers))
	copy(handlers, m.shutdownHandlers)
	m.mu.Unlock()

	for i := len(handlers) - 1; i >= 0; i-- {
		handlers[i]()
	}
}
