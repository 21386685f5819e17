package engine

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/smoker/smoker/pkg/logger"
)

// SafeGroup wraps errgroup.Group with panic recovery so a panicking
// goroutine becomes an error instead of crashing the run.
type SafeGroup struct {
	group  *errgroup.Group
	logger logger.Logger
}

// NewSafeGroup creates a new SafeGroup with panic recovery
func NewSafeGroup(ctx context.Context, log logger.Logger) (*SafeGroup, context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	return &SafeGroup{
		group:  g,
		logger: log,
	}, ctx
}

// Go runs fn in a new goroutine. A panic is logged with its stack trace and
// returned as an error.
func (sg *SafeGroup) Go(fn func() error) {
	sg.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				sg.logger.Error("Goroutine panic recovered",
					logger.WithField("panic", r),
					logger.WithField("stack_trace", string(debug.Stack())))
				err = fmt.Errorf("goroutine panic: %v", r)
			}
		}()
		return fn()
	})
}

// Wait blocks until all goroutines have completed and returns the first error
func (sg *SafeGroup) Wait() error {
	return sg.group.Wait()
}

// recoverTo converts a panic in an actor into an error via onPanic. It must
// be deferred directly.
func recoverTo(log logger.Logger, name string, onPanic func(err error)) {
	if r := recover(); r != nil {
		log.Error("Actor panic recovered",
			logger.WithField("actor", name),
			logger.WithField("panic", r),
			logger.WithField("stack_trace", string(debug.Stack())))
		onPanic(fmt.Errorf("%s panicked: %v", name, r))
	}
}
