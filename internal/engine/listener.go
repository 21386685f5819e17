package engine

import (
	"context"
	"fmt"
	"time"

	smokeerrors "github.com/smoker/smoker/pkg/errors"
	"github.com/smoker/smoker/pkg/event"
	"github.com/smoker/smoker/pkg/logger"
)

type listenerMsg struct {
	ev    event.Event
	close bool
}

// listenerActor delivers events to one listener in its own goroutine so a
// slow reporter never blocks the run
type listenerActor struct {
	listener event.Listener
	mb       *mailbox[listenerMsg]
	done     chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	log      logger.Logger
}

func startListener(ctx context.Context, l event.Listener, log logger.Logger) *listenerActor {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a := &listenerActor{
		listener: l,
		mb:       newMailbox[listenerMsg](),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		log:      log.WithTarget("listener:" + l.Name()),
	}
	go a.run()
	return a
}

func (a *listenerActor) send(ev event.Event) {
	a.mb.send(listenerMsg{ev: ev})
}

// close asks the listener to flush and exit after every queued event
func (a *listenerActor) close() {
	a.mb.send(listenerMsg{close: true})
}

func (a *listenerActor) run() {
	defer close(a.done)
	defer a.cancel()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-a.mb.ready():
		}
		for _, msg := range a.mb.drain() {
			if msg.close {
				a.flush()
				return
			}
			a.deliver(msg.ev)
		}
	}
}

func (a *listenerActor) deliver(ev event.Event) {
	defer recoverTo(a.log, "listener "+a.listener.Name(), func(err error) {})
	if err := a.listener.Handle(a.ctx, ev); err != nil {
		a.log.Warn("Listener failed to handle event",
			logger.WithField("event", string(ev.Name())),
			logger.WithError(err))
	}
}

func (a *listenerActor) flush() {
	f, ok := a.listener.(event.Flusher)
	if !ok {
		return
	}
	defer recoverTo(a.log, "listener "+a.listener.Name(), func(err error) {})
	if err := f.Flush(a.ctx); err != nil {
		a.log.Warn("Listener failed to flush", logger.WithError(err))
	}
}

// closeListeners closes every listener and waits up to timeout for them to
// exit. Listeners still running afterwards are cancelled and reported.
func closeListeners(actors []*listenerActor, timeout time.Duration) error {
	for _, a := range actors {
		a.close()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var errs []error
	expired := false
	for _, a := range actors {
		if !expired {
			select {
			case <-a.done:
				continue
			case <-timer.C:
				expired = true
			}
		}
		select {
		case <-a.done:
		default:
			a.cancel()
			errs = append(errs, fmt.Errorf("%s: %w", a.listener.Name(), smokeerrors.ErrListenerTimeout))
		}
	}
	return smokeerrors.Join(errs...)
}
