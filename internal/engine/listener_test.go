package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	smokeerrors "github.com/smoker/smoker/pkg/errors"
	"github.com/smoker/smoker/pkg/event"
	"github.com/smoker/smoker/pkg/logger"
	"github.com/smoker/smoker/pkg/mocks"
)

func TestListenerActor_DeliversInOrderAndFlushes(t *testing.T) {
	rec := mocks.NewRecordingListener("rec")
	a := startListener(context.Background(), rec, logger.NewNopLogger())

	a.send(event.SmokeBegin{})
	a.send(event.Aborted{})
	a.send(event.BeforeExit{})

	require.NoError(t, closeListeners([]*listenerActor{a}, time.Second))
	assert.Equal(t, []event.Name{event.NameSmokeBegin, event.NameAborted, event.NameBeforeExit}, rec.Names())
	assert.True(t, rec.Flushed())
}

func TestListenerActor_SurvivesHandlerFailures(t *testing.T) {
	l := &mocks.MockListener{}
	l.On("Name").Return("flaky")
	l.On("Handle", mock.Anything, event.SmokeBegin{}).Return(errors.New("write failed")).Once()
	l.On("Handle", mock.Anything, event.Aborted{}).Run(func(mock.Arguments) { panic("reporter bug") }).Once()
	l.On("Handle", mock.Anything, event.BeforeExit{}).Return(nil).Once()
	l.On("Flush", mock.Anything).Return(nil).Once()

	a := startListener(context.Background(), l, logger.NewNopLogger())
	a.send(event.SmokeBegin{})
	a.send(event.Aborted{})
	a.send(event.BeforeExit{})

	require.NoError(t, closeListeners([]*listenerActor{a}, time.Second))
	l.AssertExpectations(t)
}

func TestCloseListeners_Timeout(t *testing.T) {
	fast := mocks.NewRecordingListener("fast")
	slow := mocks.NewRecordingListener("slow")
	slow.FlushDelay = 500 * time.Millisecond

	actors := []*listenerActor{
		startListener(context.Background(), fast, logger.NewNopLogger()),
		startListener(context.Background(), slow, logger.NewNopLogger()),
	}

	err := closeListeners(actors, 50*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, smokeerrors.ErrListenerTimeout)
	assert.Contains(t, err.Error(), "slow")
	assert.NotContains(t, err.Error(), "fast")
	assert.True(t, fast.Flushed())
}

func TestListenerActor_OutlivesRunContext(t *testing.T) {
	rec := mocks.NewRecordingListener("rec")
	ctx, cancel := context.WithCancel(context.Background())
	a := startListener(ctx, rec, logger.NewNopLogger())
	cancel()

	a.send(event.BeforeExit{})
	require.NoError(t, closeListeners([]*listenerActor{a}, time.Second))
	assert.Equal(t, 1, rec.Count(event.NameBeforeExit))
}
