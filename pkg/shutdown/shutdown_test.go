package shutdown

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManager_ShutdownRunsInReverseOrder(t *testing.T) {
	m := NewManager(zap.NewNop(), time.Second)
	var order []string
	m.RegisterNoErr("database", func() { order = append(order, "database") })
	m.RegisterNoErr("notifier", func() { order = append(order, "notifier") })
	m.RegisterNoErr("http", func() { order = append(order, "http") })

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, []string{"http", "notifier", "database"}, order)
}

func TestManager_ShutdownContinuesAfterFailure(t *testing.T) {
	m := NewManager(zap.NewNop(), time.Second)
	closed := false
	m.RegisterNoErr("database", func() { closed = true })
	m.Register("broker", func(context.Context) error { return errors.New("connection reset") })

	err := m.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker: connection reset")
	assert.True(t, closed)
}

func TestInFlightTracker_WaitsForWork(t *testing.T) {
	tracker := NewInFlightTracker("test", zap.NewNop())
	var done atomic.Bool
	release := make(chan struct{})

	require.True(t, tracker.Go(func() {
		<-release
		done.Store(true)
	}))

	go close(release)
	require.NoError(t, tracker.Shutdown(context.Background()))
	assert.True(t, done.Load())
	assert.True(t, tracker.IsShuttingDown())
	assert.False(t, tracker.Go(func() {}), "no new work after shutdown")
}

func TestInFlightTracker_ShutdownTimeout(t *testing.T) {
	tracker := NewInFlightTracker("test", zap.NewNop())
	block := make(chan struct{})
	defer close(block)
	tracker.Go(func() { <-block })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tracker.Shutdown(ctx), context.DeadlineExceeded)
}
