package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTimeoutConfig(t *testing.T) {
	config := DefaultTimeoutConfig()

	assert.Equal(t, 30*time.Second, config.HTTPHandler)
	assert.Equal(t, 5*time.Minute, config.Sweep)
	assert.Less(t, config.GatewayVerify, config.HTTPHandler, "verification must finish before the handler times out")
}

func TestHandlerContext(t *testing.T) {
	config := TestTimeoutConfig()

	ctx, cancel := config.HandlerContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(config.HTTPHandler), deadline, 100*time.Millisecond)
}

func TestSweepContext(t *testing.T) {
	config := TestTimeoutConfig()

	ctx, cancel := config.SweepContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(config.Sweep), deadline, 100*time.Millisecond)
}

func TestNotifierContext_OutlivesParent(t *testing.T) {
	config := TestTimeoutConfig()

	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := config.NotifierContext(parent)
	defer cancel()

	cancelParent()
	assert.NoError(t, ctx.Err())

	_, ok := ctx.Deadline()
	assert.True(t, ok)
}
