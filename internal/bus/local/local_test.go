package local_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nethost.io/nethost/internal/bus"
	"nethost.io/nethost/internal/bus/local"
)

func TestCallRoutesToRegisteredHandler(t *testing.T) {
	b := local.New(2, 8)
	defer b.Close()

	b.Register("network", "host-a", func(ctx context.Context, req bus.Request) (bus.Response, error) {
		return bus.Response{Result: map[string]interface{}{"echo": req.Args["value"]}}, nil
	})

	resp, err := b.Call(context.Background(), "network", "host-a", bus.Request{
		Method: "_rpc_allocate_fixed_ip",
		Args:   map[string]interface{}{"value": "10.0.0.3"},
	})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.3", resp.Result["echo"])
}

func TestCallFailsWithoutRegisteredHandler(t *testing.T) {
	b := local.New(1, 4)
	defer b.Close()

	_, err := b.Call(context.Background(), "network", "host-missing", bus.Request{Method: "x"})
	require.Error(t, err)
}

func TestCallRespectsContextCancellation(t *testing.T) {
	b := local.New(1, 4)
	defer b.Close()

	release := make(chan struct{})
	b.Register("network", "host-a", func(ctx context.Context, req bus.Request) (bus.Response, error) {
		<-release
		return bus.Response{}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := b.Call(ctx, "network", "host-a", bus.Request{Method: "slow"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}
