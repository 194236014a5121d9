package rpc_test

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nethost.io/nethost/internal/bus/local"
	"nethost.io/nethost/internal/model"
	"nethost.io/nethost/internal/rpc"
)

func hostStr(s string) *string { return &s }

func TestFanOutAllocatesLocalNetworkDirectly(t *testing.T) {
	instanceID := uuid.Must(uuid.NewV4())
	networkID := uuid.Must(uuid.NewV4())
	network := &model.Network{ID: networkID, Host: hostStr("host-a")}

	f := &rpc.FanOut{
		Self: "host-a",
		Local: func(ctx context.Context, instance uuid.UUID, n *model.Network, requestedAddress string) (string, error) {
			assert.Equal(t, instanceID, instance)
			return "10.0.0.3", nil
		},
	}

	results, err := f.Allocate(context.Background(), instanceID, []rpc.Target{{Network: network}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "10.0.0.3", results[0].Address)
}

func TestFanOutDispatchesRemoteNetworkOverBus(t *testing.T) {
	b := local.New(2, 8)
	defer b.Close()

	instanceID := uuid.Must(uuid.NewV4())
	networkID := uuid.Must(uuid.NewV4())
	remoteNetwork := &model.Network{ID: networkID, Host: hostStr("host-b")}

	rpc.RegisterHandler(b, "network", "host-b",
		func(ctx context.Context, id uuid.UUID) (*model.Network, error) {
			return remoteNetwork, nil
		},
		func(ctx context.Context, instance uuid.UUID, n *model.Network, requestedAddress string) (string, error) {
			return "10.0.0.9", nil
		},
	)

	f := &rpc.FanOut{
		Bus:   b,
		Topic: "network",
		Self:  "host-a",
		Local: func(ctx context.Context, instance uuid.UUID, n *model.Network, requestedAddress string) (string, error) {
			t.Fatal("local allocator should not be called for a remote-owned network")
			return "", nil
		},
	}

	results, err := f.Allocate(context.Background(), instanceID, []rpc.Target{{Network: remoteNetwork}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "10.0.0.9", results[0].Address)
}

func TestFanOutTreatsMultiHostNetworkAsLocal(t *testing.T) {
	instanceID := uuid.Must(uuid.NewV4())
	networkID := uuid.Must(uuid.NewV4())
	network := &model.Network{ID: networkID, Host: hostStr("host-b"), MultiHost: true}

	called := false
	f := &rpc.FanOut{
		Self: "host-a",
		Local: func(ctx context.Context, instance uuid.UUID, n *model.Network, requestedAddress string) (string, error) {
			called = true
			return "10.0.0.4", nil
		},
	}

	_, err := f.Allocate(context.Background(), instanceID, []rpc.Target{{Network: network}})
	require.NoError(t, err)
	assert.True(t, called, "multi_host networks must be served locally regardless of network.Host")
}
