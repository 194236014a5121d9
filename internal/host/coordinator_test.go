package host_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nethost.io/nethost/internal/driver/fakedriver"
	"nethost.io/nethost/internal/engine"
	"nethost.io/nethost/internal/host"
	"nethost.io/nethost/internal/policy"
	"nethost.io/nethost/internal/store"
	"nethost.io/nethost/internal/store/memstore"
)

func TestCoordinatorStartupRerunsOnBecomeHostForOwnedNetworks(t *testing.T) {
	st := memstore.New()
	drv := fakedriver.New()
	ctx := context.Background()

	n, err := st.NetworkCreateSafe(ctx, store.NetworkFields{
		Label: "net", CIDR: "10.0.0.0/29", Gateway: "10.0.0.1", Netmask: "255.255.255.248", Bridge: "br0",
	})
	require.NoError(t, err)
	claimed, err := st.NetworkSetHost(ctx, n.ID, "host-a")
	require.NoError(t, err)
	require.True(t, claimed)

	eng := engine.New(st, drv, engine.Options{Host: "host-a"})
	c := &host.Coordinator{
		Engine: eng,
		Policy: &policy.FlatDHCPPolicy{Engine: eng, Driver: drv, FlatBridge: "br0", FlatIface: "eth0"},
	}

	require.NoError(t, c.Startup(ctx))
	require.Contains(t, drv.Calls, "ensure_bridge:br0")
}

func TestCoordinatorTickClaimsOneUnclaimedNetwork(t *testing.T) {
	st := memstore.New()
	drv := fakedriver.New()
	ctx := context.Background()

	_, err := st.NetworkCreateSafe(ctx, store.NetworkFields{
		Label: "unclaimed", CIDR: "10.0.0.0/29", Gateway: "10.0.0.1", Netmask: "255.255.255.248", Bridge: "br0",
	})
	require.NoError(t, err)

	eng := engine.New(st, drv, engine.Options{Host: "host-a"})
	c := &host.Coordinator{
		Engine:           eng,
		Policy:           &policy.FlatDHCPPolicy{Engine: eng, Driver: drv, FlatBridge: "br0", FlatIface: "eth0"},
		PeriodicInterval: 10 * time.Millisecond,
	}

	runCtx, cancel := context.WithTimeout(ctx, 60*time.Millisecond)
	defer cancel()
	c.Run(runCtx)

	owned, err := st.NetworkGetAllByHost(ctx, "host-a")
	require.NoError(t, err)
	require.Len(t, owned, 1, "periodic loop should have claimed the unclaimed network within the timeout")
}
