package policy_test

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/require"

	"nethost.io/nethost/internal/driver/fakedriver"
	"nethost.io/nethost/internal/engine"
	"nethost.io/nethost/internal/floatingip"
	"nethost.io/nethost/internal/model"
	"nethost.io/nethost/internal/policy"
	"nethost.io/nethost/internal/rpc"
	"nethost.io/nethost/internal/store"
	"nethost.io/nethost/internal/store/memstore"
)

func newFlatDHCPFixture(t *testing.T, host string) (*policy.FlatDHCPPolicy, *memstore.Store, *model.Network, uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	st := memstore.New()
	drv := fakedriver.New()
	instanceTypeID := uuid.Must(uuid.NewV4())
	st.SeedInstanceType(&model.InstanceType{ID: instanceTypeID, Name: "small", RXTXCap: 100})

	n, err := st.NetworkCreateSafe(ctx, store.NetworkFields{
		Label: "net", CIDR: "10.0.0.0/29", Gateway: "10.0.0.1", Netmask: "255.255.255.248",
		Bridge: "br0", MultiHost: false,
	})
	require.NoError(t, err)
	claimed, err := st.NetworkSetHost(ctx, n.ID, host)
	require.NoError(t, err)
	require.True(t, claimed)
	_, err = st.FixedIPCreate(ctx, n.ID, "10.0.0.3", false)
	require.NoError(t, err)
	n, err = st.NetworkGet(ctx, n.ID)
	require.NoError(t, err)

	eng := engine.New(st, drv, engine.Options{Host: host})
	fan := &rpc.FanOut{Self: host, Local: func(ctx context.Context, instanceID uuid.UUID, network *model.Network, requestedAddress string) (string, error) {
		return eng.AllocateFixedIP(ctx, instanceID, network, false, true)
	}}
	fip := floatingip.New(st, drv, nil, floatingip.Options{Host: host})

	p := &policy.FlatDHCPPolicy{
		Engine:     eng,
		FloatingIP: fip,
		FanOut:     fan,
		Driver:     drv,
		FlatBridge: "br0",
		FlatIface:  "eth0",
	}
	return p, st, n, instanceTypeID
}

func TestFlatDHCPAllocateForInstanceClaimsAndAssembles(t *testing.T) {
	p, _, n, instanceTypeID := newFlatDHCPFixture(t, "host-a")
	ctx := context.Background()

	instance := &model.Instance{ID: uuid.Must(uuid.NewV4()), ProjectID: "proj-1", InstanceTypeID: instanceTypeID}

	infos, err := p.AllocateForInstance(ctx, policy.AllocateRequest{Instance: instance, Networks: []*model.Network{n}})
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Len(t, infos[0].Interface.IPs, 1)
	require.Equal(t, "10.0.0.3", infos[0].Interface.IPs[0].IP)
}

func TestFlatDHCPAllocateForInstanceHonorsRequestedAddress(t *testing.T) {
	p, _, n, instanceTypeID := newFlatDHCPFixture(t, "host-a")
	ctx := context.Background()

	instance := &model.Instance{ID: uuid.Must(uuid.NewV4()), ProjectID: "proj-1", InstanceTypeID: instanceTypeID}

	infos, err := p.AllocateForInstance(ctx, policy.AllocateRequest{
		Instance:           instance,
		Networks:           []*model.Network{n},
		RequestedAddresses: map[uuid.UUID]string{n.ID: "10.0.0.3"},
	})
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, "10.0.0.3", infos[0].Interface.IPs[0].IP)
}

func TestFlatDHCPAllocateForInstanceRejectsAlreadyAllocatedRequestedAddress(t *testing.T) {
	p, _, n, instanceTypeID := newFlatDHCPFixture(t, "host-a")
	ctx := context.Background()

	first := &model.Instance{ID: uuid.Must(uuid.NewV4()), ProjectID: "proj-1", InstanceTypeID: instanceTypeID}
	_, err := p.AllocateForInstance(ctx, policy.AllocateRequest{Instance: first, Networks: []*model.Network{n}})
	require.NoError(t, err)

	second := &model.Instance{ID: uuid.Must(uuid.NewV4()), ProjectID: "proj-1", InstanceTypeID: instanceTypeID}
	_, err = p.AllocateForInstance(ctx, policy.AllocateRequest{
		Instance:           second,
		Networks:           []*model.Network{n},
		RequestedAddresses: map[uuid.UUID]string{n.ID: "10.0.0.3"},
	})
	require.Error(t, err, "a second instance must not be able to pin an address already claimed by the first")
}

func TestFlatDHCPDeallocateLeavesAssociationForLeaseGrace(t *testing.T) {
	p, st, n, instanceTypeID := newFlatDHCPFixture(t, "host-a")
	ctx := context.Background()

	instance := &model.Instance{ID: uuid.Must(uuid.NewV4()), ProjectID: "proj-1", InstanceTypeID: instanceTypeID}
	_, err := p.AllocateForInstance(ctx, policy.AllocateRequest{Instance: instance, Networks: []*model.Network{n}})
	require.NoError(t, err)

	require.NoError(t, p.DeallocateForInstance(ctx, instance))

	fips, err := st.FixedIPGetByInstance(ctx, instance.ID)
	require.NoError(t, err)
	require.Len(t, fips, 1)
	require.False(t, fips[0].Allocated)
	require.NotNil(t, fips[0].InstanceID, "deallocate must not clear the instance association immediately")
}

func TestFlatDHCPOnBecomeHostEnsuresBridgeAndDHCP(t *testing.T) {
	p, _, n, _ := newFlatDHCPFixture(t, "host-a")
	ctx := context.Background()

	drv := p.Driver.(*fakedriver.Driver)
	drv.Calls = nil
	require.NoError(t, p.OnBecomeHost(ctx, n))
	require.Contains(t, drv.Calls, "ensure_bridge:br0")
	require.Contains(t, drv.Calls, "update_dhcp:net")
}
