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

func newVLANFixture(t *testing.T, host string) (*policy.VLANPolicy, *memstore.Store, *model.Network, uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	st := memstore.New()
	drv := fakedriver.New()
	instanceTypeID := uuid.Must(uuid.NewV4())
	st.SeedInstanceType(&model.InstanceType{ID: instanceTypeID, Name: "small", RXTXCap: 100})

	vlan := 100
	port := 1000
	vpnPrivate := "10.0.0.2"
	n, err := st.NetworkCreateSafe(ctx, store.NetworkFields{
		Label: "net", CIDR: "10.0.0.0/29", Gateway: "10.0.0.1", Netmask: "255.255.255.248",
		Bridge: "br100", VLAN: &vlan, VPNPublicPort: &port, VPNPrivateAddress: &vpnPrivate,
	})
	require.NoError(t, err)
	claimed, err := st.NetworkSetHost(ctx, n.ID, host)
	require.NoError(t, err)
	require.True(t, claimed)
	_, err = st.FixedIPCreate(ctx, n.ID, "10.0.0.3", false)
	require.NoError(t, err)
	_, err = st.FixedIPCreate(ctx, n.ID, vpnPrivate, true)
	require.NoError(t, err)
	n, err = st.NetworkGet(ctx, n.ID)
	require.NoError(t, err)

	eng := engine.New(st, drv, engine.Options{Host: host})
	fan := &rpc.FanOut{Self: host, Local: func(ctx context.Context, instanceID uuid.UUID, network *model.Network, requestedAddress string) (string, error) {
		return eng.AllocateFixedIP(ctx, instanceID, network, false, true)
	}}
	fip := floatingip.New(st, drv, nil, floatingip.Options{Host: host})

	p := &policy.VLANPolicy{
		Engine:     eng,
		FloatingIP: fip,
		FanOut:     fan,
		Driver:     drv,
		VLANIface:  "eth0",
		VPNIP:      "198.51.100.1",
	}
	return p, st, n, instanceTypeID
}

func TestVLANAllocateForInstanceFansOutNonVPN(t *testing.T) {
	p, _, n, instanceTypeID := newVLANFixture(t, "host-a")
	ctx := context.Background()

	instance := &model.Instance{ID: uuid.Must(uuid.NewV4()), ProjectID: "proj-1", InstanceTypeID: instanceTypeID}
	infos, err := p.AllocateForInstance(ctx, policy.AllocateRequest{Instance: instance, Networks: []*model.Network{n}})
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, "10.0.0.3", infos[0].Interface.IPs[0].IP)
}

func TestVLANAllocateForInstanceBindsVPNPrivateAddressDirectly(t *testing.T) {
	p, _, n, instanceTypeID := newVLANFixture(t, "host-a")
	ctx := context.Background()

	instance := &model.Instance{ID: uuid.Must(uuid.NewV4()), ProjectID: "proj-1", InstanceTypeID: instanceTypeID}
	infos, err := p.AllocateForInstance(ctx, policy.AllocateRequest{Instance: instance, Networks: []*model.Network{n}, VPN: true})
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, "10.0.0.2", infos[0].Interface.IPs[0].IP)
}

func TestVLANOnBecomeHostEnsuresBridgeAssignsVPNAddressAndForwards(t *testing.T) {
	p, st, n, _ := newVLANFixture(t, "host-a")
	ctx := context.Background()

	drv := p.Driver.(*fakedriver.Driver)
	drv.Calls = nil
	require.NoError(t, p.OnBecomeHost(ctx, n))
	require.Contains(t, drv.Calls, "ensure_vlan_bridge:br100")
	require.Contains(t, drv.Calls, "ensure_vlan_forward:198.51.100.1")

	updated, err := st.NetworkGet(ctx, n.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.VPNPublicAddress)
	require.Equal(t, "198.51.100.1", *updated.VPNPublicAddress)
}
