package engine_test

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/require"

	"nethost.io/nethost/internal/driver/fakedriver"
	"nethost.io/nethost/internal/engine"
	"nethost.io/nethost/internal/model"
	"nethost.io/nethost/internal/store"
	"nethost.io/nethost/internal/store/memstore"
)

func newFixedIPFixture(t *testing.T) (*engine.Engine, *memstore.Store, *model.Network) {
	t.Helper()
	ctx := context.Background()

	st := memstore.New()
	n, err := st.NetworkCreateSafe(ctx, store.NetworkFields{
		Label: "net", CIDR: "10.0.0.0/29", Gateway: "10.0.0.1", Netmask: "255.255.255.248",
	})
	require.NoError(t, err)
	_, err = st.FixedIPCreate(ctx, n.ID, "10.0.0.2", false)
	require.NoError(t, err)
	_, err = st.FixedIPCreate(ctx, n.ID, "10.0.0.3", true)
	require.NoError(t, err)

	eng := engine.New(st, fakedriver.New(), engine.Options{FakeNetwork: true})
	return eng, st, n
}

func TestValidateNetworksAcceptsFreeUnreservedAddress(t *testing.T) {
	eng, _, n := newFixedIPFixture(t)
	ctx := context.Background()

	err := eng.ValidateNetworks(ctx, map[uuid.UUID]string{n.ID: "10.0.0.2"})
	require.NoError(t, err)
}

func TestValidateNetworksRejectsReservedAddress(t *testing.T) {
	eng, _, n := newFixedIPFixture(t)
	ctx := context.Background()

	err := eng.ValidateNetworks(ctx, map[uuid.UUID]string{n.ID: "10.0.0.3"})
	require.Error(t, err)
}

func TestValidateNetworksRejectsAddressOutsideCIDR(t *testing.T) {
	eng, _, n := newFixedIPFixture(t)
	ctx := context.Background()

	err := eng.ValidateNetworks(ctx, map[uuid.UUID]string{n.ID: "10.0.1.2"})
	require.Error(t, err)
}

func TestValidateNetworksRejectsAlreadyAllocatedAddress(t *testing.T) {
	eng, st, n := newFixedIPFixture(t)
	ctx := context.Background()

	instanceID := uuid.Must(uuid.NewV4())
	_, err := st.VirtualInterfaceCreate(ctx, instanceID, n.ID, "")
	require.NoError(t, err)
	_, err = eng.AllocateFixedIPAt(ctx, instanceID, n, "10.0.0.2", false)
	require.NoError(t, err)

	err = eng.ValidateNetworks(ctx, map[uuid.UUID]string{n.ID: "10.0.0.2"})
	require.Error(t, err)
}

func TestAllocateFixedIPAtClaimsTheExactAddress(t *testing.T) {
	eng, st, n := newFixedIPFixture(t)
	ctx := context.Background()

	instanceID := uuid.Must(uuid.NewV4())
	_, err := st.VirtualInterfaceCreate(ctx, instanceID, n.ID, "")
	require.NoError(t, err)

	address, err := eng.AllocateFixedIPAt(ctx, instanceID, n, "10.0.0.2", false)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.2", address)

	fip, err := st.FixedIPGetByAddress(ctx, "10.0.0.2")
	require.NoError(t, err)
	require.True(t, fip.Allocated)
	require.NotNil(t, fip.InstanceID)
	require.Equal(t, instanceID, *fip.InstanceID)
}

func TestAllocateFixedIPAtRejectsEmptyAddress(t *testing.T) {
	eng, _, n := newFixedIPFixture(t)
	ctx := context.Background()

	_, err := eng.AllocateFixedIPAt(ctx, uuid.Must(uuid.NewV4()), n, "", false)
	require.Error(t, err)
}
