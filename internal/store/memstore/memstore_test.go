package memstore

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nethost.io/nethost/internal/store"
)

func TestFixedIPAssociatePoolIsDeterministic(t *testing.T) {
	ctx := context.Background()
	s := New()

	n, err := s.NetworkCreateSafe(ctx, store.NetworkFields{Label: "priv", CIDR: "10.0.0.0/29", Gateway: "10.0.0.1"})
	require.NoError(t, err)

	_, err = s.FixedIPCreate(ctx, n.ID, "10.0.0.1", true)
	require.NoError(t, err)
	_, err = s.FixedIPCreate(ctx, n.ID, "10.0.0.2", true)
	require.NoError(t, err)
	_, err = s.FixedIPCreate(ctx, n.ID, "10.0.0.3", false)
	require.NoError(t, err)
	_, err = s.FixedIPCreate(ctx, n.ID, "10.0.0.4", false)
	require.NoError(t, err)

	instanceA, _ := uuid.NewV4()
	addr, err := s.FixedIPAssociatePool(ctx, n.ID, instanceA)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.3", addr)

	instanceB, _ := uuid.NewV4()
	addr, err = s.FixedIPAssociatePool(ctx, n.ID, instanceB)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.4", addr)

	instanceC, _ := uuid.NewV4()
	_, err = s.FixedIPAssociatePool(ctx, n.ID, instanceC)
	assert.Error(t, err)

	_, err = s.FixedIPDisassociate(ctx, "10.0.0.3")
	require.NoError(t, err)

	addr, err = s.FixedIPAssociatePool(ctx, n.ID, instanceC)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.3", addr, "the reclaimed lowest offset must be reused before any higher one")
}

func TestNetworkSetHostFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	s := New()

	n, err := s.NetworkCreateSafe(ctx, store.NetworkFields{Label: "priv", CIDR: "10.0.1.0/24", Gateway: "10.0.1.1"})
	require.NoError(t, err)

	ok, err := s.NetworkSetHost(ctx, n.ID, "host-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.NetworkSetHost(ctx, n.ID, "host-b")
	require.NoError(t, err)
	assert.False(t, ok, "a claimed network must reject a second claim")

	got, err := s.NetworkGet(ctx, n.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Host)
	assert.Equal(t, "host-a", *got.Host)
}

func TestVirtualInterfaceCreateRejectsMACCollision(t *testing.T) {
	ctx := context.Background()
	s := New()

	n, err := s.NetworkCreateSafe(ctx, store.NetworkFields{Label: "priv", CIDR: "10.0.2.0/24", Gateway: "10.0.2.1"})
	require.NoError(t, err)

	instanceA, _ := uuid.NewV4()
	instanceB, _ := uuid.NewV4()
	mac := "02:16:3e:aa:bb:cc"

	_, err = s.VirtualInterfaceCreate(ctx, instanceA, n.ID, mac)
	require.NoError(t, err)

	_, err = s.VirtualInterfaceCreate(ctx, instanceB, n.ID, mac)
	assert.Error(t, err)
}

func TestFloatingIPAssociateLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.SeedFloatingIP("198.51.100.10")

	addr, err := s.FloatingIPAllocateAddress(ctx, "project-1")
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.10", addr)

	n, err := s.NetworkCreateSafe(ctx, store.NetworkFields{Label: "priv", CIDR: "10.0.3.0/24", Gateway: "10.0.3.1"})
	require.NoError(t, err)
	_, err = s.FixedIPCreate(ctx, n.ID, "10.0.3.5", false)
	require.NoError(t, err)

	require.NoError(t, s.FloatingIPFixedIPAssociate(ctx, addr, "10.0.3.5"))

	err = s.FloatingIPDeallocate(ctx, addr)
	assert.Error(t, err, "an associated floating ip must not be deallocated")

	fixedAddr, err := s.FloatingIPDisassociate(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, "10.0.3.5", fixedAddr)

	require.NoError(t, s.FloatingIPDeallocate(ctx, addr))
}

func TestFixedIPGetAllByNetworkListsEveryAddress(t *testing.T) {
	ctx := context.Background()
	s := New()

	n, err := s.NetworkCreateSafe(ctx, store.NetworkFields{Label: "priv", CIDR: "10.0.4.0/29", Gateway: "10.0.4.1"})
	require.NoError(t, err)
	_, err = s.FixedIPCreate(ctx, n.ID, "10.0.4.1", true)
	require.NoError(t, err)
	_, err = s.FixedIPCreate(ctx, n.ID, "10.0.4.3", false)
	require.NoError(t, err)

	fips, err := s.FixedIPGetAllByNetwork(ctx, n.ID)
	require.NoError(t, err)
	require.Len(t, fips, 2)

	other, err := s.NetworkCreateSafe(ctx, store.NetworkFields{Label: "other", CIDR: "10.0.5.0/29", Gateway: "10.0.5.1"})
	require.NoError(t, err)
	fips, err = s.FixedIPGetAllByNetwork(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, fips)
}
