package floatingip_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nethost.io/nethost/internal/driver/fakedriver"
	"nethost.io/nethost/internal/floatingip"
	"nethost.io/nethost/internal/store"
	"nethost.io/nethost/internal/store/memstore"
)

func newNetwork(t *testing.T, st *memstore.Store, host string) (string, string) {
	t.Helper()
	ctx := context.Background()
	n, err := st.NetworkCreateSafe(ctx, store.NetworkFields{
		Label: "net", CIDR: "10.0.0.0/29", Gateway: "10.0.0.1", Netmask: "255.255.255.248",
	})
	require.NoError(t, err)
	require.NotNil(t, n)

	claimed, err := st.NetworkSetHost(ctx, n.ID, host)
	require.NoError(t, err)
	require.True(t, claimed)

	fip, err := st.FixedIPCreate(ctx, n.ID, "10.0.0.3", false)
	require.NoError(t, err)
	return n.ID.String(), fip.Address
}

func TestAssociateBindsAndForwards(t *testing.T) {
	st := memstore.New()
	drv := fakedriver.New()
	st.SeedFloatingIP("203.0.113.5")
	_, fixedAddr := newNetwork(t, st, "host-a")

	svc := floatingip.New(st, drv, nil, floatingip.Options{Host: "host-a"})
	ctx := context.Background()

	address, err := svc.Allocate(ctx, "proj-1")
	require.NoError(t, err)
	require.Equal(t, "203.0.113.5", address)

	require.NoError(t, svc.Associate(ctx, address, fixedAddr))

	fip, err := st.FloatingIPGetByAddress(ctx, address)
	require.NoError(t, err)
	assert.NotNil(t, fip.FixedIPID)
	assert.Contains(t, drv.Calls, "bind_floating_ip:203.0.113.5")
	assert.Contains(t, drv.Calls, "ensure_floating_forward:203.0.113.5")
}

func TestAssociateFailsWhenAlreadyAssociated(t *testing.T) {
	st := memstore.New()
	drv := fakedriver.New()
	st.SeedFloatingIP("203.0.113.5")
	_, fixedAddr := newNetwork(t, st, "host-a")

	svc := floatingip.New(st, drv, nil, floatingip.Options{Host: "host-a"})
	ctx := context.Background()

	address, err := svc.Allocate(ctx, "proj-1")
	require.NoError(t, err)
	require.NoError(t, svc.Associate(ctx, address, fixedAddr))

	err = svc.Associate(ctx, address, fixedAddr)
	require.Error(t, err)
}

func TestDisassociateIsIdempotent(t *testing.T) {
	st := memstore.New()
	drv := fakedriver.New()
	st.SeedFloatingIP("203.0.113.5")
	_, fixedAddr := newNetwork(t, st, "host-a")

	svc := floatingip.New(st, drv, nil, floatingip.Options{Host: "host-a"})
	ctx := context.Background()

	address, err := svc.Allocate(ctx, "proj-1")
	require.NoError(t, err)
	require.NoError(t, svc.Associate(ctx, address, fixedAddr))

	require.NoError(t, svc.Disassociate(ctx, address))
	require.NoError(t, svc.Disassociate(ctx, address), "disassociating twice must be a no-op, not an error")
}

type rejectingQuota struct{}

func (rejectingQuota) CheckFloatingIPQuota(ctx context.Context, projectID string) error {
	return assert.AnError
}

func TestAllocateFailsOnQuotaBeforeConsumingPool(t *testing.T) {
	st := memstore.New()
	drv := fakedriver.New()
	st.SeedFloatingIP("203.0.113.5")

	svc := floatingip.New(st, drv, rejectingQuota{}, floatingip.Options{Host: "host-a"})
	_, err := svc.Allocate(context.Background(), "proj-1")
	require.Error(t, err)

	fip, err := st.FloatingIPGetByAddress(context.Background(), "203.0.113.5")
	require.NoError(t, err)
	assert.Nil(t, fip.ProjectID, "quota failure must not consume the pool address")
}

func TestReconcileOnStartupRebindsOwnedAddresses(t *testing.T) {
	st := memstore.New()
	drv := fakedriver.New()
	st.SeedFloatingIP("203.0.113.5")
	_, fixedAddr := newNetwork(t, st, "host-a")

	svc := floatingip.New(st, drv, nil, floatingip.Options{Host: "host-a"})
	ctx := context.Background()

	address, err := svc.Allocate(ctx, "proj-1")
	require.NoError(t, err)
	require.NoError(t, svc.Associate(ctx, address, fixedAddr))

	drv.Calls = nil
	require.NoError(t, svc.ReconcileOnStartup(ctx))
	assert.Contains(t, drv.Calls, "bind_floating_ip:203.0.113.5")
}
