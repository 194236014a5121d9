package fakedriver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDriverRecordsCallsInOrder(t *testing.T) {
	d := New()
	ctx := context.Background()

	require := assert.New(t)
	require.NoError(d.InitHost(ctx))
	require.NoError(d.EnsureBridge(ctx, "br0", "eth1", nil))
	require.NoError(d.UpdateDHCP(ctx, nil))

	assert.Equal(t, []string{"init_host", "ensure_bridge:br0", "update_dhcp:"}, d.Calls)
}
