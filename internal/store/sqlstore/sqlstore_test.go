package sqlstore

import (
	"context"
	"os"
	"testing"

	"github.com/gobuffalo/pop/v6"
	"github.com/stretchr/testify/require"

	"nethost.io/nethost/internal/store"
)

// TestStoreAgainstLiveDatabase exercises the pop-backed Store against a
// real PostgreSQL instance. It is skipped unless NETHOST_TEST_DATABASE_URL
// is set, since no database is available in this environment.
func TestStoreAgainstLiveDatabase(t *testing.T) {
	dsn := os.Getenv("NETHOST_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("NETHOST_TEST_DATABASE_URL not set")
	}

	conn, err := GetConnection(&pop.ConnectionDetails{URL: dsn})
	require.NoError(t, err)
	defer conn.Close()

	s := New(conn)
	require.NoError(t, s.MigrateUp())
	defer func() { _ = s.MigrateDown(0) }()

	ctx := context.Background()
	n, err := s.NetworkCreateSafe(ctx, store.NetworkFields{
		Label:   "test",
		CIDR:    "192.168.50.0/24",
		Gateway: "192.168.50.1",
		Netmask: "255.255.255.0",
	})
	require.NoError(t, err)
	require.NotNil(t, n)

	dup, err := s.NetworkCreateSafe(ctx, store.NetworkFields{Label: "dup", CIDR: "192.168.50.0/24", Gateway: "192.168.50.1"})
	require.NoError(t, err)
	require.Nil(t, dup)

	ok, err := s.NetworkSetHost(ctx, n.ID, "host-a")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.NetworkSetHost(ctx, n.ID, "host-b")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = s.FixedIPCreate(ctx, n.ID, "192.168.50.10", false)
	require.NoError(t, err)
	fips, err := s.FixedIPGetAllByNetwork(ctx, n.ID)
	require.NoError(t, err)
	require.Len(t, fips, 1)
	require.Equal(t, "192.168.50.10", fips[0].Address)
}
