package networkinfo_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/emicklei/go-restful/v3"
	"github.com/stretchr/testify/require"

	"nethost.io/nethost/internal/apis/networkinfo"
	"nethost.io/nethost/internal/store"
	"nethost.io/nethost/internal/store/memstore"
)

func newContainer(t *testing.T, st store.Store) *restful.Container {
	t.Helper()
	c := restful.NewContainer()
	require.NoError(t, networkinfo.NewHandler(st).AddToContainer(c))
	return c
}

func TestListNetworksReturnsEveryNetwork(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	_, err := st.NetworkCreateSafe(ctx, store.NetworkFields{
		Label: "net-a", CIDR: "10.0.0.0/29", Gateway: "10.0.0.1", Netmask: "255.255.255.248",
	})
	require.NoError(t, err)

	c := newContainer(t, st)
	req := httptest.NewRequest(http.MethodGet, "/apis/network.nethost.io/v1alpha1/networks", nil)
	rec := httptest.NewRecorder()
	c.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, "net-a", got[0]["label"])
}

func TestListFixedIPsReturnsPoolForNetwork(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	n, err := st.NetworkCreateSafe(ctx, store.NetworkFields{
		Label: "net-a", CIDR: "10.0.0.0/29", Gateway: "10.0.0.1", Netmask: "255.255.255.248",
	})
	require.NoError(t, err)
	_, err = st.FixedIPCreate(ctx, n.ID, "10.0.0.3", false)
	require.NoError(t, err)

	c := newContainer(t, st)
	req := httptest.NewRequest(http.MethodGet, "/apis/network.nethost.io/v1alpha1/networks/"+n.ID.String()+"/fixed-ips", nil)
	rec := httptest.NewRecorder()
	c.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, "10.0.0.3", got[0]["address"])
}

func TestGetFixedIPNotFoundForUnknownAddress(t *testing.T) {
	st := memstore.New()
	c := newContainer(t, st)
	req := httptest.NewRequest(http.MethodGet, "/apis/network.nethost.io/v1alpha1/fixed-ips/10.9.9.9", nil)
	rec := httptest.NewRecorder()
	c.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
