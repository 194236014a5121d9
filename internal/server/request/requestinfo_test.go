package request_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nethost.io/nethost/internal/server/request"
)

func TestNewRequestInfoParsesResourcePath(t *testing.T) {
	f := request.NewInfoFactory()
	req := httptest.NewRequest(http.MethodGet, "/apis/network.nethost.io/v1alpha1/networks/abc-123/fixed-ips", nil)

	info, err := f.NewRequestInfo(req)
	require.NoError(t, err)

	assert.True(t, info.IsResourceRequest)
	assert.Equal(t, "get", info.Verb)
	assert.Equal(t, "network.nethost.io", info.APIGroup)
	assert.Equal(t, "v1alpha1", info.APIVersion)
	assert.Equal(t, "networks", info.Resource)
	assert.Equal(t, "abc-123", info.Name)
	assert.Equal(t, "fixed-ips", info.Subresource)
}

func TestNewRequestInfoTreatsNonAPIPathsAsNonResource(t *testing.T) {
	f := request.NewInfoFactory()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	info, err := f.NewRequestInfo(req)
	require.NoError(t, err)

	assert.False(t, info.IsResourceRequest)
	assert.Equal(t, "/healthz", info.Path)
}

func TestWithRequestInfoRoundTripsThroughContext(t *testing.T) {
	info := &request.Info{Resource: "networks"}
	ctx := request.WithRequestInfo(httptest.NewRequest(http.MethodGet, "/", nil).Context(), info)

	got, ok := request.InfoFrom(ctx)
	require.True(t, ok)
	assert.Same(t, info, got)
}
