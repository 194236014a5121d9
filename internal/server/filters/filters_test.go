package filters_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nethost.io/nethost/internal/server/filters"
	"nethost.io/nethost/internal/server/request"
)

func TestWithRequestInfoMakesInfoAvailableDownstream(t *testing.T) {
	var gotResource string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, ok := request.InfoFrom(r.Context())
		require.True(t, ok)
		gotResource = info.Resource
		w.WriteHeader(http.StatusOK)
	})

	handler := filters.WithRequestInfo(next, request.NewInfoFactory())
	req := httptest.NewRequest(http.MethodGet, "/apis/network.nethost.io/v1alpha1/networks", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "networks", gotResource)
}

func TestWithMetricsPreservesTheWrappedHandlersResponse(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	handler := filters.WithRequestInfo(filters.WithMetrics(next), request.NewInfoFactory())
	req := httptest.NewRequest(http.MethodGet, "/apis/network.nethost.io/v1alpha1/networks", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
}
