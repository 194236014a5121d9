package filters

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"nethost.io/nethost/internal/server/request"
)

func TestWithMetricsLabelsByResolvedRequestInfo(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	handler := WithRequestInfo(WithMetrics(next), request.NewInfoFactory())
	req := httptest.NewRequest(http.MethodGet, "/apis/network.nethost.io/v1alpha1/networks", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	counter := requestTotal.WithLabelValues("get", "network.nethost.io", "v1alpha1", "networks", "418")
	assert.Equal(t, float64(1), testutil.ToFloat64(counter))
}
