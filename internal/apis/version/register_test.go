package version_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/emicklei/go-restful/v3"
	"github.com/stretchr/testify/require"

	"nethost.io/nethost/internal/apis/version"
)

func TestVersionHandlerServesBuildInfo(t *testing.T) {
	c := restful.NewContainer()
	require.NoError(t, version.NewHandler().AddToContainer(c))

	req := httptest.NewRequest(http.MethodGet, "/apis/version.nethost.io/version", nil)
	rec := httptest.NewRecorder()
	c.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body, "gitVersion")
}
