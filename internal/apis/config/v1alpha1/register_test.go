package v1alpha1_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/emicklei/go-restful/v3"
	"github.com/stretchr/testify/require"

	v1alpha1 "nethost.io/nethost/internal/apis/config/v1alpha1"
	"nethost.io/nethost/internal/config"
)

func TestConfigzRedactsDatabaseURL(t *testing.T) {
	opts := config.NewOptions()
	opts.NetworkHost = "host-a"
	opts.DatabaseURL = "postgres://user:secret@db/nethost"

	c := restful.NewContainer()
	require.NoError(t, v1alpha1.NewHandler(opts).AddToContainer(c))

	req := httptest.NewRequest(http.MethodGet, "/apis/config.nethost.io/v1alpha1/configz", nil)
	rec := httptest.NewRecorder()
	c.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "host-a", body["networkHost"])
	require.Equal(t, "REDACTED", body["databaseUrl"])
}
