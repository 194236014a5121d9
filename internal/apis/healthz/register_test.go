package healthz_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/emicklei/go-restful/v3"
	"github.com/stretchr/testify/require"

	"nethost.io/nethost/internal/apis/healthz"
)

type fakeCheck struct {
	name string
	err  error
}

func (f fakeCheck) Name() string                      { return f.name }
func (f fakeCheck) Check(_ *restful.Request) error { return f.err }

func TestHealthzDefaultsToPingWhenNoChecksGiven(t *testing.T) {
	c := restful.NewContainer()
	require.NoError(t, healthz.NewHandler().AddToContainer(c))

	req := httptest.NewRequest(http.MethodGet, healthz.DefaultHealthzPath, nil)
	rec := httptest.NewRecorder()
	c.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestHealthzFailsWhenACheckFails(t *testing.T) {
	c := restful.NewContainer()
	require.NoError(t, healthz.NewHandler(fakeCheck{name: "store", err: errors.New("unreachable")}).AddToContainer(c))

	req := httptest.NewRequest(http.MethodGet, healthz.DefaultHealthzPath, nil)
	rec := httptest.NewRecorder()
	c.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
