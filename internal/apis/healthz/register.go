package healthz

import (
	"net/http"
	"strings"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"

	"nethost.io/nethost/internal/apis"
	"nethost.io/nethost/internal/log"
)

func NewHandler(checks ...HealthChecker) apis.Handler {
	return &handler{checks: checks}
}

type handler struct {
	checks []HealthChecker
}

func (h *handler) AddToContainer(container *restful.Container) error {
	if len(h.checks) == 0 {
		log.Debugln("no health checks registered, installing the ping handler")
		h.checks = []HealthChecker{PingHealthz}
	}
	name := strings.Split(strings.TrimPrefix(DefaultHealthzPath, "/"), "/")[0]

	ws := new(restful.WebService)
	ws.Route(ws.GET(DefaultHealthzPath).
		To(handleHealth(name, h.checks...)).
		Doc("network-host health check").
		Param(ws.QueryParameter("verbose", "include per-check detail").DataType("string")).
		Operation("healthcheck").
		Metadata(restfulspec.KeyOpenAPITags, []string{apis.TagNonResourceAPI}).
		Returns(http.StatusOK, "ok", apis.StatusOK{}))

	container.Add(ws)
	return nil
}
