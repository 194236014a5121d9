package version

import (
	"net/http"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"

	"nethost.io/nethost/internal/apis"
	"nethost.io/nethost/internal/version"
)

var GroupVersion = apis.GroupVersion{
	Group:   "version.nethost.io",
	Version: "",
}

func NewHandler() apis.Handler {
	return &handler{}
}

type handler struct{}

func (h *handler) AddToContainer(container *restful.Container) error {
	ws := apis.NewWebService(GroupVersion)

	versionFunc := func(_ *restful.Request, response *restful.Response) {
		_ = response.WriteAsJson(version.Get())
	}

	ws.Route(ws.GET("/version").
		To(versionFunc).
		Doc("network-host build version").
		Operation("version").
		Metadata(restfulspec.KeyOpenAPITags, []string{apis.TagNonResourceAPI}).
		Returns(http.StatusOK, "ok", version.Info{}))

	container.Add(ws)
	return nil
}
