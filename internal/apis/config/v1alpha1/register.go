// Package v1alpha1 exposes the effective configz endpoint operators use
// to confirm what a running network-host process actually resolved its
// flags/config-file/env values to, redacting the one field (the database
// DSN) that can carry embedded credentials.
package v1alpha1

import (
	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"

	"nethost.io/nethost/internal/apis"
	"nethost.io/nethost/internal/config"
)

const GroupName = "config.nethost.io"

var GroupVersion = apis.GroupVersion{
	Group:   GroupName,
	Version: "v1alpha1",
}

func NewHandler(opts *config.Options) apis.Handler {
	return &handler{opts: opts}
}

type handler struct {
	opts *config.Options
}

// redacted is what configz actually serializes: a copy of Options with
// DatabaseURL blanked out.
type redacted struct {
	config.Options
	DatabaseURL string `json:"databaseUrl,omitempty"`
}

func (h *handler) AddToContainer(container *restful.Container) error {
	ws := apis.NewWebService(GroupVersion)

	ws.Route(ws.GET("/configz").
		Doc("the effective network-host configuration").
		Operation("configz").
		Metadata(restfulspec.KeyOpenAPITags, []string{apis.TagNonResourceAPI}).
		To(func(_ *restful.Request, response *restful.Response) {
			view := redacted{Options: *h.opts}
			if view.Options.DatabaseURL != "" {
				view.DatabaseURL = "REDACTED"
			}
			view.Options.DatabaseURL = ""
			_ = response.WriteAsJson(view)
		}))

	container.Add(ws)
	return nil
}
