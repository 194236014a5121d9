// Package networkinfo exposes the allocation state nova-network's own
// operators would otherwise only see via direct database access: a
// read-only view of networks and their fixed-ip pools, for dashboards and
// on-call debugging. There is no tenant-facing create/update/delete
// surface here (that remains out of scope per the spec's non-goals) —
// every route in this package is a GET.
package networkinfo

import (
	"net/http"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/gofrs/uuid"

	"nethost.io/nethost/internal/apis"
	"nethost.io/nethost/internal/model"
	"nethost.io/nethost/internal/store"
)

var GroupVersion = apis.GroupVersion{
	Group:   "network.nethost.io",
	Version: "v1alpha1",
}

func NewHandler(st store.Store) apis.Handler {
	return &handler{store: st}
}

type handler struct {
	store store.Store
}

// fixedIPView reshapes model.FixedIP for JSON consumers that have no
// business seeing the internal row id.
type fixedIPView struct {
	Address            string     `json:"address"`
	InstanceID         *uuid.UUID `json:"instance_id"`
	VirtualInterfaceID *uuid.UUID `json:"virtual_interface_id"`
	Allocated          bool       `json:"allocated"`
	Leased             bool       `json:"leased"`
	Reserved           bool       `json:"reserved"`
}

func toFixedIPView(f *model.FixedIP) fixedIPView {
	return fixedIPView{
		Address:            f.Address,
		InstanceID:         f.InstanceID,
		VirtualInterfaceID: f.VirtualInterfaceID,
		Allocated:          f.Allocated,
		Leased:             f.Leased,
		Reserved:           f.Reserved,
	}
}

func (h *handler) AddToContainer(container *restful.Container) error {
	ws := apis.NewWebService(GroupVersion)
	tags := []string{"network"}

	ws.Route(ws.GET("/networks").
		To(h.listNetworks).
		Doc("list every network known to the allocation engine").
		Operation("listNetworks").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "ok", []model.Network{}))

	ws.Route(ws.GET("/networks/{id}").
		To(h.getNetwork).
		Doc("get a single network by id").
		Param(ws.PathParameter("id", "network uuid")).
		Operation("getNetwork").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "ok", model.Network{}).
		Returns(http.StatusNotFound, "not found", nil))

	ws.Route(ws.GET("/networks/{id}/fixed-ips").
		To(h.listFixedIPs).
		Doc("list every fixed ip (allocated or free) of a network").
		Param(ws.PathParameter("id", "network uuid")).
		Operation("listFixedIPs").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "ok", []fixedIPView{}))

	ws.Route(ws.GET("/fixed-ips/{address}").
		To(h.getFixedIP).
		Doc("resolve a fixed ip address to its owning instance, the reverse of instance-to-ip lookup").
		Param(ws.PathParameter("address", "dotted-quad or ipv6 address")).
		Operation("getFixedIP").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "ok", fixedIPView{}).
		Returns(http.StatusNotFound, "not found", nil))

	container.Add(ws)
	return nil
}

func (h *handler) listNetworks(req *restful.Request, resp *restful.Response) {
	networks, err := h.store.NetworkGetAll(req.Request.Context())
	if err != nil {
		apis.HandleInternalError(resp, req, err)
		return
	}
	_ = resp.WriteAsJson(networks)
}

func (h *handler) getNetwork(req *restful.Request, resp *restful.Response) {
	id, err := uuid.FromString(req.PathParameter("id"))
	if err != nil {
		apis.HandleBadRequest(resp, req, err)
		return
	}
	network, err := h.store.NetworkGet(req.Request.Context(), id)
	if err != nil {
		apis.HandleNotFound(resp, req, err)
		return
	}
	_ = resp.WriteAsJson(network)
}

func (h *handler) getFixedIP(req *restful.Request, resp *restful.Response) {
	address := req.PathParameter("address")
	fip, err := h.store.FixedIPGetByAddress(req.Request.Context(), address)
	if err != nil {
		apis.HandleNotFound(resp, req, err)
		return
	}
	_ = resp.WriteAsJson(toFixedIPView(fip))
}

func (h *handler) listFixedIPs(req *restful.Request, resp *restful.Response) {
	id, err := uuid.FromString(req.PathParameter("id"))
	if err != nil {
		apis.HandleBadRequest(resp, req, err)
		return
	}
	fips, err := h.store.FixedIPGetAllByNetwork(req.Request.Context(), id)
	if err != nil {
		apis.HandleInternalError(resp, req, err)
		return
	}
	views := make([]fixedIPView, 0, len(fips))
	for _, f := range fips {
		views = append(views, toFixedIPView(f))
	}
	_ = resp.WriteAsJson(views)
}
