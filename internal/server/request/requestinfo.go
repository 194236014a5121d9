// Package request resolves an incoming HTTP request's API group, version,
// resource, name and verb from its URL, for the metrics filter to label
// by. network-host has no cluster/workspace/
// namespace routing concept — every resource here lives directly under
// /apis/{group}/{version} or is a bare non-resource path like /healthz
// or /metrics.
package request

import (
	"context"
	"net/http"
	"strings"
)

// Info describes one resolved request.
type Info struct {
	IsResourceRequest bool
	Path              string
	Verb              string
	APIGroup          string
	APIVersion        string
	Resource          string
	Name              string
	Subresource       string
}

// InfoResolver turns an *http.Request into an Info.
type InfoResolver interface {
	NewRequestInfo(req *http.Request) (*Info, error)
}

// InfoFactory is the default InfoResolver: it expects resource paths of
// the form /apis/{group}/{version}/{resource}[/{name}[/{subresource}]]
// and treats anything else (healthz, metrics, version) as a non-resource
// request.
type InfoFactory struct {
	APIPrefix string
}

func NewInfoFactory() *InfoFactory {
	return &InfoFactory{APIPrefix: "apis"}
}

func verbFor(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		return "get"
	case http.MethodPost:
		return "create"
	case http.MethodPut:
		return "update"
	case http.MethodPatch:
		return "patch"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}

func (f *InfoFactory) NewRequestInfo(req *http.Request) (*Info, error) {
	info := &Info{
		Path: req.URL.Path,
		Verb: verbFor(req.Method),
	}

	parts := splitPath(req.URL.Path)
	if len(parts) < 3 || parts[0] != f.APIPrefix {
		return info, nil
	}

	info.IsResourceRequest = true
	info.APIGroup = parts[1]
	info.APIVersion = parts[2]
	if len(parts) > 3 {
		info.Resource = parts[3]
	}
	if len(parts) > 4 {
		info.Name = parts[4]
	}
	if len(parts) > 5 {
		info.Subresource = parts[5]
	}
	return info, nil
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

type key int

const infoKey key = iota

// WithRequestInfo returns a copy of ctx carrying info.
func WithRequestInfo(ctx context.Context, info *Info) context.Context {
	return context.WithValue(ctx, infoKey, info)
}

// InfoFrom extracts the Info a WithRequestInfo call stashed in ctx.
func InfoFrom(ctx context.Context) (*Info, bool) {
	info, ok := ctx.Value(infoKey).(*Info)
	return info, ok
}
