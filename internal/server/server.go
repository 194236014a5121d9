// Package server stands up the ambient ops HTTP surface every
// network-host process exposes regardless of which policy variant it
// runs: health, metrics, version and the read-only network/fixed-ip
// introspection routes. The tenant-facing network CRUD API is an
// external collaborator and never touches this package.
package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime"

	"github.com/emicklei/go-restful/v3"

	"nethost.io/nethost/internal/apis"
	configapi "nethost.io/nethost/internal/apis/config/v1alpha1"
	healthzapi "nethost.io/nethost/internal/apis/healthz"
	"nethost.io/nethost/internal/apis/networkinfo"
	versionapi "nethost.io/nethost/internal/apis/version"
	"nethost.io/nethost/internal/config"
	"nethost.io/nethost/internal/log"
	urlruntime "nethost.io/nethost/internal/runtime"
	"nethost.io/nethost/internal/server/filters"
	"nethost.io/nethost/internal/server/metrics"
	"nethost.io/nethost/internal/server/request"
	"nethost.io/nethost/internal/store"
	nethostversion "nethost.io/nethost/internal/version"
)

// APIServer is the ops HTTP surface for one network-host process.
type APIServer struct {
	Server *http.Server

	Options *config.Options
	Store   store.Store

	container   *restful.Container
	VersionInfo *nethostversion.Info
}

func NewAPIServer(o *config.Options, st store.Store) *APIServer {
	return &APIServer{
		Server:      &http.Server{Addr: fmt.Sprintf("%s:%d", o.BindAddress, o.InsecurePort)},
		Options:     o,
		Store:       st,
		VersionInfo: nethostversion.Get(),
	}
}

// PreRun wires every ops handler into a fresh restful.Container and
// installs the resulting handler chain onto Server. Must be called once
// before Run.
func (s *APIServer) PreRun() error {
	s.container = restful.NewContainer()
	s.container.Router(restful.CurlyRouter{})
	s.container.RecoverHandler(logStackOnRecover)

	s.installAPIs()
	metrics.Install(s.container)

	for _, ws := range s.container.RegisteredWebServices() {
		log.Debugf("registered web service at %s", ws.RootPath())
	}

	s.Server.Handler = s.buildHandlerChain(s.container)
	return nil
}

// Run blocks serving the ops surface until ctx is cancelled, then shuts
// the HTTP server down gracefully.
func (s *APIServer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		log.Infoln("ops server shutting down")
		if err := s.Server.Shutdown(context.Background()); err != nil {
			log.Errorf("ops server shutdown: %v", err)
		}
	}()

	log.Infof("ops server listening on %s", s.Server.Addr)
	err := s.Server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func logStackOnRecover(panicReason interface{}, w http.ResponseWriter) {
	var buf []byte
	buf = append(buf, fmt.Sprintf("recovered from panic: %v\n", panicReason)...)
	for i := 2; ; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		buf = append(buf, fmt.Sprintf("    %s:%d\n", file, line)...)
	}
	log.Errorln(string(buf))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (s *APIServer) buildHandlerChain(handler http.Handler) http.Handler {
	resolver := request.NewInfoFactory()
	handler = filters.WithMetrics(handler)
	handler = filters.WithRequestInfo(handler, resolver)
	return handler
}

func (s *APIServer) installAPIs() {
	handlers := []apis.Handler{
		versionapi.NewHandler(),
		healthzapi.NewHandler(),
		configapi.NewHandler(s.Options),
		networkinfo.NewHandler(s.Store),
	}
	for _, h := range handlers {
		urlruntime.Must(h.AddToContainer(s.container))
	}
}
