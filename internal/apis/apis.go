// Package apis is the ambient ops HTTP surface's shared runtime: the
// Handler contract every sub-package registers against a go-restful
// Container, GroupVersion routing, and the HandleXxx error-translation
// helpers engine/policy errors are funneled through.
package apis

import (
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/emicklei/go-restful/v3"
	"github.com/pkg/errors"

	"nethost.io/nethost/internal/log"
)

var sanitizer = strings.NewReplacer(`&`, "&amp;", `<`, "&lt;", `>`, "&gt;")

const APIRootPath = "/apis"

// TagNonResourceAPI groups the ops-surface operations (healthz, version,
// metrics) apart from the read-only network/fixed-ip introspection
// resources in the generated OpenAPI document.
const TagNonResourceAPI = "non-resource"

// StatusOK is the go-restful-openapi response-model placeholder for a
// plain-text "ok" body that doesn't warrant its own named type.
type StatusOK struct{}

// Handler is implemented by every ops-surface sub-package (healthz,
// version, networkinfo) to register its routes on the shared Container.
type Handler interface {
	AddToContainer(c *restful.Container) error
}

// GroupVersion identifies one API group/version pair under APIRootPath.
type GroupVersion struct {
	Group   string
	Version string
}

func (gv GroupVersion) String() string {
	if len(gv.Group) > 0 {
		return fmt.Sprintf("%s/%s", gv.Group, gv.Version)
	}
	return gv.Version
}

// NewWebService builds a restful.WebService rooted at APIRootPath/gv,
// producing JSON.
func NewWebService(gv GroupVersion) *restful.WebService {
	ws := new(restful.WebService)
	ws.Path(strings.TrimRight(APIRootPath+"/"+gv.String(), "/")).Produces(restful.MIME_JSON)
	return ws
}

func HandleInternalError(response *restful.Response, req *restful.Request, err error) {
	handle(http.StatusInternalServerError, response, req, err)
}

func HandleBadRequest(response *restful.Response, req *restful.Request, err error) {
	handle(http.StatusBadRequest, response, req, err)
}

func HandleNotFound(response *restful.Response, req *restful.Request, err error) {
	handle(http.StatusNotFound, response, req, err)
}

func HandleConflict(response *restful.Response, req *restful.Request, err error) {
	handle(http.StatusConflict, response, req, err)
}

// HandleRestError inspects err for a restful.ServiceError and replies with
// its status code, falling back to 500.
func HandleRestError(response *restful.Response, req *restful.Request, err error) {
	var svcErr restful.ServiceError
	statusCode := http.StatusInternalServerError
	if errors.As(err, &svcErr) {
		statusCode = svcErr.Code
	}
	handle(statusCode, response, req, err)
}

func handle(statusCode int, response *restful.Response, req *restful.Request, err error) {
	_, fn, line, _ := runtime.Caller(2)
	log.Errorf("%s:%d %v", fn, line, err)
	http.Error(response, sanitizer.Replace(err.Error()), statusCode)
}

// InternalError is the bare-http.Handler equivalent of HandleInternalError,
// used by the panic-recovery path before go-restful's Response wrapper is
// available.
func InternalError(w http.ResponseWriter, req *http.Request, err error) {
	http.Error(w, sanitizer.Replace(fmt.Sprintf("internal server error: %q: %v", req.RequestURI, err)), http.StatusInternalServerError)
	HandleError(err)
}

// ErrorHandlers is the non-resource error sink: functions invoked for an
// error that can't be returned to a caller.
var ErrorHandlers = []func(error){
	(&rudimentaryErrorBackoff{lastErrorTime: time.Now(), minPeriod: time.Millisecond}).OnError,
}

func HandleError(err error) {
	if err == nil {
		return
	}
	for _, fn := range ErrorHandlers {
		fn(err)
	}
}

type rudimentaryErrorBackoff struct {
	minPeriod         time.Duration
	lastErrorTimeLock sync.Mutex
	lastErrorTime     time.Time
}

func (r *rudimentaryErrorBackoff) OnError(error) {
	now := time.Now()
	r.lastErrorTimeLock.Lock()
	d := now.Sub(r.lastErrorTime)
	r.lastErrorTime = time.Now()
	r.lastErrorTimeLock.Unlock()
	time.Sleep(r.minPeriod - d)
}
