package healthz

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/emicklei/go-restful/v3"

	"nethost.io/nethost/internal/log"
)

const DefaultHealthzPath = "/healthz"

// HealthChecker is a named healthz check, e.g. "store reachable" or
// "bus accepting work".
type HealthChecker interface {
	Name() string
	Check(req *restful.Request) error
}

// PingHealthz always reports healthy; used when no checks are registered.
var PingHealthz HealthChecker = ping{}

type ping struct{}

func (p ping) Name() string            { return "ping" }
func (p ping) Check(_ *restful.Request) error { return nil }

// handleHealth returns a restful.RouteFunction that serves the given checks.
func handleHealth(name string, checks ...HealthChecker) restful.RouteFunction {
	return func(req *restful.Request, response *restful.Response) {
		var verboseOut bytes.Buffer
		var failedChecks []string
		for _, check := range checks {
			if err := check.Check(req); err != nil {
				_, _ = fmt.Fprintf(&verboseOut, "[-]%s failed: reason withheld\n", check.Name())
				failedChecks = append(failedChecks, check.Name())
			} else {
				_, _ = fmt.Fprintf(&verboseOut, "[+]%s ok\n", check.Name())
			}
		}

		if len(failedChecks) > 0 {
			log.Warnf("%s check failed: %s", name, strings.Join(failedChecks, ","))
			http.Error(response, fmt.Sprintf("%s%s check failed", verboseOut.String(), name), http.StatusInternalServerError)
			return
		}

		response.Header().Set("Content-Type", "text/plain; charset=utf-8")
		response.Header().Set("X-Content-Type-Options", "nosniff")

		if _, found := req.Request.URL.Query()["verbose"]; !found {
			_, _ = fmt.Fprint(response, "ok")
			return
		}
		_, _ = verboseOut.WriteTo(response)
		_, _ = fmt.Fprintf(response, "%s check passed\n", name)
	}
}
