package filters

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"nethost.io/nethost/internal/server/request"
	"nethost.io/nethost/internal/server/responsewriter"
)

var requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "nethost",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "HTTP requests served by the ops container, partitioned by verb, group, version, resource and status code.",
}, []string{"verb", "group", "version", "resource", "code"})

func init() {
	prometheus.MustRegister(requestTotal)
}

// WithMetrics counts every request the ops container serves, labeled by
// the request-info filter's output and the status code the handler
// actually wrote.
func WithMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		mw := responsewriter.NewMetaResponseWriter(w)
		next.ServeHTTP(responsewriter.WrapForHTTP1Or2(mw), req)

		info, ok := request.InfoFrom(req.Context())
		if !ok {
			return
		}
		requestTotal.WithLabelValues(info.Verb, info.APIGroup, info.APIVersion, info.Resource, strconv.Itoa(mw.StatusCode)).Inc()
	})
}
