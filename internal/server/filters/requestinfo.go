package filters

import (
	"net/http"

	"nethost.io/nethost/internal/apis"
	"nethost.io/nethost/internal/server/request"
)

// WithRequestInfo resolves req via resolver and stashes the result in its
// context before calling next, so downstream filters and handlers (the
// metrics filter in particular) can read it back with request.InfoFrom.
func WithRequestInfo(next http.Handler, resolver request.InfoResolver) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		info, err := resolver.NewRequestInfo(req)
		if err != nil {
			apis.InternalError(w, req, err)
			return
		}
		*req = *req.WithContext(request.WithRequestInfo(req.Context(), info))
		next.ServeHTTP(w, req)
	})
}
