package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/telemetry"
)

// RequestLogger logs every request and counts it by route pattern and
// status code.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		telemetry.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, status, time.Since(start))
	})
}
