package server

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/api"
	"github.com/muurk/wifiportal/internal/telemetry"
)

// maxFormMemory bounds multipart form parsing.
const maxFormMemory = 1 << 20

func (s *Server) newRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RecoverJSON(s.logger))
	r.Use(RequestLogger)

	// Routes accept every method; the api layer answers 405 itself so the
	// body stays JSON.
	for _, rt := range s.routes.Routes() {
		r.HandleFunc(rt.Path, func(w http.ResponseWriter, req *http.Request) {
			writeResponse(w, s.routes.Serve(rt, toRequest(req)))
		})
	}

	if s.events != nil {
		r.Get("/ws", s.events.ServeHTTP)
	}
	if s.config.Metrics {
		telemetry.InitMetrics()
		r.Handle("/metrics", telemetry.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		if s.assets.Serve(w, req) {
			return
		}
		writeResponse(w, api.NotFound())
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeResponse(w, api.Response{
			Status: http.StatusMethodNotAllowed,
			Body:   api.ErrorBody{Error: "Method Not Allowed"},
		})
	})
	return r
}

// toRequest decodes the form and credentials of r. Query parameters are
// included, as on the device.
func toRequest(r *http.Request) api.Request {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.EqualFold(ct, "multipart/form-data") {
		_ = r.ParseMultipartForm(maxFormMemory)
	} else {
		_ = r.ParseForm()
	}
	user, pass, ok := r.BasicAuth()
	return api.Request{
		Method:   r.Method,
		Path:     r.URL.Path,
		Form:     r.Form,
		Username: user,
		Password: pass,
		HasAuth:  ok,
	}
}

func writeResponse(w http.ResponseWriter, resp api.Response) {
	for k, v := range resp.Header {
		w.Header().Set(k, v)
	}
	if resp.Raw != nil {
		w.Header().Set("Content-Type", resp.ContentType)
		w.WriteHeader(resp.Status)
		_, _ = w.Write(resp.Raw)
		return
	}
	writeJSON(w, resp.Status, resp.Body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// RecoverJSON converts a panic in a handler into a 500 with a JSON body.
func RecoverJSON(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic recovered in HTTP handler",
						zap.Any("panic", rec),
						zap.String("path", r.URL.Path),
						zap.String("request_id", middleware.GetReqID(r.Context())),
					)
					writeJSON(w, http.StatusInternalServerError, api.ErrorBody{Error: "Internal server error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
