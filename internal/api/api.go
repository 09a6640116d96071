// Package api decides what every portal route answers.
//
// Handlers here are plain functions from a Request to a Response: they
// check authentication and the method, read or update the manager and
// build the JSON payload. Parsing and serving HTTP is left to the server
// package, which adapts these functions onto a router.
package api

import (
	"crypto/subtle"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/params"
	"github.com/muurk/wifiportal/internal/wifimanager"
)

// Core is the part of the manager the routes need.
type Core interface {
	ScanNetworks(force bool) []wifimanager.ScanResult
	ConnectToNetwork(ssid, password string) bool
	ResetSettings()
	ConnectionStatus() string
	LocalIP() string
	LastConnectResult() uint8
	Parameters() []params.Snapshot
	UpdateParameters(values map[string]string) int
	DeviceInfo() wifimanager.DeviceInfo
	AuthCredentials() wifimanager.AuthConfig
	HTMLEnabled() bool
}

// Request is the transport-independent view of an HTTP request.
type Request struct {
	Method string
	Path   string
	// Form holds the decoded body fields (and query for GET requests).
	Form url.Values

	// BasicAuth credentials, if the request carried any.
	Username string
	Password string
	HasAuth  bool
}

// Response is what a route decided. Body is encoded as JSON unless Raw is
// set, in which case Raw is written as-is with ContentType.
type Response struct {
	Status      int
	Body        any
	Raw         []byte
	ContentType string
	Header      map[string]string
}

// Route binds a path and method to a handler.
type Route struct {
	Path   string
	Method string
	handle func(Request) Response
}

// PageRenderer produces the HTML for the root route.
type PageRenderer func(status StatusBody) []byte

// Realm is sent in the authentication challenge.
const Realm = "wifiportal"

// Handler holds the route table.
type Handler struct {
	core   Core
	page   PageRenderer
	logger *zap.Logger
	routes []Route
}

// Option configures a Handler.
type Option func(*Handler)

// WithPageRenderer sets the HTML renderer used on the root route when the
// manager has HTML enabled.
func WithPageRenderer(r PageRenderer) Option {
	return func(h *Handler) { h.page = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// NewHandler builds the route table for core.
func NewHandler(core Core, opts ...Option) *Handler {
	h := &Handler{core: core}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logging.Named("api")
	}
	h.routes = []Route{
		{Path: "/", Method: http.MethodGet, handle: h.root},
		{Path: "/scan", Method: http.MethodGet, handle: h.scan},
		{Path: "/connect", Method: http.MethodPost, handle: h.connect},
		{Path: "/reset", Method: http.MethodGet, handle: h.reset},
		{Path: "/status_json", Method: http.MethodGet, handle: h.status},
		{Path: "/params_json", Method: http.MethodGet, handle: h.params},
		{Path: "/update_params", Method: http.MethodPost, handle: h.updateParams},
		{Path: "/device_info", Method: http.MethodGet, handle: h.deviceInfo},
	}
	return h
}

// Routes returns the route table in registration order.
func (h *Handler) Routes() []Route {
	return append([]Route(nil), h.routes...)
}

// Dispatch finds the route for req.Path and serves it.
func (h *Handler) Dispatch(req Request) Response {
	for _, rt := range h.routes {
		if rt.Path == req.Path {
			return h.Serve(rt, req)
		}
	}
	return NotFound()
}

// Serve runs one route: authentication, method check, then the handler.
func (h *Handler) Serve(rt Route, req Request) Response {
	if !h.authorized(req) {
		return Unauthorized()
	}
	if req.Method != rt.Method {
		return errorResponse(http.StatusMethodNotAllowed, "Method Not Allowed")
	}
	return rt.handle(req)
}

func (h *Handler) authorized(req Request) bool {
	auth := h.core.AuthCredentials()
	if !auth.Enabled {
		return true
	}
	if !req.HasAuth {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(auth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(auth.Password)) == 1
	return userOK && passOK
}

// NotFound is the answer for any unmatched route.
func NotFound() Response {
	return errorResponse(http.StatusNotFound, "Not found")
}

// Unauthorized is the Basic authentication challenge.
func Unauthorized() Response {
	r := errorResponse(http.StatusUnauthorized, "Authentication required")
	r.Header = map[string]string{"WWW-Authenticate": `Basic realm="` + Realm + `"`}
	return r
}
