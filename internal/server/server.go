package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/api"
	"github.com/muurk/wifiportal/internal/logging"
)

// Config holds the server configuration
type Config struct {
	Host string
	Port int // 0 picks a free port, see Addr

	// AssetsDir is served for paths no route matches. Empty disables
	// static serving.
	AssetsDir string

	// Metrics mounts the Prometheus handler on /metrics.
	Metrics bool

	ReadHeaderTimeout time.Duration
}

// DefaultConfig returns a configuration listening on port 80 of every
// interface.
func DefaultConfig() Config {
	return Config{
		Port:              80,
		Metrics:           true,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Core is what the server needs from the manager: the routes' view plus
// the HTTPS material.
type Core interface {
	api.Core
	TLSSettings() (enabled bool, certPEM, keyPEM []byte)
}

// Server is the HTTP layer of the portal. It can be started and stopped
// repeatedly; each Start builds a fresh http.Server.
type Server struct {
	config  Config
	core    Core
	routes  *api.Handler
	page    api.PageRenderer
	events  http.Handler
	assets  *Assets
	logger  *zap.Logger
	handler http.Handler

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithEvents mounts an event stream handler on /ws. If the handler has a
// CloseClients method it is called when the server shuts down.
func WithEvents(h http.Handler) Option {
	return func(s *Server) { s.events = h }
}

// WithPageRenderer renders the root page when HTML is enabled.
func WithPageRenderer(r api.PageRenderer) Option {
	return func(s *Server) { s.page = r }
}

// New creates a Server for core. The listener is not opened until Start.
func New(config Config, core Core, opts ...Option) *Server {
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = 10 * time.Second
	}
	s := &Server{
		config: config,
		core:   core,
		logger: logging.Named("http"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes = api.NewHandler(core, api.WithPageRenderer(s.page), api.WithLogger(s.logger))
	s.assets = MountAssets(config.AssetsDir, s.logger)
	s.handler = s.newRouter()
	return s
}

// Handler returns the router, for tests and for embedding under another
// server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Assets returns the static asset mount.
func (s *Server) Assets() *Assets {
	return s.assets
}

// Start opens the listener and serves in the background. Starting a
// running server is a no-op.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	scheme := "http"
	if enabled, certPEM, keyPEM := s.core.TLSSettings(); enabled {
		tlsConfig, err := NewTLSConfig(certPEM, keyPEM)
		if err != nil {
			_ = ln.Close()
			return err
		}
		ln = tls.NewListener(ln, tlsConfig)
		scheme = "https"
		s.logger.Debug("TLS configuration", zap.Any("tls_info", GetTLSInfo(tlsConfig)))
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}
	if c, ok := s.events.(interface{ CloseClients() }); ok {
		srv.RegisterOnShutdown(c.CloseClients)
	}
	s.srv = srv
	s.listener = ln

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()

	s.logger.Info("portal HTTP server listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("scheme", scheme),
		zap.Bool("static_assets", s.assets.Available()),
	)
	return nil
}

// Stop shuts the server down, waiting for in-flight requests until ctx
// expires. Stopping a stopped server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.listener = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	s.logger.Info("shutting down portal HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	return nil
}

// Addr returns the listening address, or "" when stopped.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Running reports whether the server is serving.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.srv != nil
}
