package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectAttempts counts station connection attempts by where the
	// credentials came from (stored, list, portal)
	ConnectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wifiportal",
			Name:      "connect_attempts_total",
			Help:      "Total number of station connection attempts",
		},
		[]string{"source"},
	)

	// ConnectResults counts finished attempts by final link status
	ConnectResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wifiportal",
			Name:      "connect_results_total",
			Help:      "Total number of finished connection attempts by result",
		},
		[]string{"result"},
	)

	// PortalSessions counts portal sessions by how they ended
	PortalSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wifiportal",
			Name:      "portal_sessions_total",
			Help:      "Total number of configuration portal sessions by outcome",
		},
		[]string{"outcome"},
	)

	// PortalActive is 1 while a portal session is open
	PortalActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wifiportal",
			Name:      "portal_active",
			Help:      "Whether a configuration portal session is currently open",
		},
	)

	// DNSQueries counts questions answered by the captive DNS responder
	DNSQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wifiportal",
			Name:      "dns_queries_total",
			Help:      "Total number of captive DNS questions answered",
		},
		[]string{"qtype"},
	)

	// ParamUpdates counts parameter values offered through the portal
	ParamUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wifiportal",
			Name:      "param_updates_total",
			Help:      "Total number of parameter values applied or rejected",
		},
		[]string{"result"},
	)

	// HTTPRequests counts portal HTTP requests by route and status code
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wifiportal",
			Name:      "http_requests_total",
			Help:      "Total number of portal HTTP requests",
		},
		[]string{"route", "code"},
	)

	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// Safe to call more than once.
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(ConnectAttempts)
		prometheus.DefaultRegisterer.Register(ConnectResults)
		prometheus.DefaultRegisterer.Register(PortalSessions)
		prometheus.DefaultRegisterer.Register(PortalActive)
		prometheus.DefaultRegisterer.Register(DNSQueries)
		prometheus.DefaultRegisterer.Register(ParamUpdates)
		prometheus.DefaultRegisterer.Register(HTTPRequests)
	})
}

// Handler serves the registered metrics.
func Handler() http.Handler {
	InitMetrics()
	return promhttp.Handler()
}
