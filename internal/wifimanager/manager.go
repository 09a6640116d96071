package wifimanager

import (
	"context"
	"errors"
	"net"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/params"
	"github.com/muurk/wifiportal/internal/radio"
	"github.com/muurk/wifiportal/internal/telemetry"
)

var (
	// ErrPortalActive is returned when a portal is opened while another
	// session is running.
	ErrPortalActive = errors.New("configuration portal already active")

	// ErrConnectInProgress is logged when a connection attempt is refused
	// because another one holds the radio.
	ErrConnectInProgress = errors.New("connection attempt already in progress")
)

// DNSResponder answers every DNS question with the portal address.
type DNSResponder interface {
	Start(answer net.IP) error
	Stop() error
}

// HTTPListener is the HTTP layer serving the portal routes.
type HTTPListener interface {
	Start() error
	Stop(ctx context.Context) error
}

// Advertiser announces the portal over mDNS.
type Advertiser interface {
	Advertise(hostname string, port int) error
	Shutdown()
}

// EventSink receives lifecycle events for streaming to observers.
type EventSink interface {
	Publish(eventType string, payload any)
}

// Event types published to the EventSink.
const (
	EventPortalEntered = "portal_entered"
	EventConfigSaved   = "config_saved"
	EventPortalTimeout = "portal_timeout"
	EventConnectResult = "connect_result"
	EventParamsUpdated = "params_updated"
)

// ConnectionState is the supervisor's view of the station link.
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Manager owns the radio and coordinates connection attempts, the
// configuration portal and the parameter registry.
//
// Mutations of the radio are serialized: at most one connection attempt
// and at most one portal session exist at a time. The lock is never held
// across a wait or a call into a collaborator.
type Manager struct {
	cfg    Config
	radio  radio.Driver
	clock  Clock
	logger *zap.Logger
	params *params.Registry

	dns    DNSResponder
	http   HTTPListener
	mdns   Advertiser
	events EventSink

	mu            sync.Mutex
	hooks         Hooks
	state         ConnectionState
	lastResult    radio.Status
	portal        PortalState
	session       *portalSession
	lastOutcome   PortalState
	httpRunning   bool
	portalOwnsWeb bool
	advertising   bool
	scanCache     []ScanResult
	reconnect     *pendingReconnect
	lastReconnect time.Time
	started       time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the logger. Defaults to the package-global logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithRegistry shares an existing parameter registry.
func WithRegistry(r *params.Registry) Option {
	return func(m *Manager) { m.params = r }
}

// WithDNS sets the captive DNS responder started with the portal.
func WithDNS(d DNSResponder) Option {
	return func(m *Manager) { m.dns = d }
}

// WithHTTP sets the HTTP layer.
func WithHTTP(h HTTPListener) Option {
	return func(m *Manager) { m.http = h }
}

// WithAdvertiser sets the mDNS advertiser.
func WithAdvertiser(a Advertiser) Option {
	return func(m *Manager) { m.mdns = a }
}

// WithEvents sets the sink for lifecycle events.
func WithEvents(e EventSink) Option {
	return func(m *Manager) { m.events = e }
}

// WithHooks installs all hooks at once.
func WithHooks(h Hooks) Option {
	return func(m *Manager) { m.hooks = h }
}

// New creates a manager driving r.
func New(cfg Config, r radio.Driver, opts ...Option) *Manager {
	m := &Manager{
		cfg:        cfg.withDefaults(),
		radio:      r,
		clock:      realClock{},
		state:      StateIdle,
		lastResult: radio.StatusIdle,
		portal:     PortalStopped,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logging.Named("wifimanager")
	}
	if m.params == nil {
		m.params = params.NewRegistry()
	}
	m.started = m.clock.Now()
	telemetry.InitMetrics()
	return m
}

// AttachHTTP sets the HTTP layer after construction. The HTTP layer
// usually needs the manager to build its routes, so it cannot always be
// passed to New.
func (m *Manager) AttachHTTP(h HTTPListener) {
	m.mu.Lock()
	m.http = h
	m.mu.Unlock()
}

// Begin applies static addressing and, when ServeOutsidePortal is set,
// starts the HTTP layer and mDNS advertising.
func (m *Manager) Begin() error {
	cfg := m.Config()
	if cfg.STAStatic != nil {
		if err := m.radio.STAConfig(radio.IPConfig(*cfg.STAStatic)); err != nil {
			m.logger.Warn("failed to apply static station address", zap.Error(err))
		}
	}
	if !cfg.ServeOutsidePortal {
		return nil
	}
	if err := m.startHTTP(false); err != nil {
		return err
	}
	m.startAdvertising()
	return nil
}

// Close stops every listener the manager started.
func (m *Manager) Close(ctx context.Context) error {
	m.StopConfigPortal()

	m.mu.Lock()
	running := m.httpRunning
	m.httpRunning = false
	m.portalOwnsWeb = false
	h := m.http
	m.mu.Unlock()

	m.stopAdvertising()
	if running && h != nil {
		return h.Stop(ctx)
	}
	return nil
}

// Loop performs one non-blocking maintenance pass: the portal timeout
// check and, with AutoReconnect, rejoining the stored network.
func (m *Manager) Loop() {
	m.Tick()

	m.mu.Lock()
	cfg := m.cfg
	idle := m.portal == PortalStopped && m.state != StateConnecting
	due := m.clock.Now().Sub(m.lastReconnect) >= cfg.ReconnectInterval
	m.mu.Unlock()

	if !cfg.AutoReconnect || !idle || !due {
		return
	}
	if m.radio.Status() == radio.StatusConnected {
		return
	}
	ssid := m.radio.StoredSSID()
	if ssid == "" {
		return
	}

	m.logger.Info("link down, reconnecting to stored network", zap.String("ssid", ssid))
	m.startReconnect(ssid)
}

// Config returns a copy of the current configuration.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.cfg
	c.Credentials = append([]Credential(nil), m.cfg.Credentials...)
	return c
}

// SetConnectTimeout sets the bound on a single connection attempt.
func (m *Manager) SetConnectTimeout(d time.Duration) {
	m.mu.Lock()
	if d > 0 {
		m.cfg.ConnectTimeout = d
	}
	m.mu.Unlock()
}

// SetConfigPortalTimeout sets how long an idle portal stays open. Zero
// disables the timeout. It applies to sessions opened afterwards.
func (m *Manager) SetConfigPortalTimeout(d time.Duration) {
	m.mu.Lock()
	if d >= 0 {
		m.cfg.ConfigPortalTimeout = d
	}
	m.mu.Unlock()
}

// SetAutoReconnect toggles reconnect supervision in Loop.
func (m *Manager) SetAutoReconnect(on bool) {
	m.mu.Lock()
	m.cfg.AutoReconnect = on
	m.mu.Unlock()
}

// SetHTTPPort sets the port reported to the mDNS advertiser. The HTTP
// layer reads its own listen address.
func (m *Manager) SetHTTPPort(port int) {
	m.mu.Lock()
	if port > 0 {
		m.cfg.HTTPPort = port
	}
	m.mu.Unlock()
}

// SetAPStaticIPConfig addresses the soft AP and the captive DNS answer.
func (m *Manager) SetAPStaticIPConfig(ip, gateway net.IP, netmask net.IPMask) error {
	if err := m.radio.SoftAPConfig(radio.IPConfig{IP: ip, Gateway: gateway, Netmask: netmask}); err != nil {
		return err
	}
	m.mu.Lock()
	m.cfg.APIP, m.cfg.APGateway, m.cfg.APNetmask = ip, gateway, netmask
	m.mu.Unlock()
	return nil
}

// SetSTAStaticIPConfig fixes the station address used after connecting.
func (m *Manager) SetSTAStaticIPConfig(ip, gateway net.IP, netmask net.IPMask, dns net.IP) error {
	static := StaticIP{IP: ip, Gateway: gateway, Netmask: netmask, DNS: dns}
	if err := m.radio.STAConfig(radio.IPConfig(static)); err != nil {
		return err
	}
	m.mu.Lock()
	m.cfg.STAStatic = &static
	m.mu.Unlock()
	return nil
}

// SetMDNSHostname sets the name advertised while the HTTP layer runs.
func (m *Manager) SetMDNSHostname(name string) {
	m.mu.Lock()
	m.cfg.MDNSHostname = name
	m.mu.Unlock()
}

// SetUseHTTPS toggles TLS on the HTTP layer. It takes effect the next
// time the listener starts.
func (m *Manager) SetUseHTTPS(on bool) {
	m.mu.Lock()
	m.cfg.UseHTTPS = on
	m.mu.Unlock()
}

// SetSSLCredentials sets the PEM certificate and key for HTTPS.
func (m *Manager) SetSSLCredentials(certPEM, keyPEM []byte) {
	m.mu.Lock()
	m.cfg.CertPEM = append([]byte(nil), certPEM...)
	m.cfg.KeyPEM = append([]byte(nil), keyPEM...)
	m.mu.Unlock()
}

// TLSSettings reports whether HTTPS is on and the PEM material to use.
func (m *Manager) TLSSettings() (enabled bool, certPEM, keyPEM []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.UseHTTPS, m.cfg.CertPEM, m.cfg.KeyPEM
}

// SetAuthentication protects the portal routes with HTTP Basic auth.
func (m *Manager) SetAuthentication(enabled bool, username, password string) {
	m.mu.Lock()
	m.cfg.Auth = AuthConfig{Enabled: enabled, Username: username, Password: password}
	m.mu.Unlock()
}

// AuthCredentials returns the Basic auth settings for the HTTP layer.
func (m *Manager) AuthCredentials() AuthConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Auth
}

// HTMLEnabled reports whether the root route should render a page.
func (m *Manager) HTMLEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.HTMLEnabled
}

// AddWiFiCredential appends a network to try after the stored one.
func (m *Manager) AddWiFiCredential(ssid, password string) bool {
	if ssid == "" {
		return false
	}
	m.mu.Lock()
	m.cfg.Credentials = append(m.cfg.Credentials, Credential{SSID: ssid, Password: password})
	m.mu.Unlock()
	return true
}

// AddParameter registers a portal parameter.
func (m *Manager) AddParameter(p *params.Parameter) bool {
	return m.params.Add(p)
}

// Parameters returns snapshots of all parameters in registration order.
func (m *Manager) Parameters() []params.Snapshot {
	return m.params.Snapshots()
}

// Registry exposes the parameter registry.
func (m *Manager) Registry() *params.Registry {
	return m.params
}

// UpdateParameters offers values to the registry and returns how many
// parameters accepted theirs. Rejections are logged, not returned.
func (m *Manager) UpdateParameters(values map[string]string) int {
	res := m.params.Update(values)
	for _, id := range res.Rejected {
		m.logger.Warn("parameter value rejected", zap.String("id", id))
	}
	telemetry.ParamUpdates.WithLabelValues("applied").Add(float64(len(res.Applied)))
	telemetry.ParamUpdates.WithLabelValues("rejected").Add(float64(len(res.Rejected)))

	if len(res.Applied) > 0 {
		m.logger.Info("parameters updated", zap.Strings("ids", res.Applied))
		m.publish(EventParamsUpdated, map[string]any{
			"applied":  res.Applied,
			"rejected": res.Rejected,
		})
	}
	return len(res.Applied)
}

// DeviceInfo is the device_info route payload.
type DeviceInfo struct {
	FreeHeap uint64 `json:"free_heap"`
	UptimeMs int64  `json:"uptime_ms"`
	RSSI     int32  `json:"rssi"`
	IP       string `json:"ip"`
}

// DeviceInfo reports process memory, uptime and the station link.
func (m *Manager) DeviceInfo() DeviceInfo {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return DeviceInfo{
		FreeHeap: ms.HeapIdle - ms.HeapReleased,
		UptimeMs: m.clock.Now().Sub(m.started).Milliseconds(),
		RSSI:     m.radio.RSSI(),
		IP:       m.LocalIP(),
	}
}

// LocalIP returns the station address, or "0.0.0.0" without one.
func (m *Manager) LocalIP() string {
	ip := m.radio.LocalIP()
	if ip == nil {
		return "0.0.0.0"
	}
	return ip.String()
}

func (m *Manager) publish(eventType string, payload any) {
	m.mu.Lock()
	sink := m.events
	m.mu.Unlock()
	if sink != nil {
		sink.Publish(eventType, payload)
	}
}

// startHTTP starts the HTTP layer unless it is already running. With
// forPortal set, the portal takes ownership and stops it on close.
func (m *Manager) startHTTP(forPortal bool) error {
	m.mu.Lock()
	h := m.http
	if h == nil || m.httpRunning {
		m.mu.Unlock()
		return nil
	}
	m.httpRunning = true
	m.portalOwnsWeb = forPortal
	m.mu.Unlock()

	if err := h.Start(); err != nil {
		m.mu.Lock()
		m.httpRunning = false
		m.portalOwnsWeb = false
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Manager) startAdvertising() {
	m.mu.Lock()
	a := m.mdns
	host := m.cfg.MDNSHostname
	port := m.cfg.HTTPPort
	if a == nil || host == "" || m.advertising {
		m.mu.Unlock()
		return
	}
	m.advertising = true
	m.mu.Unlock()

	if err := a.Advertise(host, port); err != nil {
		m.logger.Warn("mDNS advertisement failed", zap.String("hostname", host), zap.Error(err))
		m.mu.Lock()
		m.advertising = false
		m.mu.Unlock()
	}
}

func (m *Manager) stopAdvertising() {
	m.mu.Lock()
	a := m.mdns
	was := m.advertising
	m.advertising = false
	m.mu.Unlock()
	if was && a != nil {
		a.Shutdown()
	}
}
