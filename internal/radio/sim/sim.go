// Package sim is an in-memory radio.Driver.
//
// Networks are declared up front with AddNetwork. A Begin against a known
// network with the right password reaches StatusConnected once the
// configured latency has passed on the radio's clock; a wrong password ends
// in StatusConnectFailed and an unknown SSID in StatusNoSSIDAvail.
package sim

import (
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/muurk/wifiportal/internal/radio"
)

// DefaultAPIP is the soft AP address used until SoftAPConfig changes it.
var DefaultAPIP = net.IPv4(192, 168, 4, 1)

// AccessPoint is a simulated network within range.
type AccessPoint struct {
	SSID       string
	Password   string
	RSSI       int32
	Encryption uint8
}

type pending struct {
	ssid    string
	pass    string
	readyAt time.Time
}

// Radio simulates a WiFi radio. The zero value is not usable; call New.
type Radio struct {
	mu sync.Mutex

	now     func() time.Time
	latency time.Duration

	networks map[string]AccessPoint
	mode     radio.Mode
	status   radio.Status

	storedSSID string
	storedPass string
	attempt    *pending
	connected  string

	apSSID string
	apPass string
	apUp   bool
	apIP   net.IP
	staIP  net.IP
	static *radio.IPConfig

	scans    int
	lastScan []radio.Network
	failScan error
}

// Option configures a simulated radio.
type Option func(*Radio)

// WithClock sets the time source used to resolve connection attempts.
func WithClock(now func() time.Time) Option {
	return func(r *Radio) { r.now = now }
}

// WithLatency sets how long a connection attempt takes to resolve.
func WithLatency(d time.Duration) Option {
	return func(r *Radio) { r.latency = d }
}

// WithStoredCredentials pre-loads the stored network, as if a previous
// session had saved it.
func WithStoredCredentials(ssid, password string) Option {
	return func(r *Radio) {
		r.storedSSID = ssid
		r.storedPass = password
	}
}

// New returns a radio in ModeOff with no networks in range.
func New(opts ...Option) *Radio {
	r := &Radio{
		now:      time.Now,
		latency:  time.Second,
		networks: make(map[string]AccessPoint),
		status:   radio.StatusIdle,
		apIP:     DefaultAPIP,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddNetwork puts a network in range. An empty password makes it open.
func (r *Radio) AddNetwork(ssid, password string, rssi int32) {
	enc := radio.EncryptionWPA2
	if password == "" {
		enc = radio.EncryptionOpen
	}
	r.mu.Lock()
	r.networks[ssid] = AccessPoint{SSID: ssid, Password: password, RSSI: rssi, Encryption: enc}
	r.mu.Unlock()
}

// RemoveNetwork takes a network out of range. A station connected to it
// loses its link.
func (r *Radio) RemoveNetwork(ssid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.networks, ssid)
	if r.connected == ssid {
		r.connected = ""
		r.staIP = nil
		r.status = radio.StatusConnectionLost
	}
}

// FailScans makes every following Scan return err. Pass nil to clear.
func (r *Radio) FailScans(err error) {
	r.mu.Lock()
	r.failScan = err
	r.mu.Unlock()
}

func (r *Radio) SetMode(m radio.Mode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mode == m {
		return nil
	}
	r.mode = m
	if !m.HasAP() {
		r.apUp = false
	}
	if !m.HasSTA() {
		r.attempt = nil
		r.connected = ""
		r.staIP = nil
		r.status = radio.StatusIdle
	}
	return nil
}

func (r *Radio) Mode() radio.Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

func (r *Radio) Begin(ssid, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.mode.HasSTA() {
		return fmt.Errorf("begin %q: station interface is down (mode %v)", ssid, r.mode)
	}
	r.storedSSID = ssid
	r.storedPass = password
	r.startAttempt(ssid, password)
	return nil
}

func (r *Radio) Reconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.mode.HasSTA() {
		return fmt.Errorf("reconnect: station interface is down (mode %v)", r.mode)
	}
	if r.storedSSID == "" {
		return fmt.Errorf("reconnect: no stored network")
	}
	r.startAttempt(r.storedSSID, r.storedPass)
	return nil
}

func (r *Radio) startAttempt(ssid, password string) {
	r.connected = ""
	r.staIP = nil
	r.status = radio.StatusDisconnected
	r.attempt = &pending{ssid: ssid, pass: password, readyAt: r.now().Add(r.latency)}
}

// resolve settles a pending attempt whose latency has elapsed. Callers hold mu.
func (r *Radio) resolve() {
	if r.attempt == nil || r.now().Before(r.attempt.readyAt) {
		return
	}
	a := r.attempt
	r.attempt = nil

	ap, ok := r.networks[a.ssid]
	switch {
	case !ok:
		r.status = radio.StatusNoSSIDAvail
	case ap.Password != a.pass:
		r.status = radio.StatusConnectFailed
	default:
		r.status = radio.StatusConnected
		r.connected = a.ssid
		r.staIP = net.IPv4(10, 0, 0, 42)
		if r.static != nil && r.static.IP != nil {
			r.staIP = r.static.IP
		}
	}
}

func (r *Radio) Status() radio.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolve()
	return r.status
}

func (r *Radio) StoredSSID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.storedSSID
}

func (r *Radio) Disconnect(erase bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempt = nil
	r.connected = ""
	r.staIP = nil
	r.status = radio.StatusDisconnected
	if erase {
		r.storedSSID = ""
		r.storedPass = ""
	}
	return nil
}

func (r *Radio) SoftAP(ssid, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.mode.HasAP() {
		return fmt.Errorf("soft AP %q: access point interface is down (mode %v)", ssid, r.mode)
	}
	if password != "" && len(password) < 8 {
		return fmt.Errorf("soft AP %q: password must be at least 8 characters", ssid)
	}
	r.apSSID = ssid
	r.apPass = password
	r.apUp = true
	return nil
}

func (r *Radio) SoftAPDisconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apUp = false
	return nil
}

func (r *Radio) SoftAPIP() net.IP {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.apIP
}

func (r *Radio) SoftAPConfig(cfg radio.IPConfig) error {
	if cfg.IP.To4() == nil {
		return fmt.Errorf("soft AP config: %v is not an IPv4 address", cfg.IP)
	}
	r.mu.Lock()
	r.apIP = cfg.IP
	r.mu.Unlock()
	return nil
}

func (r *Radio) STAConfig(cfg radio.IPConfig) error {
	if cfg.IP.To4() == nil {
		return fmt.Errorf("station config: %v is not an IPv4 address", cfg.IP)
	}
	r.mu.Lock()
	c := cfg
	r.static = &c
	r.mu.Unlock()
	return nil
}

func (r *Radio) LocalIP() net.IP {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolve()
	return r.staIP
}

func (r *Radio) RSSI() int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolve()
	if r.connected == "" {
		return 0
	}
	return r.networks[r.connected].RSSI
}

func (r *Radio) Scan(force bool) ([]radio.Network, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failScan != nil {
		return nil, r.failScan
	}
	if !force && r.lastScan != nil {
		return append([]radio.Network(nil), r.lastScan...), nil
	}
	r.scans++
	nets := make([]radio.Network, 0, len(r.networks))
	for _, ap := range r.networks {
		nets = append(nets, radio.Network{SSID: ap.SSID, RSSI: ap.RSSI, Encryption: ap.Encryption})
	}
	sort.Slice(nets, func(i, j int) bool { return nets[i].RSSI > nets[j].RSSI })
	r.lastScan = nets
	return append([]radio.Network(nil), nets...), nil
}

// APState reports the soft AP as last configured.
func (r *Radio) APState() (ssid, password string, up bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.apSSID, r.apPass, r.apUp
}

// ScanCount is the number of scans that actually hit the air.
func (r *Radio) ScanCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scans
}

var _ radio.Driver = (*Radio)(nil)
