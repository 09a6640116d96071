package wifimanager

import (
	"net"
	"time"
)

const (
	// DefaultAPName is used when AutoConnect is given no access point name.
	DefaultAPName = "ESP_Config"

	// MinAPPasswordLength is the shortest password WPA2 accepts. Shorter
	// portal passwords fall back to an open access point.
	MinAPPasswordLength = 8
)

// Credential is a network the manager may try to join.
type Credential struct {
	SSID     string `yaml:"ssid" json:"ssid"`
	Password string `yaml:"password" json:"password"`
}

// AuthConfig protects every portal route with HTTP Basic authentication.
type AuthConfig struct {
	Enabled  bool
	Username string
	Password string
}

// Config holds the manager's runtime configuration.
type Config struct {
	// HTTPPort is where the portal HTTP layer listens. Default: 80
	HTTPPort int

	// ConnectTimeout bounds a single connection attempt. Default: 10 seconds
	ConnectTimeout time.Duration

	// ConfigPortalTimeout closes an idle portal. Zero disables the timeout.
	// Default: 180 seconds
	ConfigPortalTimeout time.Duration

	// AutoReconnect makes Loop rejoin the stored network after a drop.
	AutoReconnect bool

	// ReconnectInterval spaces out reconnect attempts made by Loop.
	// Default: 30 seconds
	ReconnectInterval time.Duration

	// PollInterval is how often a connection attempt checks the link.
	// Default: 500 milliseconds
	PollInterval time.Duration

	// TickInterval is the sleep between iterations of the blocking portal
	// loop. Default: 10 milliseconds
	TickInterval time.Duration

	// APIP, APGateway and APNetmask address the soft AP and are the answer
	// the captive DNS gives. Default: 192.168.4.1/24
	APIP      net.IP
	APGateway net.IP
	APNetmask net.IPMask

	// STAStatic assigns a fixed station address when set.
	STAStatic *StaticIP

	// MDNSHostname is advertised over mDNS while the HTTP layer is up.
	MDNSHostname string

	// UseHTTPS serves the portal over TLS using CertPEM and KeyPEM.
	UseHTTPS bool
	CertPEM  []byte
	KeyPEM   []byte

	Auth AuthConfig

	// Credentials are tried in order after the stored network fails.
	Credentials []Credential

	// HTMLEnabled serves a rendered page on the root route instead of the
	// JSON status document.
	HTMLEnabled bool

	// ServeOutsidePortal keeps the HTTP layer running after the portal
	// closes, so status routes stay reachable on the station address.
	ServeOutsidePortal bool
}

// StaticIP is a fixed station address assignment.
type StaticIP struct {
	IP      net.IP
	Gateway net.IP
	Netmask net.IPMask
	DNS     net.IP
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		HTTPPort:            80,
		ConnectTimeout:      10 * time.Second,
		ConfigPortalTimeout: 180 * time.Second,
		AutoReconnect:       true,
		ReconnectInterval:   30 * time.Second,
		PollInterval:        500 * time.Millisecond,
		TickInterval:        10 * time.Millisecond,
		APIP:                net.IPv4(192, 168, 4, 1),
		APGateway:           net.IPv4(192, 168, 4, 1),
		APNetmask:           net.CIDRMask(24, 32),
	}
}

// withDefaults fills zero durations so a partially populated Config never
// spins or waits forever.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HTTPPort == 0 {
		c.HTTPPort = d.HTTPPort
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.ConfigPortalTimeout < 0 {
		c.ConfigPortalTimeout = 0
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = d.ReconnectInterval
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.APNetmask == nil {
		c.APNetmask = d.APNetmask
	}
	c.Credentials = append([]Credential(nil), c.Credentials...)
	return c
}
