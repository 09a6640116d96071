package discovery

import (
	"fmt"
	"strings"
	"time"
)

// Portal is a configuration portal found on the network
type Portal struct {
	// Instance is the mDNS instance name, the device's configured hostname
	Instance string

	// Hostname is the mDNS host the service resolves to (e.g. "sensor-1.local.")
	Hostname string

	// IP is the IPv4 address, or IPv6 when the portal announced no IPv4
	IP string

	// Port is the HTTP port (typically 80)
	Port int

	// Metadata contains the TXT record data, e.g. "version=1.2.0", "tls=1"
	Metadata map[string]string

	// DiscoveredAt is when the portal was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the portal
func (p *Portal) String() string {
	return fmt.Sprintf("Portal %s (%s) at %s:%d", p.Instance, p.Hostname, p.IP, p.Port)
}

// BaseURL returns the base URL of the portal's JSON API
func (p *Portal) BaseURL() string {
	scheme := "http"
	if p.TLS() {
		scheme = "https"
	}
	host := p.IP
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, p.Port)
}

// TLS reports whether the portal announced HTTPS.
func (p *Portal) TLS() bool {
	return p.GetMetadata(txtTLS) == "1"
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (p *Portal) GetMetadata(key string) string {
	if p.Metadata == nil {
		return ""
	}
	return p.Metadata[key]
}
