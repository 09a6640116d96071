package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type portals advertise
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for portal discovery
	DefaultScanTimeout = 10 * time.Second

	// DefaultPort is the default HTTP port of a portal
	DefaultPort = 80
)

// TXT record keys. Every portal carries txtPortal=portalMarker, which is
// how portals are told apart from other _http._tcp services.
const (
	txtPortal    = "portal"
	txtVersion   = "version"
	txtPath      = "path"
	txtTLS       = "tls"
	portalMarker = "wifiportal"
)

// Scanner handles mDNS portal discovery
type Scanner struct {
	// Timeout is the maximum time to wait for portal discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// ScanForPortals discovers all portals on the local network until the
// timeout or ctx ends.
func (s *Scanner) ScanForPortals(ctx context.Context) ([]*Portal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		portals = make([]*Portal, 0)
		seen    = make(map[string]bool)
	)
	err := s.browse(ctx, func(p *Portal) bool {
		mu.Lock()
		defer mu.Unlock()
		if !seen[p.Instance] {
			seen[p.Instance] = true
			portals = append(portals, p)
		}
		return false
	})
	if err != nil {
		return nil, err
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return append([]*Portal(nil), portals...), nil
}

// WaitForPortal waits for the portal whose instance name is instance.
func (s *Scanner) WaitForPortal(ctx context.Context, instance string) (*Portal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	found := make(chan *Portal, 1)
	err := s.browse(ctx, func(p *Portal) bool {
		if !strings.EqualFold(p.Instance, instance) {
			return false
		}
		select {
		case found <- p:
		default:
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	select {
	case p := <-found:
		return p, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("portal %s not found within timeout", instance)
	}
}

// browse feeds every portal entry to visit until ctx ends or visit
// returns true.
func (s *Scanner) browse(ctx context.Context, visit func(*Portal) bool) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		done := false
		for entry := range entries {
			if done {
				continue
			}
			if p := parseServiceEntry(entry); p != nil {
				done = visit(p)
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	return nil
}

// parseServiceEntry converts a zeroconf service entry to a Portal
// Returns nil if the entry is not a portal
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Portal {
	metadata := parseTXT(entry.Text)
	if metadata[txtPortal] != portalMarker {
		return nil
	}

	// Get IP address (prefer IPv4)
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	return &Portal{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// parseTXT splits "key=value" records; a bare key maps to "".
func parseTXT(records []string) map[string]string {
	metadata := make(map[string]string, len(records))
	for _, txt := range records {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}
	return metadata
}

// ScanForPortals is a convenience function to scan with a custom timeout
func ScanForPortals(ctx context.Context, timeout time.Duration) ([]*Portal, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	return scanner.ScanForPortals(ctx)
}
