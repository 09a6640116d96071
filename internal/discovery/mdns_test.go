package discovery

import (
	"errors"
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"
)

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantNil  bool
		wantIP   string
		wantPort int
	}{
		{
			name: "portal with IPv4",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "sensor-1"},
				HostName:      "sensor-1.local.",
				Port:          80,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.4.1")},
				Text:          []string{"portal=wifiportal", "version=1.0.0"},
			},
			wantIP:   "192.168.4.1",
			wantPort: 80,
		},
		{
			name: "portal with custom port",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "sensor-2"},
				Port:          8080,
				AddrIPv4:      []net.IP{net.ParseIP("10.0.0.42")},
				Text:          []string{"portal=wifiportal"},
			},
			wantIP:   "10.0.0.42",
			wantPort: 8080,
		},
		{
			name: "portal without port defaults to 80",
			entry: &zeroconf.ServiceEntry{
				AddrIPv4: []net.IP{net.ParseIP("10.0.0.42")},
				Text:     []string{"portal=wifiportal"},
			},
			wantIP:   "10.0.0.42",
			wantPort: 80,
		},
		{
			name: "IPv6 only",
			entry: &zeroconf.ServiceEntry{
				Port:     80,
				AddrIPv6: []net.IP{net.ParseIP("fe80::1")},
				Text:     []string{"portal=wifiportal"},
			},
			wantIP:   "fe80::1",
			wantPort: 80,
		},
		{
			name: "other http service",
			entry: &zeroconf.ServiceEntry{
				Port:     80,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.1")},
				Text:     []string{"path=/"},
			},
			wantNil: true,
		},
		{
			name: "portal without addresses",
			entry: &zeroconf.ServiceEntry{
				Port: 80,
				Text: []string{"portal=wifiportal"},
			},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := parseServiceEntry(tt.entry)
			if tt.wantNil {
				if p != nil {
					t.Fatalf("parseServiceEntry() = %v, want nil", p)
				}
				return
			}
			if p == nil {
				t.Fatal("parseServiceEntry() = nil")
			}
			if p.IP != tt.wantIP {
				t.Errorf("IP = %v, want %v", p.IP, tt.wantIP)
			}
			if p.Port != tt.wantPort {
				t.Errorf("Port = %v, want %v", p.Port, tt.wantPort)
			}
			if p.DiscoveredAt.IsZero() {
				t.Error("DiscoveredAt not set")
			}
		})
	}
}

func TestParseTXT(t *testing.T) {
	got := parseTXT([]string{"portal=wifiportal", "flag", "path=/a=b"})
	want := map[string]string{"portal": "wifiportal", "flag": "", "path": "/a=b"}
	if len(got) != len(want) {
		t.Fatalf("parseTXT() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("parseTXT()[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestPortalBaseURL(t *testing.T) {
	tests := []struct {
		name   string
		portal Portal
		want   string
	}{
		{"http", Portal{IP: "192.168.4.1", Port: 80}, "http://192.168.4.1:80"},
		{"https", Portal{IP: "192.168.4.1", Port: 443, Metadata: map[string]string{"tls": "1"}}, "https://192.168.4.1:443"},
		{"ipv6", Portal{IP: "fe80::1", Port: 80}, "http://[fe80::1]:80"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.portal.BaseURL(); got != tt.want {
				t.Errorf("BaseURL() = %v, want %v", got, tt.want)
			}
		})
	}
}

type fakeRegistration struct{ shutdowns int }

func (f *fakeRegistration) Shutdown() { f.shutdowns++ }

func TestAdvertiser(t *testing.T) {
	var (
		regs     []*fakeRegistration
		gotText  []string
		gotPort  int
		gotName  string
		failNext bool
	)
	a := NewAdvertiser(zap.NewNop())
	a.TLS = true
	a.register = func(instance, service, domain string, port int, text []string) (registration, error) {
		if failNext {
			return nil, errors.New("no multicast interface")
		}
		if service != ServiceType || domain != ServiceDomain {
			t.Errorf("register(%q, %q), want %q, %q", service, domain, ServiceType, ServiceDomain)
		}
		gotName, gotPort, gotText = instance, port, text
		r := &fakeRegistration{}
		regs = append(regs, r)
		return r, nil
	}

	if err := a.Advertise("", 80); err == nil {
		t.Error("Advertise with empty hostname should fail")
	}

	if err := a.Advertise("sensor-1", 8080); err != nil {
		t.Fatalf("Advertise() error = %v", err)
	}
	if gotName != "sensor-1" || gotPort != 8080 {
		t.Errorf("registered %s:%d", gotName, gotPort)
	}
	meta := parseTXT(gotText)
	if meta["portal"] != "wifiportal" || meta["tls"] != "1" {
		t.Errorf("TXT = %v", gotText)
	}
	if !a.Active() {
		t.Error("Active() = false after Advertise")
	}

	// A second announcement replaces the first.
	if err := a.Advertise("sensor-1", 80); err != nil {
		t.Fatalf("Advertise() error = %v", err)
	}
	if regs[0].shutdowns != 1 {
		t.Errorf("previous registration shut down %d times, want 1", regs[0].shutdowns)
	}

	a.Shutdown()
	a.Shutdown()
	if regs[1].shutdowns != 1 {
		t.Errorf("registration shut down %d times, want 1", regs[1].shutdowns)
	}
	if a.Active() {
		t.Error("Active() = true after Shutdown")
	}

	failNext = true
	if err := a.Advertise("sensor-1", 80); err == nil {
		t.Error("Advertise() should surface registration errors")
	}
	if a.Active() {
		t.Error("Active() = true after failed Advertise")
	}
}
