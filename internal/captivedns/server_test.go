package captivedns

import (
	"net"
	"testing"

	"github.com/miekg/dns"

	"github.com/muurk/wifiportal/internal/telemetry"
)

func startServer(t *testing.T, answer net.IP) *Server {
	t.Helper()
	telemetry.InitMetrics()
	s := NewServer("127.0.0.1:0", nil)
	if err := s.Start(answer); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func query(t *testing.T, addr, name string, qtype uint16) *dns.Msg {
	t.Helper()
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	c := &dns.Client{Net: "udp"}
	resp, _, err := c.Exchange(msg, addr)
	if err != nil {
		t.Fatalf("Exchange(%s) error = %v", name, err)
	}
	return resp
}

func TestAnswersEveryNameWithPortalAddress(t *testing.T) {
	portal := net.IPv4(192, 168, 4, 1)
	s := startServer(t, portal)

	for _, name := range []string{"example.com", "connectivitycheck.gstatic.com", "captive.apple.com"} {
		resp := query(t, s.Addr(), name, dns.TypeA)
		if resp.Rcode != dns.RcodeSuccess {
			t.Errorf("%s: rcode = %s, want NOERROR", name, dns.RcodeToString[resp.Rcode])
		}
		if len(resp.Answer) != 1 {
			t.Fatalf("%s: %d answers, want 1", name, len(resp.Answer))
		}
		a, ok := resp.Answer[0].(*dns.A)
		if !ok {
			t.Fatalf("%s: answer is %T, want *dns.A", name, resp.Answer[0])
		}
		if !a.A.Equal(portal) {
			t.Errorf("%s: A = %v, want %v", name, a.A, portal)
		}
		if a.Hdr.Ttl != DefaultTTL {
			t.Errorf("%s: TTL = %d, want %d", name, a.Hdr.Ttl, DefaultTTL)
		}
	}

	total, answered := s.Stats()
	if total != 3 || answered != 3 {
		t.Errorf("Stats() = %d, %d; want 3, 3", total, answered)
	}
}

func TestAAAAGetsEmptyAnswer(t *testing.T) {
	s := startServer(t, net.IPv4(192, 168, 4, 1))

	resp := query(t, s.Addr(), "example.com", dns.TypeAAAA)
	if resp.Rcode != dns.RcodeSuccess {
		t.Errorf("rcode = %s, want NOERROR", dns.RcodeToString[resp.Rcode])
	}
	if len(resp.Answer) != 0 {
		t.Errorf("AAAA answers = %d, want 0", len(resp.Answer))
	}
}

func TestStartRejectsNonIPv4(t *testing.T) {
	s := NewServer("127.0.0.1:0", nil)
	if err := s.Start(net.ParseIP("fe80::1")); err == nil {
		t.Error("Start() accepted an IPv6 answer")
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() on a stopped server error = %v", err)
	}
}

func TestRestartUpdatesAnswer(t *testing.T) {
	s := startServer(t, net.IPv4(192, 168, 4, 1))
	next := net.IPv4(10, 0, 1, 1)
	if err := s.Start(next); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	resp := query(t, s.Addr(), "example.com", dns.TypeA)
	if len(resp.Answer) != 1 || !resp.Answer[0].(*dns.A).A.Equal(next) {
		t.Errorf("answer = %v, want %v", resp.Answer, next)
	}
}
