// Package captivedns answers every DNS question with the portal address,
// which is what sends a freshly joined client's browser to the portal.
package captivedns

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/telemetry"
)

// DefaultTTL is the TTL on every answer, in seconds.
const DefaultTTL = 60

// Server is a wildcard A-record responder.
type Server struct {
	addr   string
	ttl    uint32
	logger *zap.Logger

	mu       sync.RWMutex
	server   *dns.Server
	conn     net.PacketConn
	answer   net.IP
	total    uint64
	answered uint64
}

// NewServer creates a responder that will listen on addr, usually ":53".
func NewServer(addr string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = logging.Named("captivedns")
	}
	return &Server{addr: addr, ttl: DefaultTTL, logger: logger}
}

// Start binds the UDP socket and serves in the background. Every A or
// ANY question is answered with answer.
func (s *Server) Start(answer net.IP) error {
	ip4 := answer.To4()
	if ip4 == nil {
		return fmt.Errorf("captive DNS answer %v is not an IPv4 address", answer)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		s.answer = ip4
		return nil
	}

	pc, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	started := make(chan struct{})
	failed := make(chan error, 1)
	srv := &dns.Server{
		PacketConn:        pc,
		Handler:           dns.HandlerFunc(s.handleRequest),
		NotifyStartedFunc: func() { close(started) },
	}
	go func() {
		if err := srv.ActivateAndServe(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Error("captive DNS stopped serving", zap.Error(err))
			failed <- err
		}
	}()

	select {
	case <-started:
	case err := <-failed:
		_ = pc.Close()
		return fmt.Errorf("failed to serve on %s: %w", s.addr, err)
	}

	s.server = srv
	s.conn = pc
	s.answer = ip4
	s.logger.Info("captive DNS started",
		zap.String("addr", pc.LocalAddr().String()),
		zap.Stringer("answer", ip4),
	)
	return nil
}

// Stop shuts the responder down. Stopping a stopped server is a no-op.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.conn = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	s.logger.Info("captive DNS stopped")
	return srv.Shutdown()
}

// Addr is the bound address while running, or the configured one.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn != nil {
		return s.conn.LocalAddr().String()
	}
	return s.addr
}

// Stats returns the number of questions seen and answered with an address.
func (s *Server) Stats() (total, answered uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total, s.answered
}

func (s *Server) handleRequest(w dns.ResponseWriter, r *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(r)
	m.Authoritative = true

	s.mu.RLock()
	answer := s.answer
	s.mu.RUnlock()

	if r.Opcode != dns.OpcodeQuery {
		m.SetRcode(r, dns.RcodeNotImplemented)
		_ = w.WriteMsg(m)
		return
	}

	for _, q := range r.Question {
		qtype := dns.TypeToString[q.Qtype]
		s.mu.Lock()
		s.total++
		s.mu.Unlock()

		switch q.Qtype {
		case dns.TypeA, dns.TypeANY:
			m.Answer = append(m.Answer, &dns.A{
				Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: s.ttl},
				A:   answer,
			})
			s.mu.Lock()
			s.answered++
			s.mu.Unlock()
			telemetry.DNSQueries.WithLabelValues(qtype).Inc()
			logging.LogDNSQuery(w.RemoteAddr().String(), q.Name, qtype, answer.String())
		default:
			// No records of other types; NOERROR with an empty answer keeps
			// clients from falling back to another resolver.
			logging.LogDNSQuery(w.RemoteAddr().String(), q.Name, qtype, "")
		}
	}

	if err := w.WriteMsg(m); err != nil {
		s.logger.Debug("failed to write DNS reply", zap.Error(err))
	}
}
