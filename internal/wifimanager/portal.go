package wifimanager

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/radio"
	"github.com/muurk/wifiportal/internal/telemetry"
)

// PortalState is the lifecycle of a configuration portal session.
type PortalState int

const (
	PortalStopped PortalState = iota
	PortalStarting
	PortalActive
	PortalSucceeded
	PortalTimedOut
)

func (s PortalState) String() string {
	switch s {
	case PortalStopped:
		return "stopped"
	case PortalStarting:
		return "starting"
	case PortalActive:
		return "active"
	case PortalSucceeded:
		return "succeeded"
	case PortalTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

type portalSession struct {
	apName  string
	start   time.Time
	timeout time.Duration
}

// shutdownGrace bounds how long closing the portal waits for in-flight
// HTTP requests.
const shutdownGrace = 5 * time.Second

// PortalState returns the current portal state.
func (m *Manager) PortalState() PortalState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.portal
}

// IsConfigPortalActive reports whether a portal session is open.
func (m *Manager) IsConfigPortalActive() bool {
	return m.PortalState() == PortalActive
}

// StartConfigPortal opens a portal and blocks until a client gets the
// station connected or the portal timeout passes. It returns true only
// for a connection. Calling it while a session is open returns false
// without touching the running session.
func (m *Manager) StartConfigPortal(apName, apPassword string) bool {
	if err := m.OpenConfigPortal(apName, apPassword); err != nil {
		m.logger.Warn("cannot start configuration portal", zap.String("ap_name", apName), zap.Error(err))
		return false
	}

	m.mu.Lock()
	tick := m.cfg.TickInterval
	m.mu.Unlock()

	for {
		if done, ok := m.tickPortal(); done {
			return ok
		}
		m.clock.Sleep(tick)
	}
}

// OpenConfigPortal brings the portal up without blocking. The caller then
// drives it with Tick or Loop. Short passwords fall back to an open
// access point.
func (m *Manager) OpenConfigPortal(apName, apPassword string) error {
	m.mu.Lock()
	if m.portal != PortalStopped {
		m.mu.Unlock()
		return ErrPortalActive
	}
	m.portal = PortalStarting
	m.lastOutcome = PortalStopped
	m.scanCache = nil
	cfg := m.cfg
	m.mu.Unlock()

	if err := m.radio.SetMode(radio.ModeAPSTA); err != nil {
		m.abortPortal()
		return err
	}
	if cfg.APIP != nil {
		ipcfg := radio.IPConfig{IP: cfg.APIP, Gateway: cfg.APGateway, Netmask: cfg.APNetmask}
		if err := m.radio.SoftAPConfig(ipcfg); err != nil {
			m.logger.Warn("failed to address access point", zap.Error(err))
		}
	}

	if apPassword != "" && len(apPassword) < MinAPPasswordLength {
		m.logger.Warn("access point password too short, starting an open access point",
			zap.String("ap_name", apName),
			zap.Int("min_length", MinAPPasswordLength),
		)
		apPassword = ""
	}
	if err := m.radio.SoftAP(apName, apPassword); err != nil {
		m.abortPortal()
		return err
	}

	apIP := m.radio.SoftAPIP()
	if m.dns != nil {
		if err := m.dns.Start(apIP); err != nil {
			m.logger.Error("captive DNS failed to start", zap.Error(err))
		}
	}
	if err := m.startHTTP(true); err != nil {
		m.logger.Error("portal HTTP layer failed to start", zap.Error(err))
	}
	m.startAdvertising()

	m.mu.Lock()
	m.session = &portalSession{apName: apName, start: m.clock.Now(), timeout: cfg.ConfigPortalTimeout}
	m.portal = PortalActive
	hook := m.hooks.PortalEntered
	m.mu.Unlock()

	telemetry.PortalActive.Set(1)
	logging.LogPortalEvent(apName, "entered",
		zap.Stringer("ap_ip", apIP),
		zap.Bool("open", apPassword == ""),
		zap.Duration("timeout", cfg.ConfigPortalTimeout),
	)
	m.publish(EventPortalEntered, map[string]any{
		"apName": apName,
		"apIP":   apIP.String(),
	})
	m.runHook("portal_entered", func() {
		if hook != nil {
			hook(m)
		}
	})
	return nil
}

func (m *Manager) abortPortal() {
	m.mu.Lock()
	m.portal = PortalStopped
	m.mu.Unlock()
}

// Tick advances the portal: a connected station ends the session with
// the config-saved hook, an expired timeout ends it with the
// portal-timeout hook. Each hook fires at most once per session. Tick
// also settles a reconnect started by Loop.
func (m *Manager) Tick() {
	m.tickPortal()
}

// tickPortal reports whether the session is over and, if so, whether it
// ended in a connection.
func (m *Manager) tickPortal() (done, connected bool) {
	m.settleReconnect()
	if m.PortalState() != PortalActive {
		return m.settled()
	}

	linkUp := m.radio.Status() == radio.StatusConnected
	now := m.clock.Now()

	m.mu.Lock()
	if m.portal != PortalActive {
		m.mu.Unlock()
		return m.settled()
	}
	s := m.session
	var outcome PortalState
	switch {
	case linkUp:
		outcome = PortalSucceeded
	case s.timeout > 0 && now.Sub(s.start) > s.timeout:
		outcome = PortalTimedOut
	default:
		m.mu.Unlock()
		return false, false
	}
	m.portal = outcome
	m.lastOutcome = outcome
	hooks := m.hooks
	m.mu.Unlock()

	if outcome == PortalSucceeded {
		telemetry.PortalSessions.WithLabelValues("connected").Inc()
		logging.LogPortalEvent(s.apName, "config_saved", zap.Duration("elapsed", now.Sub(s.start)))
		m.publish(EventConfigSaved, map[string]any{"apName": s.apName, "ip": m.LocalIP()})
		m.runHook("config_saved", hooks.ConfigSaved)
	} else {
		telemetry.PortalSessions.WithLabelValues("timeout").Inc()
		logging.LogPortalEvent(s.apName, "timeout", zap.Duration("timeout", s.timeout))
		m.publish(EventPortalTimeout, map[string]any{"apName": s.apName})
		m.runHook("portal_timeout", hooks.PortalTimeout)
	}

	m.StopConfigPortal()
	return true, outcome == PortalSucceeded
}

// settled answers tickPortal for a session that is no longer active.
func (m *Manager) settled() (done, connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.portal {
	case PortalStopped:
		return true, m.lastOutcome == PortalSucceeded
	default:
		// Starting, or another goroutine is closing the session.
		return false, false
	}
}

// StopConfigPortal closes the session: DNS, the HTTP layer if the portal
// started it, mDNS and the access point. Stopping a closed portal is a
// no-op.
func (m *Manager) StopConfigPortal() {
	m.mu.Lock()
	if m.portal == PortalStopped || m.portal == PortalStarting {
		m.mu.Unlock()
		return
	}
	var apName string
	if m.session != nil {
		apName = m.session.apName
	}
	if m.portal == PortalActive {
		telemetry.PortalSessions.WithLabelValues("stopped").Inc()
	}
	m.session = nil
	m.portal = PortalStopped
	stopWeb := m.portalOwnsWeb && m.httpRunning && !m.cfg.ServeOutsidePortal
	if stopWeb {
		m.httpRunning = false
		m.portalOwnsWeb = false
	}
	h := m.http
	m.mu.Unlock()

	if m.dns != nil {
		if err := m.dns.Stop(); err != nil {
			m.logger.Warn("captive DNS failed to stop", zap.Error(err))
		}
	}
	if stopWeb && h != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		if err := h.Stop(ctx); err != nil {
			m.logger.Warn("portal HTTP layer failed to stop", zap.Error(err))
		}
		cancel()
		m.stopAdvertising()
	}
	if err := m.radio.SoftAPDisconnect(); err != nil {
		m.logger.Warn("failed to stop access point", zap.Error(err))
	}
	if err := m.radio.SetMode(radio.ModeSTA); err != nil {
		m.logger.Warn("failed to return to station mode", zap.Error(err))
	}

	telemetry.PortalActive.Set(0)
	logging.LogPortalEvent(apName, "stopped")
}
