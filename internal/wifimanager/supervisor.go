package wifimanager

import (
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/radio"
	"github.com/muurk/wifiportal/internal/telemetry"
)

// Credential sources, used in logs and metrics.
const (
	sourceStored    = "stored"
	sourceList      = "list"
	sourcePortal    = "portal"
	sourceReconnect = "reconnect"
)

// pendingReconnect is an auto-reconnect started by Loop. It holds the
// supervisor in StateConnecting until settleReconnect sees the link come up
// or the connect timeout pass.
type pendingReconnect struct {
	ssid    string
	start   time.Time
	timeout time.Duration
}

// AutoConnect joins the stored network, then each configured credential
// in order, and finally opens the configuration portal, blocking until
// one of them yields a connection or the portal closes. An empty apName
// uses DefaultAPName.
func (m *Manager) AutoConnect(apName, apPassword string) bool {
	if err := m.radio.SetMode(radio.ModeSTA); err != nil {
		m.logger.Error("failed to enter station mode", zap.Error(err))
	}

	if ssid := m.radio.StoredSSID(); ssid != "" {
		if m.attempt(ssid, sourceStored, m.radio.Reconnect) {
			return true
		}
	}

	for _, c := range m.Config().Credentials {
		if m.ConnectToNetwork(c.SSID, c.Password) {
			return true
		}
	}

	if apName == "" {
		apName = DefaultAPName
	}
	return m.StartConfigPortal(apName, apPassword)
}

// ConnectToNetwork joins ssid and waits up to the connect timeout for the
// link. It returns false on timeout, on radio errors, and when another
// attempt already holds the radio.
func (m *Manager) ConnectToNetwork(ssid, password string) bool {
	source := sourceList
	if m.PortalState() == PortalActive {
		source = sourcePortal
	}
	return m.attempt(ssid, source, func() error {
		return m.radio.Begin(ssid, password)
	})
}

// attempt runs begin and polls the link until it comes up or the
// connect timeout passes. Only one attempt runs at a time.
func (m *Manager) attempt(ssid, source string, begin func() error) bool {
	m.mu.Lock()
	if m.state == StateConnecting {
		m.mu.Unlock()
		m.logger.Warn("connection attempt refused", zap.String("ssid", ssid), zap.Error(ErrConnectInProgress))
		return false
	}
	m.state = StateConnecting
	timeout := m.cfg.ConnectTimeout
	poll := m.cfg.PollInterval
	m.mu.Unlock()

	telemetry.ConnectAttempts.WithLabelValues(source).Inc()
	logging.LogConnectAttempt(ssid, source, timeout)

	start := m.clock.Now()
	status := radio.StatusConnectFailed
	if err := begin(); err != nil {
		m.logger.Warn("radio refused connection attempt", zap.String("ssid", ssid), zap.Error(err))
	} else {
		status = m.awaitLink(start, timeout, poll)
	}
	return m.finishAttempt(ssid, status, m.clock.Now().Sub(start))
}

// finishAttempt records the terminal status of an attempt and leaves
// StateConnecting.
func (m *Manager) finishAttempt(ssid string, status radio.Status, elapsed time.Duration) bool {
	connected := status == radio.StatusConnected

	m.mu.Lock()
	m.lastResult = status
	if connected {
		m.state = StateConnected
	} else {
		m.state = StateFailed
	}
	m.mu.Unlock()

	telemetry.ConnectResults.WithLabelValues(status.String()).Inc()
	logging.LogConnectResult(ssid, connected, statusText(status), elapsed)
	m.publish(EventConnectResult, map[string]any{
		"ssid":       ssid,
		"connected":  connected,
		"status":     statusText(status),
		"lastResult": uint8(status),
	})
	return connected
}

// startReconnect asks the radio to rejoin the stored network without
// waiting for the link. It claims the supervisor like any other attempt,
// so a concurrent ConnectToNetwork is refused until the reconnect settles.
func (m *Manager) startReconnect(ssid string) {
	m.mu.Lock()
	if m.state == StateConnecting || m.portal != PortalStopped {
		m.mu.Unlock()
		return
	}
	now := m.clock.Now()
	m.state = StateConnecting
	m.lastReconnect = now
	m.reconnect = &pendingReconnect{ssid: ssid, start: now, timeout: m.cfg.ConnectTimeout}
	timeout := m.cfg.ConnectTimeout
	m.mu.Unlock()

	telemetry.ConnectAttempts.WithLabelValues(sourceReconnect).Inc()
	logging.LogConnectAttempt(ssid, sourceReconnect, timeout)

	if err := m.radio.Reconnect(); err != nil {
		m.logger.Warn("reconnect failed", zap.String("ssid", ssid), zap.Error(err))
		if r := m.takeReconnect(); r != nil {
			m.finishAttempt(ssid, radio.StatusConnectFailed, m.clock.Now().Sub(r.start))
		}
	}
}

// settleReconnect ends a pending reconnect once the link is up or its
// timeout has passed.
func (m *Manager) settleReconnect() {
	m.mu.Lock()
	r := m.reconnect
	m.mu.Unlock()
	if r == nil {
		return
	}

	status := m.radio.Status()
	elapsed := m.clock.Now().Sub(r.start)
	if status != radio.StatusConnected && elapsed < r.timeout {
		return
	}
	if m.takeReconnect() == r {
		m.finishAttempt(r.ssid, status, elapsed)
	}
}

// takeReconnect clears the pending reconnect and returns it.
func (m *Manager) takeReconnect() *pendingReconnect {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.reconnect
	m.reconnect = nil
	return r
}

// awaitLink polls the radio until it reports a connection or the deadline
// passes, and returns the last status seen. The deadline is checked after
// every poll, so a failure is reported at most one poll interval late.
func (m *Manager) awaitLink(start time.Time, timeout, poll time.Duration) radio.Status {
	deadline := start.Add(timeout)
	for {
		status := m.radio.Status()
		if status == radio.StatusConnected {
			return status
		}
		if !m.clock.Now().Before(deadline) {
			return status
		}
		m.clock.Sleep(poll)
	}
}

// DisconnectFromNetwork drops the station link but keeps the stored
// network. It reports whether the radio accepted the request.
func (m *Manager) DisconnectFromNetwork() bool {
	if err := m.radio.Disconnect(false); err != nil {
		m.logger.Warn("disconnect failed", zap.Error(err))
		return false
	}
	m.mu.Lock()
	m.dropReconnectLocked()
	m.mu.Unlock()
	return true
}

// ResetSettings forgets the stored network and drops the link.
func (m *Manager) ResetSettings() {
	m.logger.Info("erasing stored network credentials")
	if err := m.radio.Disconnect(true); err != nil {
		m.logger.Warn("erase failed", zap.Error(err))
	}
	m.mu.Lock()
	m.dropReconnectLocked()
	m.scanCache = nil
	m.mu.Unlock()
}

// dropReconnectLocked abandons a pending reconnect and marks the
// supervisor idle unless a blocking attempt still holds it. Callers hold
// mu.
func (m *Manager) dropReconnectLocked() {
	if m.reconnect != nil {
		m.reconnect = nil
		m.state = StateIdle
		return
	}
	if m.state != StateConnecting {
		m.state = StateIdle
	}
}

// State returns the supervisor state.
func (m *Manager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the station link is up right now.
func (m *Manager) IsConnected() bool {
	return m.radio.Status() == radio.StatusConnected
}

// ConnectionStatus describes the current link in words.
func (m *Manager) ConnectionStatus() string {
	return statusText(m.radio.Status())
}

// LastConnectResult is the raw status code the last attempt ended with.
func (m *Manager) LastConnectResult() uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint8(m.lastResult)
}

func statusText(s radio.Status) string {
	switch s {
	case radio.StatusConnected:
		return "Connected"
	case radio.StatusConnectFailed:
		return "Connect Failed"
	case radio.StatusNoSSIDAvail:
		return "No SSID Available"
	case radio.StatusIdle:
		return "Idle"
	default:
		return "Unknown"
	}
}
