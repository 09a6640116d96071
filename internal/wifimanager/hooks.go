package wifimanager

import (
	"fmt"

	"go.uber.org/zap"
)

// Hooks are the caller's callbacks into the portal lifecycle. Any of them
// may be nil. Hooks run on the goroutine that caused the event and never
// while the manager holds its lock, so they may call back into it.
type Hooks struct {
	// PortalEntered runs once the access point and listeners are up.
	PortalEntered func(m *Manager)

	// ConfigSaved runs when a portal session ends with a connection.
	// Persisting credentials and parameter values belongs here.
	ConfigSaved func()

	// PortalTimeout runs when a portal session ends without one.
	PortalTimeout func()
}

// OnPortalEntered replaces the portal-entered hook.
func (m *Manager) OnPortalEntered(fn func(*Manager)) {
	m.mu.Lock()
	m.hooks.PortalEntered = fn
	m.mu.Unlock()
}

// OnConfigSaved replaces the config-saved hook.
func (m *Manager) OnConfigSaved(fn func()) {
	m.mu.Lock()
	m.hooks.ConfigSaved = fn
	m.mu.Unlock()
}

// OnPortalTimeout replaces the portal-timeout hook.
func (m *Manager) OnPortalTimeout(fn func()) {
	m.mu.Lock()
	m.hooks.PortalTimeout = fn
	m.mu.Unlock()
}

func (m *Manager) currentHooks() Hooks {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hooks
}

// runHook calls fn and turns a panic into a logged error.
func (m *Manager) runHook(name string, fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("hook panicked",
				zap.String("hook", name),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	fn()
}
