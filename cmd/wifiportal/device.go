package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/captivedns"
	"github.com/muurk/wifiportal/internal/config"
	"github.com/muurk/wifiportal/internal/discovery"
	"github.com/muurk/wifiportal/internal/events"
	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/params"
	"github.com/muurk/wifiportal/internal/radio"
	"github.com/muurk/wifiportal/internal/radio/nmcli"
	"github.com/muurk/wifiportal/internal/radio/sim"
	"github.com/muurk/wifiportal/internal/server"
	"github.com/muurk/wifiportal/internal/wifimanager"
)

// closeGrace bounds how long shutdown waits for in-flight requests.
const closeGrace = 5 * time.Second

// device is a manager wired to its radio, listeners and store.
type device struct {
	settings settings
	store    *config.Store
	radio    radio.Driver
	manager  *wifimanager.Manager
	dns      *captivedns.Server
	http     *server.Server
	events   *events.Hub
	logger   *zap.Logger
}

func newDevice(s settings, store *config.Store) (*device, error) {
	logger := logging.Named("device")

	drv, err := newDriver(s)
	if err != nil {
		return nil, err
	}

	cfg := wifimanager.DefaultConfig()
	cfg.HTTPPort = s.HTTPPort
	cfg.ConnectTimeout = s.ConnectTimeout
	cfg.ConfigPortalTimeout = s.PortalTimeout
	cfg.AutoReconnect = s.AutoReconnect
	cfg.MDNSHostname = s.Hostname
	cfg.ServeOutsidePortal = s.ServeOutsidePortal
	if s.AuthUser != "" {
		cfg.Auth = wifimanager.AuthConfig{Enabled: true, Username: s.AuthUser, Password: s.AuthPassword}
	}
	if s.HTTPS {
		if cfg.CertPEM, err = os.ReadFile(s.CertFile); err != nil {
			return nil, fmt.Errorf("failed to read certificate: %w", err)
		}
		if cfg.KeyPEM, err = os.ReadFile(s.KeyFile); err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
		cfg.UseHTTPS = true
	}

	hub := events.NewHub(logging.Named("events"))
	dns := captivedns.NewServer(s.DNSAddr, logging.Named("captivedns"))
	adv := discovery.NewAdvertiser(logging.Named("mdns"))
	adv.TLS = s.HTTPS

	m := wifimanager.New(cfg, drv,
		wifimanager.WithDNS(dns),
		wifimanager.WithAdvertiser(adv),
		wifimanager.WithEvents(hub),
	)

	for _, spec := range s.Params {
		p, err := newParameter(spec)
		if err != nil {
			return nil, err
		}
		m.AddParameter(p)
	}

	// Stored values win over declared defaults; stored networks are
	// tried after the one the radio remembers.
	if res := m.Registry().Update(store.Params()); len(res.Rejected) > 0 {
		logger.Warn("stored parameter values rejected", zap.Strings("ids", res.Rejected))
	}
	for _, n := range store.Networks() {
		m.AddWiFiCredential(n.SSID, n.Password)
	}

	d := &device{
		settings: s,
		store:    store,
		radio:    drv,
		manager:  m,
		dns:      dns,
		events:   hub,
		logger:   logger,
	}
	core := &persistingCore{Manager: m, device: d}
	d.http = server.New(server.Config{
		Host:              s.HTTPHost,
		Port:              s.HTTPPort,
		AssetsDir:         s.AssetsDir,
		Metrics:           s.Metrics,
		ReadHeaderTimeout: 10 * time.Second,
	}, core, server.WithEvents(hub))
	m.AttachHTTP(d.http)
	m.OnConfigSaved(d.persist)
	return d, nil
}

func newDriver(s settings) (radio.Driver, error) {
	switch s.Driver {
	case "nmcli":
		cfg := nmcli.DefaultConfig()
		cfg.Interface = s.Interface
		cfg.ConnectWait = s.ConnectTimeout
		return nmcli.New(cfg, logging.Named("nmcli")), nil
	case "sim":
		r := sim.New()
		for _, n := range s.SimNetworks {
			r.AddNetwork(n.SSID, n.Password, n.RSSI)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown driver %q", s.Driver)
	}
}

func newParameter(spec paramSpec) (*params.Parameter, error) {
	typ := params.TypeText
	if spec.Type != "" {
		t, err := params.ParseType(spec.Type)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", spec.ID, err)
		}
		typ = t
	}
	label := spec.Label
	if label == "" {
		label = spec.ID
	}
	return params.New(spec.ID, label, spec.Default, typ, params.WithAttributes(spec.Attributes)), nil
}

// persist saves parameter values and portal preferences to the store.
func (d *device) persist() {
	values := make(map[string]string)
	for _, p := range d.manager.Parameters() {
		values[p.ID] = p.Value
	}
	d.store.SetParams(values)

	prefs := d.store.Preferences()
	prefs.APName = d.settings.APName
	prefs.APPassword = d.settings.APPassword
	prefs.Hostname = d.settings.Hostname
	prefs.PortalTimeout = int(d.settings.PortalTimeout / time.Second)
	prefs.ConnectTimeout = int(d.settings.ConnectTimeout / time.Second)
	d.store.SetPreferences(prefs)

	d.save()
}

func (d *device) save() {
	if err := d.store.Save(); err != nil {
		d.logger.Error("failed to save store", zap.String("path", d.store.Path()), zap.Error(err))
		return
	}
	d.logger.Debug("store saved", zap.String("path", d.store.Path()))
}

// interruptOn closes the portal whenever ctx is done until release is
// called, so a blocking AutoConnect or StartConfigPortal returns promptly
// even when the portal opens after the signal arrived.
func (d *device) interruptOn(ctx context.Context) (release func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-done:
			return
		case <-ctx.Done():
		}
		t := time.NewTicker(100 * time.Millisecond)
		defer t.Stop()
		for {
			d.manager.StopConfigPortal()
			select {
			case <-done:
				return
			case <-t.C:
			}
		}
	}()
	return func() { close(done) }
}

// close stops every listener.
func (d *device) close() {
	ctx, cancel := context.WithTimeout(context.Background(), closeGrace)
	defer cancel()
	if err := d.manager.Close(ctx); err != nil {
		d.logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

// persistingCore records what a portal client changes. The manager leaves
// persistence to its caller.
type persistingCore struct {
	*wifimanager.Manager
	device *device
}

func (c *persistingCore) ConnectToNetwork(ssid, password string) bool {
	if !c.Manager.ConnectToNetwork(ssid, password) {
		return false
	}
	c.device.store.RememberNetwork(ssid, password)
	c.device.save()
	return true
}

func (c *persistingCore) UpdateParameters(values map[string]string) int {
	n := c.Manager.UpdateParameters(values)
	if n > 0 {
		c.device.persist()
	}
	return n
}

func (c *persistingCore) ResetSettings() {
	c.Manager.ResetSettings()
	c.device.store.Reset()
	c.device.save()
}

var _ server.Core = (*persistingCore)(nil)
