package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/muurk/wifiportal/internal/config"
	"github.com/muurk/wifiportal/internal/wifimanager"
)

// envPrefix namespaces environment overrides, e.g. WIFIPORTAL_AP_NAME.
const envPrefix = "WIFIPORTAL"

// settingsName is the optional YAML file looked up in the config directory.
const settingsName = "settings"

// paramSpec declares a custom portal parameter in the settings file.
type paramSpec struct {
	ID         string `mapstructure:"id"`
	Label      string `mapstructure:"label"`
	Default    string `mapstructure:"default"`
	Type       string `mapstructure:"type"`
	Attributes string `mapstructure:"attributes"`
}

// simNetwork puts a network in range of the simulated radio.
type simNetwork struct {
	SSID     string `mapstructure:"ssid"`
	Password string `mapstructure:"password"`
	RSSI     int32  `mapstructure:"rssi"`
}

// settings is the resolved device configuration.
type settings struct {
	Driver    string
	Interface string

	APName     string
	APPassword string
	Hostname   string

	HTTPHost  string
	HTTPPort  int
	DNSAddr   string
	AssetsDir string
	Metrics   bool

	ConnectTimeout     time.Duration
	PortalTimeout      time.Duration
	AutoReconnect      bool
	ServeOutsidePortal bool

	HTTPS    bool
	CertFile string
	KeyFile  string

	AuthUser     string
	AuthPassword string

	Params      []paramSpec
	SimNetworks []simNetwork
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	d := wifimanager.DefaultConfig()
	v.SetDefault("driver", "sim")
	v.SetDefault("interface", "wlan0")
	v.SetDefault("ap-name", wifimanager.DefaultAPName)
	v.SetDefault("http-port", d.HTTPPort)
	v.SetDefault("dns-addr", ":53")
	v.SetDefault("metrics", true)
	v.SetDefault("connect-timeout", d.ConnectTimeout)
	v.SetDefault("portal-timeout", d.ConfigPortalTimeout)
	v.SetDefault("auto-reconnect", d.AutoReconnect)
	return v
}

// addDeviceFlags registers the flags shared by commands that drive a radio.
func addDeviceFlags(cmd *cobra.Command) {
	d := wifimanager.DefaultConfig()
	f := cmd.Flags()
	f.String("driver", "sim", "Radio driver (sim, nmcli)")
	f.String("interface", "wlan0", "Wireless interface for the nmcli driver")
	f.String("ap-name", wifimanager.DefaultAPName, "Access point name while the portal is open")
	f.String("ap-password", "", "Access point password (empty or shorter than 8 characters for an open AP)")
	f.String("hostname", "", "mDNS hostname to advertise (empty disables advertising)")
	f.String("http-host", "", "HTTP listen address (empty = all interfaces)")
	f.Int("http-port", d.HTTPPort, "HTTP port")
	f.String("dns-addr", ":53", "Captive DNS listen address")
	f.String("assets-dir", "", "Directory of static files served for unknown paths")
	f.Bool("metrics", true, "Serve Prometheus metrics on /metrics")
	f.Duration("connect-timeout", d.ConnectTimeout, "Timeout for a single connection attempt")
	f.Duration("portal-timeout", d.ConfigPortalTimeout, "Close an idle portal after this long (0 = never)")
	f.Bool("auto-reconnect", d.AutoReconnect, "Rejoin the stored network after the link drops")
	f.Bool("serve-outside-portal", false, "Keep the HTTP API running after the portal closes")
	f.Bool("https", false, "Serve the portal over TLS")
	f.String("cert", "", "TLS certificate file (PEM)")
	f.String("key", "", "TLS private key file (PEM)")
	f.String("auth-user", "", "Require HTTP Basic authentication with this user")
	f.String("auth-password", "", "Password for --auth-user")
}

// loadSettings resolves settings with the precedence flags, environment,
// settings file, stored preferences, built-in defaults. An empty file
// looks for settings.yaml in the config directory and tolerates its
// absence.
func loadSettings(v *viper.Viper, cmd *cobra.Command, file string, prefs config.Preferences) (settings, error) {
	applyPreferences(v, prefs)

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return settings{}, fmt.Errorf("failed to bind flags: %w", err)
	}
	if err := readSettingsFile(v, file); err != nil {
		return settings{}, err
	}

	s := settings{
		Driver:             strings.ToLower(v.GetString("driver")),
		Interface:          v.GetString("interface"),
		APName:             v.GetString("ap-name"),
		APPassword:         v.GetString("ap-password"),
		Hostname:           v.GetString("hostname"),
		HTTPHost:           v.GetString("http-host"),
		HTTPPort:           v.GetInt("http-port"),
		DNSAddr:            v.GetString("dns-addr"),
		AssetsDir:          v.GetString("assets-dir"),
		Metrics:            v.GetBool("metrics"),
		ConnectTimeout:     v.GetDuration("connect-timeout"),
		PortalTimeout:      v.GetDuration("portal-timeout"),
		AutoReconnect:      v.GetBool("auto-reconnect"),
		ServeOutsidePortal: v.GetBool("serve-outside-portal"),
		HTTPS:              v.GetBool("https"),
		CertFile:           v.GetString("cert"),
		KeyFile:            v.GetString("key"),
		AuthUser:           v.GetString("auth-user"),
		AuthPassword:       v.GetString("auth-password"),
	}
	if err := v.UnmarshalKey("params", &s.Params); err != nil {
		return settings{}, fmt.Errorf("invalid params section: %w", err)
	}
	if err := v.UnmarshalKey("sim.networks", &s.SimNetworks); err != nil {
		return settings{}, fmt.Errorf("invalid sim.networks section: %w", err)
	}
	return s, s.validate()
}

// applyPreferences makes the stored portal preferences the defaults.
func applyPreferences(v *viper.Viper, p config.Preferences) {
	if p.APName != "" {
		v.SetDefault("ap-name", p.APName)
	}
	if p.APPassword != "" {
		v.SetDefault("ap-password", p.APPassword)
	}
	if p.Hostname != "" {
		v.SetDefault("hostname", p.Hostname)
	}
	if p.PortalTimeout > 0 {
		v.SetDefault("portal-timeout", time.Duration(p.PortalTimeout)*time.Second)
	}
	if p.ConnectTimeout > 0 {
		v.SetDefault("connect-timeout", time.Duration(p.ConnectTimeout)*time.Second)
	}
}

func readSettingsFile(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read settings file %s: %w", file, err)
		}
		return nil
	}

	dir, err := config.GetConfigDir()
	if err != nil {
		return nil
	}
	v.SetConfigName(settingsName)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read settings file: %w", err)
	}
	return nil
}

func (s settings) validate() error {
	switch s.Driver {
	case "sim", "nmcli":
	default:
		return fmt.Errorf("unknown driver %q (expected sim or nmcli)", s.Driver)
	}
	if s.HTTPPort < 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port %d", s.HTTPPort)
	}
	if s.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive, got %s", s.ConnectTimeout)
	}
	if s.PortalTimeout < 0 {
		return fmt.Errorf("portal timeout cannot be negative, got %s", s.PortalTimeout)
	}
	if s.HTTPS && (s.CertFile == "" || s.KeyFile == "") {
		return errors.New("--https requires both --cert and --key")
	}
	if (s.AuthUser == "") != (s.AuthPassword == "") {
		return errors.New("--auth-user and --auth-password must be provided together")
	}
	for i, p := range s.Params {
		if p.ID == "" {
			return fmt.Errorf("params[%d] has no id", i)
		}
	}
	return nil
}
