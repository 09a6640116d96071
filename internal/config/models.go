package config

import "time"

// currentVersion is the only file format version this package reads.
const currentVersion = 1

// document is the on-disk layout of the configuration file.
type document struct {
	Version     int               `yaml:"version"`
	Networks    []Network         `yaml:"networks,omitempty"` // Most recently joined first
	Params      map[string]string `yaml:"params,omitempty"`   // Custom parameter values keyed by id
	Preferences *Preferences      `yaml:"preferences,omitempty"`
}

// Network is a WiFi network the device has joined.
type Network struct {
	SSID          string    `yaml:"ssid"`
	Password      string    `yaml:"password,omitempty"`
	LastConnected time.Time `yaml:"last_connected,omitempty"`
}

// Preferences holds the portal settings chosen by the user.
type Preferences struct {
	APName         string `yaml:"ap_name,omitempty"`         // Access point name while the portal is open
	APPassword     string `yaml:"ap_password,omitempty"`     // Empty for an open access point
	Hostname       string `yaml:"hostname,omitempty"`        // mDNS hostname
	PortalTimeout  int    `yaml:"portal_timeout,omitempty"`  // Portal timeout in seconds, 0 for none
	ConnectTimeout int    `yaml:"connect_timeout,omitempty"` // Connection timeout in seconds
}

func defaultPreferences() *Preferences {
	return &Preferences{
		PortalTimeout:  180,
		ConnectTimeout: 10,
	}
}

func newDocument() document {
	return document{
		Version:     currentVersion,
		Params:      make(map[string]string),
		Preferences: defaultPreferences(),
	}
}
