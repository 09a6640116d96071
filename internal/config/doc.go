// Package config persists what a provisioned device has learned.
//
// A Store is a YAML file holding the networks joined through the
// configuration portal, the values of custom parameters and the portal
// preferences. The wifimanager core never touches it; the command-line
// program loads it at start, seeds the manager from it and saves it from
// the config-saved hook.
//
// # Configuration File Location
//
// The default file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/wifiportal/config.yaml or $HOME/.config/wifiportal/config.yaml
//   - macOS: $HOME/.config/wifiportal/config.yaml
//   - Windows: %LOCALAPPDATA%\wifiportal\config.yaml
//
// # Security
//
// Unlike a metadata registry, this file stores WiFi passwords, as the
// device's own flash would. It is written with user-only permissions.
//
// # Usage Example
//
//	store, err := config.LoadDefault()
//	if err != nil {
//	    return err
//	}
//	store.RememberNetwork("home", "secret123")
//	if err := store.Save(); err != nil {
//	    return err
//	}
//
// Writes go to a temporary file that is renamed over the old one.
package config
