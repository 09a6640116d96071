package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "wifiportal"
	configFile = "config.yaml"
)

// Mutex for thread-safe file operations
var fileMutex sync.Mutex

// GetConfigDir returns the OS-appropriate configuration directory for the application.
// This follows platform conventions:
//   - Linux: $XDG_CONFIG_HOME/wifiportal or $HOME/.config/wifiportal
//   - macOS: $HOME/.config/wifiportal (following XDG convention on macOS)
//   - Windows: %LOCALAPPDATA%\wifiportal
func GetConfigDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			baseDir = filepath.Join(userProfile, "AppData", "Local", appName)
		} else {
			baseDir = filepath.Join(localAppData, appName)
		}

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".config", appName)

	default:
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome != "" {
			baseDir = filepath.Join(xdgConfigHome, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, ".config", appName)
		}
	}

	return baseDir, nil
}

// GetConfigPath returns the full path to the configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// Store is the persisted state of a provisioned device: the networks it
// has joined, its custom parameter values and the portal preferences.
// It is safe for concurrent use.
type Store struct {
	path string

	// saveMu orders whole saves, so the file always ends up holding the
	// snapshot taken by the last Save.
	saveMu sync.Mutex

	mu  sync.Mutex
	doc document
	now func() time.Time
}

// NewStore returns an empty store that saves to path.
func NewStore(path string) *Store {
	return &Store{path: path, doc: newDocument(), now: time.Now}
}

// Load reads the store at path. A missing file yields an empty store.
func Load(path string) (*Store, error) {
	s := NewStore(path)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if doc.Version != currentVersion {
		return nil, fmt.Errorf("unsupported config version: %d (expected %d)", doc.Version, currentVersion)
	}

	// Ensure maps are initialized
	if doc.Params == nil {
		doc.Params = make(map[string]string)
	}
	if doc.Preferences == nil {
		doc.Preferences = defaultPreferences()
	}
	s.doc = doc
	return s, nil
}

// LoadDefault loads the store from the platform configuration directory.
func LoadDefault() (*Store, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return Load(path)
}

// Path returns the file the store saves to.
func (s *Store) Path() string {
	return s.path
}

// Save writes the store to disk.
// Performs an atomic write to prevent corruption on crash.
func (s *Store) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	data, err := yaml.Marshal(&s.doc)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fileMutex.Lock()
	defer fileMutex.Unlock()

	// The file holds WiFi passwords, so directory and file are user-only.
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	header := []byte(`# wifiportal state file
# Networks joined through the configuration portal and custom parameter values.
# Contains WiFi passwords: keep this file private.

`)
	data = append(header, data...)

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

// RememberNetwork records a successful join, moving ssid to the front of
// the network list.
func (s *Store) RememberNetwork(ssid, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nets := make([]Network, 0, len(s.doc.Networks)+1)
	nets = append(nets, Network{SSID: ssid, Password: password, LastConnected: s.now().UTC()})
	for _, n := range s.doc.Networks {
		if n.SSID != ssid {
			nets = append(nets, n)
		}
	}
	s.doc.Networks = nets
}

// ForgetNetwork removes ssid and reports whether it was known.
func (s *Store) ForgetNetwork(ssid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.doc.Networks {
		if n.SSID == ssid {
			s.doc.Networks = append(s.doc.Networks[:i], s.doc.Networks[i+1:]...)
			return true
		}
	}
	return false
}

// Networks returns the known networks, most recently joined first.
func (s *Store) Networks() []Network {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Network(nil), s.doc.Networks...)
}

// SetParams stores parameter values, replacing existing ones with the
// same id.
func (s *Store) SetParams(values map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, v := range values {
		s.doc.Params[id] = v
	}
}

// Params returns a copy of the stored parameter values.
func (s *Store) Params() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.doc.Params))
	for id, v := range s.doc.Params {
		out[id] = v
	}
	return out
}

// Preferences returns a copy of the portal preferences.
func (s *Store) Preferences() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.doc.Preferences
}

// SetPreferences replaces the portal preferences.
func (s *Store) SetPreferences(p Preferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Preferences = &p
}

// Reset forgets every network and parameter value. Preferences are kept.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Networks = nil
	s.doc.Params = make(map[string]string)
}
