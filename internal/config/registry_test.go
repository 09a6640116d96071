package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGetConfigDir(t *testing.T) {
	if runtime.GOOS != "windows" && runtime.GOOS != "darwin" {
		xdg := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", xdg)

		configDir, err := GetConfigDir()
		if err != nil {
			t.Fatalf("GetConfigDir() error = %v", err)
		}
		if want := filepath.Join(xdg, "wifiportal"); configDir != want {
			t.Errorf("GetConfigDir() = %v, want %v", configDir, want)
		}
		return
	}

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if !strings.Contains(configDir, "wifiportal") {
		t.Errorf("GetConfigDir() = %v, should contain 'wifiportal'", configDir)
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(s.Networks()) != 0 || len(s.Params()) != 0 {
		t.Errorf("new store not empty: networks=%v params=%v", s.Networks(), s.Params())
	}
	if p := s.Preferences(); p.PortalTimeout != 180 || p.ConnectTimeout != 10 {
		t.Errorf("Preferences() = %+v, want defaults", p)
	}
	if s.Path() != path {
		t.Errorf("Path() = %v, want %v", s.Path(), path)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	s := NewStore(path)
	s.RememberNetwork("home", "secret123")
	s.SetParams(map[string]string{"mqtt_host": "broker.local", "port": "1883"})
	s.SetPreferences(Preferences{APName: "sensor-setup", Hostname: "sensor-1", PortalTimeout: 60, ConnectTimeout: 15})

	if err := s.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("file mode = %v, want 0600", info.Mode().Perm())
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	nets := loaded.Networks()
	if len(nets) != 1 || nets[0].SSID != "home" || nets[0].Password != "secret123" {
		t.Errorf("Networks() = %+v", nets)
	}
	if got := loaded.Params()["mqtt_host"]; got != "broker.local" {
		t.Errorf("Params()[mqtt_host] = %v, want broker.local", got)
	}
	if p := loaded.Preferences(); p.APName != "sensor-setup" || p.PortalTimeout != 60 {
		t.Errorf("Preferences() = %+v", p)
	}
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("version: 2\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config version") {
		t.Errorf("Load() error = %v, want version error", err)
	}
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("version: [\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() should fail on invalid YAML")
	}
}

func TestLoadFillsMissingSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0600); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	s.SetParams(map[string]string{"a": "1"})
	if s.Preferences().ConnectTimeout != 10 {
		t.Errorf("Preferences() = %+v, want defaults", s.Preferences())
	}
}

func TestRememberNetworkOrdering(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "config.yaml"))
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	s.RememberNetwork("a", "pw-a-1234")
	s.RememberNetwork("b", "pw-b-1234")
	clock = clock.Add(time.Hour)
	s.RememberNetwork("a", "pw-a-5678")

	nets := s.Networks()
	if len(nets) != 2 {
		t.Fatalf("Networks() = %+v, want 2 entries", nets)
	}
	if nets[0].SSID != "a" || nets[0].Password != "pw-a-5678" || !nets[0].LastConnected.Equal(clock) {
		t.Errorf("Networks()[0] = %+v", nets[0])
	}
	if nets[1].SSID != "b" {
		t.Errorf("Networks()[1] = %+v", nets[1])
	}

	if !s.ForgetNetwork("b") {
		t.Error("ForgetNetwork(b) = false")
	}
	if s.ForgetNetwork("b") {
		t.Error("ForgetNetwork(b) twice = true")
	}
	if len(s.Networks()) != 1 {
		t.Errorf("Networks() = %+v after forget", s.Networks())
	}
}

func TestReset(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "config.yaml"))
	s.RememberNetwork("home", "secret123")
	s.SetParams(map[string]string{"a": "1"})
	s.SetPreferences(Preferences{APName: "keep-me"})

	s.Reset()
	if len(s.Networks()) != 0 || len(s.Params()) != 0 {
		t.Errorf("Reset left networks=%v params=%v", s.Networks(), s.Params())
	}
	if s.Preferences().APName != "keep-me" {
		t.Error("Reset dropped preferences")
	}
}

func TestConcurrentSavesKeepLatestState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	s := NewStore(path)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.RememberNetwork(fmt.Sprintf("net-%d", i), "password1")
			if err := s.Save(); err != nil {
				t.Errorf("Save() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := len(loaded.Networks()); got != writers {
		t.Errorf("saved file has %d networks, want %d", got, writers)
	}
}
