package sim

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/muurk/wifiportal/internal/radio"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time          { return c.t }
func (c *stepClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newRadio(t *testing.T) (*Radio, *stepClock) {
	t.Helper()
	clk := &stepClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := New(WithClock(clk.now), WithLatency(time.Second))
	r.AddNetwork("home", "secret123", -50)
	r.AddNetwork("cafe", "", -70)
	if err := r.SetMode(radio.ModeSTA); err != nil {
		t.Fatalf("SetMode() error = %v", err)
	}
	return r, clk
}

func TestBeginOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		ssid     string
		password string
		want     radio.Status
	}{
		{"Known network, right password", "home", "secret123", radio.StatusConnected},
		{"Known network, wrong password", "home", "nope", radio.StatusConnectFailed},
		{"Open network", "cafe", "", radio.StatusConnected},
		{"Unknown network", "ghost-network", "whatever", radio.StatusNoSSIDAvail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, clk := newRadio(t)
			if err := r.Begin(tt.ssid, tt.password); err != nil {
				t.Fatalf("Begin() error = %v", err)
			}
			if got := r.Status(); got != radio.StatusDisconnected {
				t.Errorf("Status() before latency = %v, want disconnected", got)
			}
			clk.advance(time.Second)
			if got := r.Status(); got != tt.want {
				t.Errorf("Status() = %v, want %v", got, tt.want)
			}
			if r.StoredSSID() != tt.ssid {
				t.Errorf("StoredSSID() = %q, want %q", r.StoredSSID(), tt.ssid)
			}
		})
	}
}

func TestBeginRequiresStation(t *testing.T) {
	r := New()
	if err := r.Begin("home", "x"); err == nil {
		t.Error("Begin() in ModeOff should fail")
	}
}

func TestReconnectUsesStoredCredentials(t *testing.T) {
	clk := &stepClock{t: time.Unix(0, 0)}
	r := New(WithClock(clk.now), WithLatency(0), WithStoredCredentials("home", "secret123"))
	r.AddNetwork("home", "secret123", -40)
	_ = r.SetMode(radio.ModeSTA)

	if err := r.Reconnect(); err != nil {
		t.Fatalf("Reconnect() error = %v", err)
	}
	if got := r.Status(); got != radio.StatusConnected {
		t.Fatalf("Status() = %v, want connected", got)
	}
	if r.RSSI() != -40 {
		t.Errorf("RSSI() = %d, want -40", r.RSSI())
	}
	if r.LocalIP() == nil {
		t.Error("LocalIP() = nil while connected")
	}

	_ = r.Disconnect(true)
	if r.StoredSSID() != "" {
		t.Error("Disconnect(true) kept stored SSID")
	}
	if err := r.Reconnect(); err == nil {
		t.Error("Reconnect() without stored network should fail")
	}
}

func TestSoftAP(t *testing.T) {
	r := New()
	if err := r.SoftAP("ESP_Config", ""); err == nil {
		t.Fatal("SoftAP() in ModeOff should fail")
	}

	_ = r.SetMode(radio.ModeAPSTA)
	if err := r.SoftAP("ESP_Config", "1234"); err == nil {
		t.Error("SoftAP() should reject a short password")
	}
	if err := r.SoftAP("ESP_Config", ""); err != nil {
		t.Fatalf("SoftAP() open error = %v", err)
	}
	ssid, pass, up := r.APState()
	if ssid != "ESP_Config" || pass != "" || !up {
		t.Errorf("APState() = %q, %q, %v", ssid, pass, up)
	}

	ip := net.IPv4(10, 1, 1, 1)
	if err := r.SoftAPConfig(radio.IPConfig{IP: ip}); err != nil {
		t.Fatalf("SoftAPConfig() error = %v", err)
	}
	if !r.SoftAPIP().Equal(ip) {
		t.Errorf("SoftAPIP() = %v, want %v", r.SoftAPIP(), ip)
	}

	_ = r.SetMode(radio.ModeSTA)
	if _, _, up := r.APState(); up {
		t.Error("leaving AP mode should take the access point down")
	}
}

func TestScanCaching(t *testing.T) {
	r, _ := newRadio(t)

	nets, err := r.Scan(true)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(nets) != 2 || nets[0].SSID != "home" {
		t.Fatalf("Scan() = %+v, want home first", nets)
	}
	if nets[1].Encryption != radio.EncryptionOpen {
		t.Errorf("cafe encryption = %d, want open", nets[1].Encryption)
	}

	_, _ = r.Scan(false)
	if r.ScanCount() != 1 {
		t.Errorf("ScanCount() = %d after cached scan, want 1", r.ScanCount())
	}
	_, _ = r.Scan(true)
	if r.ScanCount() != 2 {
		t.Errorf("ScanCount() = %d after forced scan, want 2", r.ScanCount())
	}

	boom := errors.New("radio busy")
	r.FailScans(boom)
	if _, err := r.Scan(true); !errors.Is(err, boom) {
		t.Errorf("Scan() error = %v, want %v", err, boom)
	}
}

func TestRemoveNetworkDropsLink(t *testing.T) {
	r, clk := newRadio(t)
	_ = r.Begin("home", "secret123")
	clk.advance(time.Second)
	if r.Status() != radio.StatusConnected {
		t.Fatal("expected connection")
	}

	r.RemoveNetwork("home")
	if got := r.Status(); got != radio.StatusConnectionLost {
		t.Errorf("Status() = %v, want connection-lost", got)
	}
}
