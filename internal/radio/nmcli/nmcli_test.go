package nmcli

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/muurk/wifiportal/internal/radio"
)

// fakeRunner answers nmcli invocations from canned output keyed by the
// joined argument list.
// Invocations listed in hang block until their context ends, the way
// nmcli --wait does on an unreachable network; their return is signalled
// on the channel.
type fakeRunner struct {
	mu      sync.Mutex
	outputs map[string]string
	errs    map[string]error
	hang    map[string]chan struct{}
	calls   []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{outputs: map[string]string{}, errs: map[string]error{}, hang: map[string]chan struct{}{}}
}

func (f *fakeRunner) run(ctx context.Context, _ string, args ...string) (string, error) {
	key := strings.Join(args, " ")
	f.mu.Lock()
	f.calls = append(f.calls, key)
	released, hangs := f.hang[key]
	out, err := f.outputs[key], f.errs[key]
	f.mu.Unlock()

	if hangs {
		<-ctx.Done()
		close(released)
		return "", &CommandError{Args: args, ExitCode: -1, Err: ctx.Err()}
	}
	return out, err
}

func (f *fakeRunner) called(prefix string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func newTestDriver(f *fakeRunner) *Driver {
	d := New(DefaultConfig(), nil)
	d.run = f.run
	return d
}

func TestSplitTerse(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"home:80:WPA2", []string{"home", "80", "WPA2"}},
		{`my\:net:45:`, []string{"my:net", "45", ""}},
		{`back\\slash:10:WPA1 WPA2`, []string{`back\slash`, "10", "WPA1 WPA2"}},
		{"", nil},
	}

	for _, tt := range tests {
		got := splitTerse(tt.line)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
			t.Errorf("splitTerse(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestParseScan(t *testing.T) {
	out := "home:80:WPA2\n:60:WPA2\ncafe:40:--\nlegacy:20:WPA1 WPA2\nnew:90:WPA3\n"
	nets := parseScan(out)

	if len(nets) != 4 {
		t.Fatalf("parseScan() returned %d networks, want 4 (hidden skipped)", len(nets))
	}
	want := []radio.Network{
		{SSID: "home", RSSI: -60, Encryption: radio.EncryptionWPA2},
		{SSID: "cafe", RSSI: -80, Encryption: radio.EncryptionOpen},
		{SSID: "legacy", RSSI: -90, Encryption: radio.EncryptionWPAWPA2},
		{SSID: "new", RSSI: -55, Encryption: radio.EncryptionWPA3},
	}
	for i := range want {
		if nets[i] != want[i] {
			t.Errorf("nets[%d] = %+v, want %+v", i, nets[i], want[i])
		}
	}
}

func TestParseDeviceState(t *testing.T) {
	tests := []struct {
		out  string
		want int
	}{
		{"GENERAL.STATE:100 (connected)\n", 100},
		{"GENERAL.STATE:30 (disconnected)", 30},
		{"garbage", 0},
	}
	for _, tt := range tests {
		if got := parseDeviceState(tt.out); got != tt.want {
			t.Errorf("parseDeviceState(%q) = %d, want %d", tt.out, got, tt.want)
		}
	}
}

func TestClassifyConnectError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want radio.Status
	}{
		{"Success", nil, radio.StatusConnected},
		{"Unknown SSID", &CommandError{Stderr: "Error: No network with SSID 'ghost' found."}, radio.StatusNoSSIDAvail},
		{"Bad secrets", &CommandError{Stderr: "Error: Connection activation failed: Secrets were required, but not provided."}, radio.StatusConnectFailed},
		{"Plain error", errors.New("exec: not started"), radio.StatusConnectFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyConnectError(tt.err); got != tt.want {
				t.Errorf("classifyConnectError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBeginRecordsOutcome(t *testing.T) {
	f := newFakeRunner()
	f.outputs["-t -f GENERAL.STATE device show wlan0"] = "GENERAL.STATE:30 (disconnected)\n"
	f.errs["--wait 30 device wifi connect ghost password hunter22 ifname wlan0"] =
		&CommandError{Stderr: "Error: No network with SSID 'ghost' found."}
	d := newTestDriver(f)

	if err := d.Begin("ghost", "hunter22"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		d.mu.Lock()
		done := d.inFlight == nil
		d.mu.Unlock()
		if done || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if got := d.Status(); got != radio.StatusNoSSIDAvail {
		t.Errorf("Status() = %v, want no-ssid-avail", got)
	}
}

func waitIdle(t *testing.T, d *Driver) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		d.mu.Lock()
		done := d.inFlight == nil
		d.mu.Unlock()
		if done {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("connection attempt still in flight")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestBeginPreemptsUnfinishedAttempt(t *testing.T) {
	f := newFakeRunner()
	f.outputs["-t -f GENERAL.STATE device show wlan0"] = "GENERAL.STATE:100 (connected)\n"
	abandoned := make(chan struct{})
	f.hang["--wait 30 connection up id home"] = abandoned
	d := newTestDriver(f)
	d.storedSSID = "home"

	if err := d.Reconnect(); err != nil {
		t.Fatalf("Reconnect() error = %v", err)
	}
	if err := d.Begin("office", "secret123"); err != nil {
		t.Fatalf("Begin() while a reconnect hangs error = %v, want nil", err)
	}

	select {
	case <-abandoned:
	case <-time.After(2 * time.Second):
		t.Fatal("hanging reconnect was not cancelled")
	}
	waitIdle(t, d)

	if !f.called("--wait 30 device wifi connect office password secret123 ifname wlan0") {
		t.Error("office was never attempted")
	}
	if got := d.Status(); got != radio.StatusConnected {
		t.Errorf("Status() = %v, want connected", got)
	}
	if got := d.StoredSSID(); got != "office" {
		t.Errorf("StoredSSID() = %q, want office", got)
	}
}

func TestDisconnectAbandonsAttempt(t *testing.T) {
	f := newFakeRunner()
	abandoned := make(chan struct{})
	f.hang["--wait 30 device wifi connect ghost ifname wlan0"] = abandoned
	d := newTestDriver(f)
	d.storedSSID = "home"

	if err := d.Begin("ghost", ""); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := d.Disconnect(false); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}

	select {
	case <-abandoned:
	case <-time.After(2 * time.Second):
		t.Fatal("attempt kept running after Disconnect")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inFlight != nil {
		t.Error("attempt still recorded as in flight")
	}
	if d.lastResult != radio.StatusDisconnected {
		t.Errorf("lastResult = %v, want disconnected", d.lastResult)
	}
}

func TestStoredSSIDPicksLatestWirelessProfile(t *testing.T) {
	f := newFakeRunner()
	f.outputs["-t -f NAME,TYPE,TIMESTAMP connection show"] = strings.Join([]string{
		"Wired connection 1:802-3-ethernet:1700000300",
		"old-net:802-11-wireless:1700000100",
		"wifiportal-ap:802-11-wireless:1700000400",
		"home:802-11-wireless:1700000200",
	}, "\n")
	d := newTestDriver(f)

	if got := d.StoredSSID(); got != "home" {
		t.Errorf("StoredSSID() = %q, want home", got)
	}
}

func TestSoftAPOpenAndSecured(t *testing.T) {
	f := newFakeRunner()
	d := newTestDriver(f)

	if err := d.SoftAP("ESP_Config", ""); err != nil {
		t.Fatalf("SoftAP() error = %v", err)
	}
	if f.called("connection add type wifi ifname wlan0 con-name wifiportal-ap autoconnect no ssid ESP_Config 802-11-wireless.mode ap ipv4.method shared ipv4.addresses 192.168.4.1/24 wifi-sec") {
		t.Error("open access point should not configure security")
	}

	if err := d.SoftAPConfig(radio.IPConfig{IP: net.IPv4(10, 9, 8, 1), Netmask: net.CIDRMask(16, 32)}); err != nil {
		t.Fatalf("SoftAPConfig() error = %v", err)
	}
	if err := d.SoftAP("ESP_Config", "password1"); err != nil {
		t.Fatalf("SoftAP() error = %v", err)
	}
	if !f.called("connection add type wifi ifname wlan0 con-name wifiportal-ap autoconnect no ssid ESP_Config 802-11-wireless.mode ap ipv4.method shared ipv4.addresses 10.9.8.1/16 wifi-sec.key-mgmt wpa-psk wifi-sec.psk password1") {
		t.Error("secured access point should configure wpa-psk with the configured address")
	}
}

func TestLocalIPAndRSSI(t *testing.T) {
	f := newFakeRunner()
	f.outputs["-g IP4.ADDRESS device show wlan0"] = "192.168.1.50/24\n"
	f.outputs["-t -f IN-USE,SIGNAL device wifi list ifname wlan0 --rescan no"] = " :30\n*:70\n"
	d := newTestDriver(f)

	if ip := d.LocalIP(); !ip.Equal(net.IPv4(192, 168, 1, 50)) {
		t.Errorf("LocalIP() = %v, want 192.168.1.50", ip)
	}
	if rssi := d.RSSI(); rssi != -65 {
		t.Errorf("RSSI() = %d, want -65", rssi)
	}
}

func TestRedact(t *testing.T) {
	got := redact([]string{"device", "wifi", "connect", "home", "password", "s3cret"})
	if got[5] != "***" {
		t.Errorf("redact() left password visible: %v", got)
	}
}
