package ui

import (
	"errors"
	"strings"
	"testing"

	"github.com/muurk/wifiportal/internal/portalclient"
)

func TestSignalBars(t *testing.T) {
	tests := []struct {
		rssi int32
		want string
	}{
		{-40, "▮▮▮▮"},
		{-55, "▮▮▮▯"},
		{-70, "▮▮▯▯"},
		{-90, "▮▯▯▯"},
		{-100, "▯▯▯▯"},
	}
	for _, tt := range tests {
		if got := SignalBars(tt.rssi); got != tt.want {
			t.Errorf("SignalBars(%d) = %q, want %q", tt.rssi, got, tt.want)
		}
	}
}

func TestRenderNetworks(t *testing.T) {
	out := RenderNetworks([]portalclient.Network{
		{SSID: "home", RSSI: -42, EncryptionType: 3},
		{SSID: "cafe", RSSI: -80, EncryptionType: 0},
	}, 80)

	for _, want := range []string{"SSID", "home", "cafe", "-42", "-80", "open"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if got := strings.Count(out, "\n"); got != 2 {
		t.Errorf("expected header plus two rows, got %d line breaks", got)
	}
}

func TestRenderNetworksEmpty(t *testing.T) {
	if out := RenderNetworks(nil, 80); !strings.Contains(out, "No networks found") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRenderNetworksTruncatesLongSSID(t *testing.T) {
	long := strings.Repeat("x", 120)
	out := RenderNetworks([]portalclient.Network{{SSID: long, RSSI: -50}}, 60)
	if strings.Contains(out, long) {
		t.Error("long SSID was not truncated")
	}
	if !strings.Contains(out, "…") {
		t.Error("truncated SSID has no ellipsis")
	}
}

func TestRenderStatus(t *testing.T) {
	tests := []struct {
		name   string
		status portalclient.Status
		want   []string
	}{
		{
			name:   "connected",
			status: portalclient.Status{Status: "Connected", IP: "10.0.0.5", LastResult: 3},
			want:   []string{"SUCCESS", "Device connected", "10.0.0.5"},
		},
		{
			name: "disconnected with params",
			status: portalclient.Status{
				Status: "Idle",
				IP:     "0.0.0.0",
				Params: []portalclient.ParamSummary{{ID: "mqtt", Label: "MQTT host", Value: "broker.lan"}},
			},
			want: []string{"WARNING", "Device not connected", "MQTT host", "broker.lan"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := RenderStatus(&tt.status, 80)
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestRenderParams(t *testing.T) {
	out := RenderParams([]portalclient.Param{
		{ID: "mqtt_host", Label: "MQTT host", Value: "broker.lan", Type: "text"},
		{ID: "port", Label: "Port", Type: "number"},
	})
	for _, want := range []string{"mqtt_host", "broker.lan", "number", "(empty)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if out := RenderParams(nil); !strings.Contains(out, "No custom parameters") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestResultRender(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   []string
	}{
		{
			name:   "success",
			result: NewSuccessResult("Connected", map[string]string{"SSID": "home"}),
			want:   []string{SuccessMarker, "SUCCESS", "Connected", "SSID:", "home"},
		},
		{
			name:   "failure",
			result: NewFailureResult("Connect failed", errors.New("timeout"), []string{"Check the password"}),
			want:   []string{FailureMarker, "FAILED", "Error: timeout", "Troubleshooting:", "Check the password"},
		},
		{
			name:   "warning",
			result: NewWarningResult("Portal open", nil).AddDetail("AP", "setup"),
			want:   []string{"WARNING", "AP:", "setup"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.result.SetWidth(80).Render()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestHeaderSortsParams(t *testing.T) {
	out := NewHeader("Scan", "wifiportal client scan", map[string]string{
		"Portal":  "http://192.168.4.1",
		"Timeout": "30s",
	}).SetWidth(80).Render()

	if !strings.Contains(out, "SCAN") {
		t.Errorf("title not upper-cased:\n%s", out)
	}
	if strings.Index(out, "Portal:") > strings.Index(out, "Timeout:") {
		t.Errorf("params not sorted:\n%s", out)
	}
}
