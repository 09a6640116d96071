package api

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/muurk/wifiportal/internal/params"
	"github.com/muurk/wifiportal/internal/wifimanager"
)

type stubCore struct {
	scans      []wifimanager.ScanResult
	connectOK  bool
	connected  []string
	resets     int
	status     string
	ip         string
	lastResult uint8
	reg        *params.Registry
	auth       wifimanager.AuthConfig
	html       bool
	info       wifimanager.DeviceInfo
}

func newStubCore() *stubCore {
	reg := params.NewRegistry()
	reg.Add(params.New("mqtt_host", "MQTT host", "broker.local", params.TypeText))
	reg.Add(params.New("port", "Port", "1883", params.TypeNumber))
	return &stubCore{status: "Idle", ip: "0.0.0.0", reg: reg}
}

func (s *stubCore) ScanNetworks(bool) []wifimanager.ScanResult { return s.scans }
func (s *stubCore) ConnectToNetwork(ssid, _ string) bool {
	s.connected = append(s.connected, ssid)
	return s.connectOK
}
func (s *stubCore) ResetSettings() { s.resets++ }
func (s *stubCore) ConnectionStatus() string { return s.status }
func (s *stubCore) LocalIP() string { return s.ip }
func (s *stubCore) LastConnectResult() uint8 { return s.lastResult }
func (s *stubCore) Parameters() []params.Snapshot { return s.reg.Snapshots() }
func (s *stubCore) UpdateParameters(v map[string]string) int {
	return len(s.reg.Update(v).Applied)
}
func (s *stubCore) DeviceInfo() wifimanager.DeviceInfo { return s.info }
func (s *stubCore) AuthCredentials() wifimanager.AuthConfig { return s.auth }
func (s *stubCore) HTMLEnabled() bool { return s.html }

func post(path string, form url.Values) Request {
	return Request{Method: http.MethodPost, Path: path, Form: form}
}

func get(path string) Request {
	return Request{Method: http.MethodGet, Path: path}
}

func TestConnect(t *testing.T) {
	tests := []struct {
		name       string
		req        Request
		connectOK  bool
		wantStatus int
		wantBody   any
	}{
		{
			name:       "success",
			req:        post("/connect", url.Values{"ssid": {"home"}, "password": {"secret123"}}),
			connectOK:  true,
			wantStatus: http.StatusOK,
			wantBody:   ResultBody{Result: "Connected"},
		},
		{
			name:       "failure",
			req:        post("/connect", url.Values{"ssid": {"home"}, "password": {"wrong"}}),
			wantStatus: http.StatusInternalServerError,
			wantBody:   ResultBody{Result: "Connection Failed"},
		},
		{
			name:       "empty password is present",
			req:        post("/connect", url.Values{"ssid": {"open"}, "password": {""}}),
			connectOK:  true,
			wantStatus: http.StatusOK,
			wantBody:   ResultBody{Result: "Connected"},
		},
		{
			name:       "missing password",
			req:        post("/connect", url.Values{"ssid": {"home"}}),
			wantStatus: http.StatusBadRequest,
			wantBody:   ErrorBody{Error: "Missing parameters"},
		},
		{
			name:       "missing ssid",
			req:        post("/connect", url.Values{"password": {"secret123"}}),
			wantStatus: http.StatusBadRequest,
			wantBody:   ErrorBody{Error: "Missing parameters"},
		},
		{
			name:       "wrong method",
			req:        get("/connect"),
			wantStatus: http.StatusMethodNotAllowed,
			wantBody:   ErrorBody{Error: "Method Not Allowed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core := newStubCore()
			core.connectOK = tt.connectOK
			h := NewHandler(core)

			resp := h.Dispatch(tt.req)
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.Status, tt.wantStatus)
			}
			if resp.Body != tt.wantBody {
				t.Errorf("body = %#v, want %#v", resp.Body, tt.wantBody)
			}
		})
	}
}

func TestConnectOnlyCalledWithBothFields(t *testing.T) {
	core := newStubCore()
	h := NewHandler(core)
	h.Dispatch(post("/connect", url.Values{"ssid": {"home"}}))
	if len(core.connected) != 0 {
		t.Fatalf("ConnectToNetwork called %d times for incomplete form", len(core.connected))
	}
}

func TestUpdateParams(t *testing.T) {
	tests := []struct {
		name       string
		form       url.Values
		wantStatus int
		wantPort   string
	}{
		{"applied", url.Values{"port": {"8883"}}, http.StatusOK, "8883"},
		{"unknown id", url.Values{"nope": {"1"}}, http.StatusBadRequest, "1883"},
		{"rejected value", url.Values{"port": {"abc"}}, http.StatusBadRequest, "1883"},
		{"empty form", url.Values{}, http.StatusBadRequest, "1883"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core := newStubCore()
			h := NewHandler(core)

			resp := h.Dispatch(post("/update_params", tt.form))
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.Status, tt.wantStatus)
			}
			if p, _ := core.reg.Get("port"); p.Value() != tt.wantPort {
				t.Errorf("port = %q, want %q", p.Value(), tt.wantPort)
			}
		})
	}
}

func TestStatusDocument(t *testing.T) {
	core := newStubCore()
	core.status = "Connected"
	core.ip = "10.0.0.42"
	core.lastResult = 3

	resp := NewHandler(core).Dispatch(get("/status_json"))
	body, ok := resp.Body.(StatusBody)
	if !ok {
		t.Fatalf("body type = %T", resp.Body)
	}
	if body.Status != "Connected" || body.IP != "10.0.0.42" || body.LastResult != 3 {
		t.Errorf("unexpected status body %+v", body)
	}
	if len(body.Params) != 2 || body.Params[0].ID != "mqtt_host" || body.Params[0].Value != "broker.local" {
		t.Errorf("unexpected params %+v", body.Params)
	}
}

func TestRootServesHTMLWhenEnabled(t *testing.T) {
	core := newStubCore()
	renderer := func(s StatusBody) []byte { return []byte("<p>" + s.Status + "</p>") }

	resp := NewHandler(core, WithPageRenderer(renderer)).Dispatch(get("/"))
	if _, ok := resp.Body.(StatusBody); !ok || resp.Raw != nil {
		t.Fatalf("HTML disabled: got raw=%q body=%T", resp.Raw, resp.Body)
	}

	core.html = true
	resp = NewHandler(core, WithPageRenderer(renderer)).Dispatch(get("/"))
	if string(resp.Raw) != "<p>Idle</p>" {
		t.Errorf("raw = %q", resp.Raw)
	}
	if resp.ContentType != "text/html; charset=utf-8" {
		t.Errorf("content type = %q", resp.ContentType)
	}
}

func TestSimpleRoutes(t *testing.T) {
	core := newStubCore()
	core.scans = []wifimanager.ScanResult{{SSID: "home", RSSI: -40, EncryptionType: 3}}
	core.info = wifimanager.DeviceInfo{UptimeMs: 1500, RSSI: -40, IP: "10.0.0.42"}
	h := NewHandler(core)

	resp := h.Dispatch(get("/scan"))
	if nets, ok := resp.Body.([]wifimanager.ScanResult); !ok || len(nets) != 1 || nets[0].SSID != "home" {
		t.Errorf("scan body = %#v", resp.Body)
	}

	core.scans = nil
	resp = h.Dispatch(get("/scan"))
	if nets, ok := resp.Body.([]wifimanager.ScanResult); !ok || nets == nil {
		t.Errorf("empty scan must be a non-nil list, got %#v", resp.Body)
	}

	resp = h.Dispatch(get("/reset"))
	if resp.Status != http.StatusOK || resp.Body != (ResultBody{Result: "Settings reset"}) || core.resets != 1 {
		t.Errorf("reset: status=%d body=%#v resets=%d", resp.Status, resp.Body, core.resets)
	}

	resp = h.Dispatch(get("/device_info"))
	if resp.Body != core.info {
		t.Errorf("device_info body = %#v", resp.Body)
	}

	resp = h.Dispatch(get("/params_json"))
	if snaps, ok := resp.Body.([]params.Snapshot); !ok || len(snaps) != 2 || snaps[1].Type != params.TypeNumber {
		t.Errorf("params_json body = %#v", resp.Body)
	}

	resp = h.Dispatch(get("/missing"))
	if resp.Status != http.StatusNotFound || resp.Body != (ErrorBody{Error: "Not found"}) {
		t.Errorf("not found: status=%d body=%#v", resp.Status, resp.Body)
	}
}

func TestAuthentication(t *testing.T) {
	core := newStubCore()
	core.auth = wifimanager.AuthConfig{Enabled: true, Username: "admin", Password: "hunter22"}
	h := NewHandler(core)

	tests := []struct {
		name       string
		req        Request
		wantStatus int
	}{
		{"no credentials", get("/status_json"), http.StatusUnauthorized},
		{"wrong password", Request{Method: http.MethodGet, Path: "/status_json", HasAuth: true, Username: "admin", Password: "nope"}, http.StatusUnauthorized},
		{"valid", Request{Method: http.MethodGet, Path: "/status_json", HasAuth: true, Username: "admin", Password: "hunter22"}, http.StatusOK},
		{"not found skips auth", get("/missing"), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.Dispatch(tt.req)
			if resp.Status != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.Status, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusUnauthorized {
				if got := resp.Header["WWW-Authenticate"]; got != `Basic realm="wifiportal"` {
					t.Errorf("challenge = %q", got)
				}
			}
		})
	}
}
