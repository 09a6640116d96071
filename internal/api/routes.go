package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/params"
	"github.com/muurk/wifiportal/internal/wifimanager"
)

// ResultBody carries a success message.
type ResultBody struct {
	Result string `json:"result"`
}

// ErrorBody carries a failure message.
type ErrorBody struct {
	Error string `json:"error"`
}

// ParamSummary is a parameter as listed in the status document.
type ParamSummary struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// StatusBody is the status document.
type StatusBody struct {
	Status     string         `json:"status"`
	IP         string         `json:"ip"`
	LastResult uint8          `json:"lastResult"`
	Params     []ParamSummary `json:"params"`
}

func jsonResponse(status int, body any) Response {
	return Response{Status: status, Body: body}
}

func errorResponse(status int, msg string) Response {
	return jsonResponse(status, ErrorBody{Error: msg})
}

func (h *Handler) root(req Request) Response {
	body := h.statusBody()
	if h.page != nil && h.core.HTMLEnabled() {
		return Response{
			Status:      http.StatusOK,
			Raw:         h.page(body),
			ContentType: "text/html; charset=utf-8",
		}
	}
	return jsonResponse(http.StatusOK, body)
}

func (h *Handler) scan(Request) Response {
	nets := h.core.ScanNetworks(true)
	if nets == nil {
		nets = []wifimanager.ScanResult{}
	}
	return jsonResponse(http.StatusOK, nets)
}

func (h *Handler) connect(req Request) Response {
	ssid, hasSSID := formValue(req, "ssid")
	password, hasPassword := formValue(req, "password")
	if !hasSSID || !hasPassword {
		return errorResponse(http.StatusBadRequest, "Missing parameters")
	}

	h.logger.Info("portal client requested connection", zap.String("ssid", ssid))
	if h.core.ConnectToNetwork(ssid, password) {
		return jsonResponse(http.StatusOK, ResultBody{Result: "Connected"})
	}
	return jsonResponse(http.StatusInternalServerError, ResultBody{Result: "Connection Failed"})
}

func (h *Handler) reset(Request) Response {
	h.core.ResetSettings()
	return jsonResponse(http.StatusOK, ResultBody{Result: "Settings reset"})
}

func (h *Handler) status(Request) Response {
	return jsonResponse(http.StatusOK, h.statusBody())
}

func (h *Handler) statusBody() StatusBody {
	snaps := h.core.Parameters()
	summaries := make([]ParamSummary, 0, len(snaps))
	for _, s := range snaps {
		summaries = append(summaries, ParamSummary{ID: s.ID, Label: s.Label, Value: s.Value})
	}
	return StatusBody{
		Status:     h.core.ConnectionStatus(),
		IP:         h.core.LocalIP(),
		LastResult: h.core.LastConnectResult(),
		Params:     summaries,
	}
}

func (h *Handler) params(Request) Response {
	snaps := h.core.Parameters()
	if snaps == nil {
		snaps = []params.Snapshot{}
	}
	return jsonResponse(http.StatusOK, snaps)
}

func (h *Handler) updateParams(req Request) Response {
	values := make(map[string]string, len(req.Form))
	for k, v := range req.Form {
		if len(v) > 0 {
			values[k] = v[0]
		}
	}
	if h.core.UpdateParameters(values) > 0 {
		return jsonResponse(http.StatusOK, ResultBody{Result: "Custom fields updated"})
	}
	return errorResponse(http.StatusBadRequest, "No parameters updated")
}

func (h *Handler) deviceInfo(Request) Response {
	return jsonResponse(http.StatusOK, h.core.DeviceInfo())
}

func formValue(req Request, key string) (string, bool) {
	v, ok := req.Form[key]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}
