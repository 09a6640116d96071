package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/wifiportal/internal/portalclient"
)

// Signal thresholds in dBm.
const (
	signalGood = -60
	signalFair = -75
)

// SignalBars draws rssi as four bars.
func SignalBars(rssi int32) string {
	var n int
	switch {
	case rssi >= -50:
		n = 4
	case rssi >= signalGood:
		n = 3
	case rssi >= signalFair:
		n = 2
	case rssi > -100:
		n = 1
	}
	return strings.Repeat("▮", n) + strings.Repeat("▯", 4-n)
}

func signalStyle(rssi int32) lipgloss.Style {
	switch {
	case rssi >= signalGood:
		return lipgloss.NewStyle().Foreground(SuccessColor)
	case rssi >= signalFair:
		return lipgloss.NewStyle().Foreground(WarningColor)
	default:
		return lipgloss.NewStyle().Foreground(ErrorColor)
	}
}

// RenderNetworks renders a scan list, strongest first as the portal sent it.
func RenderNetworks(networks []portalclient.Network, width int) string {
	if len(networks) == 0 {
		return TableMutedStyle.Render("  No networks found")
	}

	ssidWidth := 8
	for _, n := range networks {
		if w := lipgloss.Width(n.SSID); w > ssidWidth {
			ssidWidth = w
		}
	}
	if limit := clampWidth(width) - 30; ssidWidth > limit {
		ssidWidth = limit
	}

	ssidCol := lipgloss.NewStyle().Width(ssidWidth + 2)
	lines := []string{
		TableHeaderStyle.Render(fmt.Sprintf("  %s%-10s%-8s%s", ssidCol.Render("SSID"), "SIGNAL", "RSSI", "SECURITY")),
	}
	for _, n := range networks {
		security := "open"
		if !n.Open() {
			security = LockMarker
		}
		ssid := n.SSID
		if lipgloss.Width(ssid) > ssidWidth {
			ssid = truncate(ssid, ssidWidth)
		}
		lines = append(lines, "  "+
			TableCellStyle.Inherit(ssidCol).Render(ssid)+
			signalStyle(n.RSSI).Width(10).Render(SignalBars(n.RSSI))+
			TableMutedStyle.Width(8).Render(fmt.Sprintf("%d", n.RSSI))+
			TableCellStyle.Render(security))
	}
	return strings.Join(lines, "\n")
}

// RenderStatus renders a portal status document as a result box.
func RenderStatus(status *portalclient.Status, width int) string {
	details := map[string]string{
		"Status":      status.Status,
		"IP":          status.IP,
		"Last result": fmt.Sprintf("%d", status.LastResult),
	}
	for _, p := range status.Params {
		details[p.Label] = p.Value
	}

	var r *Result
	if status.Connected() {
		r = NewSuccessResult("Device connected", details)
	} else {
		r = NewWarningResult("Device not connected", details)
	}
	return r.SetWidth(width).Render()
}

// RenderParams renders custom parameters as id, label, type and value.
func RenderParams(params []portalclient.Param) string {
	if len(params) == 0 {
		return TableMutedStyle.Render("  No custom parameters")
	}

	idWidth, labelWidth := 2, 5
	for _, p := range params {
		idWidth = max(idWidth, lipgloss.Width(p.ID))
		labelWidth = max(labelWidth, lipgloss.Width(p.Label))
	}
	idCol := lipgloss.NewStyle().Width(idWidth + 2)
	labelCol := lipgloss.NewStyle().Width(labelWidth + 2)
	typeCol := lipgloss.NewStyle().Width(10)

	lines := []string{
		TableHeaderStyle.Render("  " + idCol.Render("ID") + labelCol.Render("LABEL") + typeCol.Render("TYPE") + "VALUE"),
	}
	for _, p := range params {
		value := TableCellStyle.Render(p.Value)
		if p.Value == "" {
			value = TableMutedStyle.Render("(empty)")
		}
		lines = append(lines, "  "+
			TableCellStyle.Inherit(idCol).Render(p.ID)+
			TableMutedStyle.Inherit(labelCol).Render(p.Label)+
			TableMutedStyle.Inherit(typeCol).Render(p.Type)+
			value)
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, width int) string {
	if width <= 1 {
		return "…"
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r)) > width-1 {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}
