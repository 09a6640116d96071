// Package ui renders terminal output for the wifiportal CLI.
//
// Output is printed once and the command exits; nothing here reads input.
// The components are:
//
//   - Header: command banner with the operation name and its parameters
//   - Result: success, failure and warning boxes, with troubleshooting tips
//   - Tables: scan results, portal status and custom parameters
//
// Example:
//
//	fmt.Println(ui.NewHeader("Scan", "wifiportal client scan", map[string]string{
//	    "Portal": client.BaseURL,
//	}).Render())
//	fmt.Println(ui.RenderNetworks(networks, ui.GetTerminalWidth()))
//
// # Logging Integration
//
// zap logging is silent unless WIFIPORTAL_LOG_LEVEL is set, so the styled
// output stays readable. Set it to "debug", "info", "warn" or "error" to
// interleave log lines.
package ui
