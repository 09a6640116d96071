package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/muurk/wifiportal/internal/discovery"
	"github.com/muurk/wifiportal/internal/portalclient"
	"github.com/muurk/wifiportal/internal/ui"
	"github.com/muurk/wifiportal/internal/wizard/tui"
)

// Client command flags
var (
	portalURL     string
	portalHost    string
	portalPort    int
	discoverFirst bool
	clientTimeout time.Duration
	authUser      string
	authPassword  string
	outputFormat  string
	networkPass   string
	scanTimeout   time.Duration
)

func init() {
	pf := clientCmd.PersistentFlags()
	pf.StringVar(&portalURL, "portal", "", "Portal base URL (overrides --host and --port)")
	pf.StringVar(&portalHost, "host", portalclient.DefaultPortalIP, "Portal address")
	pf.IntVar(&portalPort, "port", 80, "Portal HTTP port")
	pf.BoolVar(&discoverFirst, "discover", false, "Find the portal over mDNS instead of using --host")
	pf.DurationVar(&clientTimeout, "timeout", portalclient.DefaultTimeout, "Request timeout")
	pf.StringVar(&authUser, "user", "", "HTTP Basic user")
	pf.StringVar(&authPassword, "auth-password", "", "HTTP Basic password")
	pf.StringVar(&outputFormat, "format", "detailed", "Output format (detailed, json)")

	clientConnectCmd.Flags().StringVarP(&networkPass, "password", "p", "", "Network password (prompted when omitted on a terminal)")

	clientCmd.AddCommand(clientWizardCmd, clientScanCmd, clientStatusCmd, clientConnectCmd, clientParamsCmd, clientSetCmd, clientResetCmd, clientInfoCmd)
	rootCmd.AddCommand(clientCmd)

	discoverCmd.Flags().DurationVar(&scanTimeout, "timeout", discovery.DefaultScanTimeout, "How long to listen for portals")
	rootCmd.AddCommand(discoverCmd)
}

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Talk to a running configuration portal",
	Long: `Drive a configuration portal over its JSON API, from a machine joined to
the portal's access point or on the same network.`,
	Example: `  # Interactive network picker
  wifiportal client wizard

  # Networks seen by the device at the default portal address
  wifiportal client scan

  # Join a network, prompting for the password
  wifiportal client connect HomeWiFi

  # Portal found over mDNS, JSON output
  wifiportal client status --discover --format json

  # Set custom parameters
  wifiportal client set mqtt_host=broker.lan mqtt_port=1883`,
}

var clientWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Pick a network interactively",
	Long: `Ask the portal which networks the device sees, choose one from a list
and enter its password. Requires a terminal.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(int(os.Stdin.Fd())) || !ui.IsTerminal() {
			return errors.New("the wizard needs an interactive terminal; use 'wifiportal client connect' instead")
		}
		c, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		result, err := tui.Run(c, clientTimeout)
		if err != nil {
			return err
		}
		switch {
		case result.Cancelled:
			return nil
		case result.Connected:
			fmt.Println(ui.RenderSuccess("Connected", map[string]string{"SSID": result.SSID}))
			return nil
		default:
			return fmt.Errorf("connection to %s failed", result.SSID)
		}
	},
}

var clientScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List networks visible to the device",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, c *portalclient.Client, args []string) error {
		nets, err := c.Scan(ctx)
		if err != nil {
			return reportError("Scan failed", err)
		}
		if outputFormat == "json" {
			return printJSON(nets)
		}
		fmt.Println(ui.RenderNetworks(nets, ui.GetTerminalWidth()))
		return nil
	}),
}

var clientStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the device's connection status",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, c *portalclient.Client, args []string) error {
		status, err := c.Status(ctx)
		if err != nil {
			return reportError("Status failed", err)
		}
		if outputFormat == "json" {
			return printJSON(status)
		}
		fmt.Println(ui.RenderStatus(status, ui.GetTerminalWidth()))
		return nil
	}),
}

var clientConnectCmd = &cobra.Command{
	Use:   "connect SSID",
	Short: "Join the device to a network",
	Args:  cobra.ExactArgs(1),
	RunE: withClient(func(ctx context.Context, c *portalclient.Client, args []string) error {
		ssid := args[0]
		password := networkPass
		if password == "" && term.IsTerminal(int(os.Stdin.Fd())) {
			var err error
			if password, err = promptPassword(ssid); err != nil {
				return err
			}
		}

		connected, err := c.Connect(ctx, ssid, password)
		if err != nil {
			return reportError("Connect failed", err)
		}
		if !connected {
			fmt.Println(ui.RenderFailure("Connect failed", errors.New("the device could not join "+ssid), []string{
				"Check the password",
				"Check that the network is in range of the device",
			}))
			return fmt.Errorf("connection to %s failed", ssid)
		}
		fmt.Println(ui.RenderSuccess("Connected", map[string]string{"SSID": ssid}))
		return nil
	}),
}

var clientParamsCmd = &cobra.Command{
	Use:   "params",
	Short: "List custom parameters",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, c *portalclient.Client, args []string) error {
		params, err := c.Params(ctx)
		if err != nil {
			return reportError("Params failed", err)
		}
		if outputFormat == "json" {
			return printJSON(params)
		}
		fmt.Println(ui.RenderParams(params))
		return nil
	}),
}

var clientSetCmd = &cobra.Command{
	Use:   "set ID=VALUE...",
	Short: "Update custom parameters",
	Args:  cobra.MinimumNArgs(1),
	RunE: withClient(func(ctx context.Context, c *portalclient.Client, args []string) error {
		values, err := parseAssignments(args)
		if err != nil {
			return err
		}
		if err := c.UpdateParams(ctx, values); err != nil {
			return reportError("Update failed", err)
		}
		fmt.Println(ui.RenderSuccess("Parameters updated", values))
		return nil
	}),
}

var clientResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Erase the device's stored network",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, c *portalclient.Client, args []string) error {
		if err := c.Reset(ctx); err != nil {
			return reportError("Reset failed", err)
		}
		fmt.Println(ui.RenderSuccess("Settings reset", nil))
		return nil
	}),
}

var clientInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show device health",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, c *portalclient.Client, args []string) error {
		info, err := c.DeviceInfo(ctx)
		if err != nil {
			return reportError("Info failed", err)
		}
		if outputFormat == "json" {
			return printJSON(info)
		}
		fmt.Println(ui.RenderSuccess("Device info", map[string]string{
			"IP":        info.IP,
			"RSSI":      fmt.Sprintf("%d dBm", info.RSSI),
			"Uptime":    (time.Duration(info.UptimeMs) * time.Millisecond).String(),
			"Free heap": fmt.Sprintf("%d bytes", info.FreeHeap),
		}))
		return nil
	}),
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find configuration portals advertised over mDNS",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Scanning for portals (timeout: %s)...\n\n", scanTimeout)

		portals, err := discovery.ScanForPortals(cmd.Context(), scanTimeout)
		if err != nil {
			return fmt.Errorf("discovery failed: %w", err)
		}
		if len(portals) == 0 {
			fmt.Println("No portals found.")
			fmt.Println("\nTroubleshooting:")
			fmt.Println("  - Ensure the device was started with --hostname")
			fmt.Println("  - Join the device's access point, or the network it serves on")
			fmt.Println("  - Try increasing --timeout")
			return nil
		}

		fmt.Printf("Found %d portal(s):\n\n", len(portals))
		for i, p := range portals {
			fmt.Printf("%d. %s\n", i+1, p.Instance)
			fmt.Printf("   URL:     %s\n", p.BaseURL())
			if v := p.GetMetadata("version"); v != "" {
				fmt.Printf("   Version: %s\n", v)
			}
			fmt.Println()
		}
		fmt.Println("Use 'wifiportal client status --portal <url>' to query a portal")
		return nil
	},
}

// withClient builds the portal client from the shared flags.
func withClient(fn func(ctx context.Context, c *portalclient.Client, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), clientTimeout)
		defer cancel()
		return fn(ctx, c, args)
	}
}

func newClient(ctx context.Context) (*portalclient.Client, error) {
	var c *portalclient.Client
	switch {
	case portalURL != "":
		c = portalclient.NewClientWithURL(portalURL)
	case discoverFirst:
		portals, err := discovery.ScanForPortals(ctx, discovery.DefaultScanTimeout)
		if err != nil {
			return nil, fmt.Errorf("discovery failed: %w", err)
		}
		if len(portals) == 0 {
			return nil, errors.New("no portal found over mDNS")
		}
		c = portalclient.NewClientWithURL(portals[0].BaseURL())
	default:
		c = portalclient.NewClient(portalHost, portalPort)
	}
	c.SetTimeout(clientTimeout)
	if authUser != "" {
		c.SetAuth(authUser, authPassword)
	}
	return c, nil
}

// reportError prints a failure box and returns a short error for the exit
// status.
func reportError(title string, err error) error {
	tips := troubleshootingTips(portalclient.GetTroubleshootingHint(err))
	if outputFormat != "json" {
		fmt.Println(ui.RenderFailure(title, err, tips))
	}
	return errors.New(portalclient.GetShortErrorMessage(err))
}

// troubleshootingTips keeps the bullet lines of a hint, or the whole hint
// when it has none.
func troubleshootingTips(hint string) []string {
	var tips []string
	for _, line := range strings.Split(hint, "\n") {
		if tip, ok := strings.CutPrefix(strings.TrimSpace(line), "•"); ok {
			tips = append(tips, strings.TrimSpace(tip))
		}
	}
	if len(tips) == 0 && hint != "" {
		tips = []string{hint}
	}
	return tips
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseAssignments turns id=value arguments into form values.
func parseAssignments(args []string) (map[string]string, error) {
	values := make(map[string]string, len(args))
	for _, a := range args {
		id, value, ok := strings.Cut(a, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid assignment %q (expected id=value)", a)
		}
		values[id] = value
	}
	return values, nil
}

func promptPassword(ssid string) (string, error) {
	fmt.Fprintf(os.Stderr, "Password for %s (empty for an open network): ", ssid)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}
