package main

import (
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/wifiportal/internal/portalclient"
	"github.com/muurk/wifiportal/internal/ui"
	"github.com/muurk/wifiportal/internal/wifimanager"
)

// loopInterval paces Manager.Loop while the device stays up.
const loopInterval = 100 * time.Millisecond

func init() {
	for _, cmd := range []*cobra.Command{runCmd, portalCmd, scanCmd, statusCmd} {
		addDeviceFlags(cmd)
		rootCmd.AddCommand(cmd)
	}
	runCmd.Flags().Bool("once", false, "Exit after the first connection attempt instead of supervising the link")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect, falling back to the configuration portal",
	Long: `Join the network the radio remembers, then each saved network, and open
the configuration portal when none of them work. Once connected the link
is supervised and rejoined after drops until the process is interrupted.`,
	Example: `  # Simulated radio, portal on port 8080 without root
  wifiportal run --http-port 8080 --dns-addr :5353

  # NetworkManager on wlan1 with a protected portal
  wifiportal run --driver nmcli --interface wlan1 --ap-password setup-1234

  # Same, configured from the environment
  WIFIPORTAL_DRIVER=nmcli WIFIPORTAL_AP_NAME=sensor-setup wifiportal run`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	d, err := openDevice(cmd)
	if err != nil {
		return err
	}
	defer d.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.manager.Begin(); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	fmt.Println(ui.NewHeader("Provisioning", "wifiportal run", d.headerParams()).Render())

	release := d.interruptOn(ctx)
	connected := d.manager.AutoConnect(d.settings.APName, d.settings.APPassword)
	release()

	fmt.Println(d.connectionResult(connected))
	if ctx.Err() != nil {
		return nil
	}
	if once, _ := cmd.Flags().GetBool("once"); once {
		if !connected {
			return fmt.Errorf("not connected")
		}
		return nil
	}

	ticker := time.NewTicker(loopInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.manager.Loop()
		}
	}
}

var portalCmd = &cobra.Command{
	Use:   "portal",
	Short: "Open the configuration portal now",
	Long: `Open the configuration portal without trying saved networks first, and
wait until a client connects the device or the portal times out.`,
	Example: `  # Portal that never times out
  wifiportal portal --portal-timeout 0

  # Portal advertised as setup.local over mDNS
  wifiportal portal --hostname setup`,
	RunE: runPortal,
}

func runPortal(cmd *cobra.Command, args []string) error {
	d, err := openDevice(cmd)
	if err != nil {
		return err
	}
	defer d.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println(ui.NewHeader("Configuration portal", "wifiportal portal", d.headerParams()).Render())

	release := d.interruptOn(ctx)
	connected := d.manager.StartConfigPortal(d.settings.APName, d.settings.APPassword)
	release()

	fmt.Println(d.connectionResult(connected))
	if !connected && ctx.Err() == nil {
		return fmt.Errorf("portal closed without a connection")
	}
	return nil
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List networks visible to the local radio",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDevice(cmd)
		if err != nil {
			return err
		}
		defer d.close()

		fmt.Println(ui.RenderNetworks(toNetworks(d.manager.ScanNetworks(true)), ui.GetTerminalWidth()))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the local radio's connection status",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDevice(cmd)
		if err != nil {
			return err
		}
		defer d.close()

		fmt.Println(ui.RenderStatus(d.localStatus(), ui.GetTerminalWidth()))
		return nil
	},
}

func (d *device) headerParams() map[string]string {
	p := map[string]string{
		"Driver":  d.settings.Driver,
		"AP":      d.settings.APName,
		"HTTP":    strconv.Itoa(d.settings.HTTPPort),
		"Timeout": d.settings.PortalTimeout.String(),
		"Store":   d.store.Path(),
	}
	if d.settings.Hostname != "" {
		p["mDNS"] = d.settings.Hostname + ".local"
	}
	return p
}

func (d *device) connectionResult(connected bool) string {
	if connected {
		return ui.RenderSuccess("Connected", map[string]string{
			"SSID": d.radio.StoredSSID(),
			"IP":   d.manager.LocalIP(),
		})
	}
	return ui.RenderFailure("Not connected", errors.New(d.manager.ConnectionStatus()), []string{
		"Check that the network is in range",
		"Run 'wifiportal portal' to enter credentials again",
		"Increase --portal-timeout if the portal closed too soon",
	})
}

// localStatus is the status document the portal would serve.
func (d *device) localStatus() *portalclient.Status {
	s := &portalclient.Status{
		Status:     d.manager.ConnectionStatus(),
		IP:         d.manager.LocalIP(),
		LastResult: d.manager.LastConnectResult(),
	}
	for _, p := range d.manager.Parameters() {
		s.Params = append(s.Params, portalclient.ParamSummary{ID: p.ID, Label: p.Label, Value: p.Value})
	}
	return s
}

func toNetworks(results []wifimanager.ScanResult) []portalclient.Network {
	nets := make([]portalclient.Network, 0, len(results))
	for _, r := range results {
		nets = append(nets, portalclient.Network{SSID: r.SSID, RSSI: r.RSSI, EncryptionType: r.EncryptionType})
	}
	return nets
}
