// Wifiportal provisions a Linux device onto a WiFi network.
//
// It joins a known network when it can and otherwise opens a captive
// configuration portal: a soft access point, a DNS responder that points
// every name at the portal, and a JSON API where a phone or laptop picks
// a network and fills in custom parameters. The client commands talk to
// a running portal from another machine.
//
// Usage:
//
//	wifiportal [command] [flags]
//
// See 'wifiportal --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/wifiportal/internal/config"
	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/version"
)

func main() {
	err := rootCmd.ExecuteContext(context.Background())
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	settingsFile string
	storePath    string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "wifiportal",
	Short: "WiFi provisioning with a captive configuration portal",
	Long: `Join a known WiFi network, or open a captive configuration portal so a
user can choose one.

Settings are read from flags, then WIFIPORTAL_* environment variables, then
settings.yaml in the config directory (or --settings). Networks and
parameter values entered through the portal are saved to the store file.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&settingsFile, "settings", "", "Settings file (default: settings.yaml in the config directory)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "Store file for saved networks and parameters (default: config.yaml in the config directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides "+logging.LogLevelEnvVar)

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wifiportal %s (commit: %s)\n", version.Version, version.Commit)
	},
}

// openStore loads the store named by --store or the default one.
func openStore() (*config.Store, error) {
	if storePath != "" {
		return config.Load(storePath)
	}
	return config.LoadDefault()
}

// openDevice loads the store and settings for cmd and builds the device.
func openDevice(cmd *cobra.Command) (*device, error) {
	store, err := openStore()
	if err != nil {
		return nil, err
	}
	s, err := loadSettings(newViper(), cmd, settingsFile, store.Preferences())
	if err != nil {
		return nil, err
	}
	return newDevice(s, store)
}
