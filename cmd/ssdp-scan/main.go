// Ssdp-scan discovers UPnP devices and services on the local network.
//
// It sends one SSDP M-SEARCH request to the multicast group and prints the
// devices that answer within the search window. Results can optionally be
// enriched with each device's description document.
//
// Usage:
//
//	ssdp-scan [command] [flags]
//
// See 'ssdp-scan --help' for available commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/ssdpscan/internal/logging"
	"github.com/muurk/ssdpscan/internal/version"
)

// errReported marks an error whose failure box was already printed
var errReported = errors.New("error already reported")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()

	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// Global flags
var (
	configPath   string
	logLevel     string
	outputFormat string
	netInterface string
)

var rootCmd = &cobra.Command{
	Use:   "ssdp-scan",
	Short: "SSDP device discovery",
	Long: `Discover UPnP devices and services with SSDP.

A single M-SEARCH request is multicast to 239.255.255.250:1900 and every
response that arrives before the search window closes is collected.
Search targets can be given literally (e.g. upnp:rootdevice) or as an alias
from the config file (e.g. igd, renderer).`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Initialize(logLevel); err != nil {
			return err
		}
		logging.Debug("Starting " + cmd.CommandPath())
		return nil
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: user config directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides "+logging.LogLevelEnvVar)
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "", "Output format (detailed, compact, json)")
	rootCmd.PersistentFlags().StringVar(&netInterface, "interface", "", "Network interface for multicast requests")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ssdp-scan %s\n", version.Full())
	},
}
