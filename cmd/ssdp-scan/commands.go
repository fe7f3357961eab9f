package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/ssdpscan/internal/config"
	"github.com/muurk/ssdpscan/internal/describe"
	"github.com/muurk/ssdpscan/internal/logging"
	"github.com/muurk/ssdpscan/internal/ssdp"
	"github.com/muurk/ssdpscan/internal/ui"
)

// Search command flags
var (
	timeoutMillis int
	localPort     int
	matchPolicy   string
	strictParse   bool
	describeFlag  bool
)

// discoveryMode selects DiscoverAll or DiscoverOne
type discoveryMode int

const (
	modeAll discoveryMode = iota
	modeOne
)

func init() {
	for _, cmd := range []*cobra.Command{allCmd, oneCmd} {
		cmd.Flags().IntVar(&timeoutMillis, "timeout", 0, "Search window in milliseconds (default from config, 3000)")
		cmd.Flags().IntVar(&localPort, "port", 0, "Local UDP port, 0 lets the OS choose (default from config, 1901 for all, 1902 for one)")
		cmd.Flags().StringVar(&matchPolicy, "match", "", "Response match policy (substring, header)")
		cmd.Flags().BoolVar(&strictParse, "strict-parse", false, "Fail on the first response that cannot be parsed")
		cmd.Flags().BoolVar(&describeFlag, "describe", false, "Fetch each device's description document")
	}
	queryCmd.Flags().IntVar(&timeoutMillis, "timeout", 0, "Search window in milliseconds, used for MX (default from config)")

	rootCmd.AddCommand(allCmd)
	rootCmd.AddCommand(oneCmd)
	rootCmd.AddCommand(queryCmd)
}

var allCmd = &cobra.Command{
	Use:   "all [search-target]",
	Short: "Discover all devices matching a search target",
	Long: `Send one M-SEARCH request and list every device that answers before the
search window closes, in arrival order.

Without a search target (and no default in the config file) every response
is listed.`,
	Example: `  # Everything that answers within 3 seconds
  ssdp-scan all

  # Root devices only, 5 second window
  ssdp-scan all upnp:rootdevice --timeout 5000

  # Internet gateways via alias, with device descriptions
  ssdp-scan all igd --describe

  # JSON output for scripting
  ssdp-scan all renderer --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDiscovery(cmd, args, modeAll)
	},
}

var oneCmd = &cobra.Command{
	Use:   "one [search-target]",
	Short: "Discover the first device matching a search target",
	Long: `Send one M-SEARCH request and print the first device that answers.
The search ends as soon as a matching response arrives.`,
	Example: `  # First internet gateway
  ssdp-scan one urn:schemas-upnp-org:device:InternetGatewayDevice:1

  # Use an ephemeral port so several searches can run at once
  ssdp-scan one root --port 0`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDiscovery(cmd, args, modeOne)
	},
}

var queryCmd = &cobra.Command{
	Use:   "query [search-target]",
	Short: "Print the M-SEARCH request without sending it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		target := cfg.ResolveSearchTarget(firstArg(args))
		_, err = cmd.OutOrStdout().Write(ssdp.BuildQuery(target, cfg.Timeout()))
		return err
	},
}

// loadConfig loads the config file and applies the command line overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Output.Format = outputFormat
	}
	if flags.Changed("interface") {
		cfg.Discovery.Interface = netInterface
	}
	if flags.Changed("timeout") {
		cfg.Discovery.TimeoutMillis = timeoutMillis
	}
	if flags.Changed("match") {
		cfg.Discovery.MatchPolicy = matchPolicy
	}
	if strictParse {
		cfg.Discovery.ParseErrors = ssdp.AbortOnInvalid.String()
	}
	if describeFlag {
		cfg.Output.Describe = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runDiscovery(cmd *cobra.Command, args []string, mode discoveryMode) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("port") {
		if mode == modeAll {
			cfg.Discovery.AllPort = localPort
		} else {
			cfg.Discovery.OnePort = localPort
		}
	}

	client, err := cfg.NewClient()
	if err != nil {
		return err
	}

	target := cfg.ResolveSearchTarget(firstArg(args))
	timeout := cfg.Timeout()
	format := cfg.Output.Format
	out := cmd.OutOrStdout()

	port := cfg.Discovery.AllPort
	if mode == modeOne {
		port = cfg.Discovery.OnePort
	}

	if format == config.FormatDetailed {
		fmt.Fprintln(out, ui.NewHeader("SSDP Discovery", strings.TrimSpace(cmd.CommandPath()+" "+strings.Join(args, " ")),
			ui.Detail{Key: "Target", Value: displayTarget(target)},
			ui.Detail{Key: "Timeout", Value: timeout.String()},
			ui.Detail{Key: "Local port", Value: portLabel(port)},
			ui.Detail{Key: "Match", Value: cfg.Discovery.MatchPolicy},
		).Render())
	}

	logging.Info("Starting discovery",
		zap.String("target", target),
		zap.Duration("timeout", timeout),
		zap.Int("local_port", port),
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var devices []*ssdp.Device
	start := time.Now()
	animate := format != config.FormatJSON && ui.IsTerminal(os.Stderr)
	err = ui.RunWithSpinner(ctx, cmd.ErrOrStderr(), animate, "Searching for "+displayTarget(target),
		func(ctx context.Context) error {
			if mode == modeAll {
				found, err := client.DiscoverAllWithContext(ctx, timeout, target)
				devices = found
				return err
			}
			device, err := client.DiscoverOneWithContext(ctx, timeout, target)
			if device != nil {
				devices = []*ssdp.Device{device}
			}
			return err
		})
	elapsed := time.Since(start)

	if err != nil {
		logging.Error("Discovery failed", zap.Error(err))
		if format == config.FormatJSON {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), ui.RenderFailure("Discovery failed", err, hintLines(err)))
		return errReported
	}

	views := ui.ViewsFromDevices(devices)
	if cfg.Output.Describe && len(devices) > 0 {
		views = ui.ViewsFromResults(describe.NewDescriber().DescribeAll(ctx, devices))
	}

	return printDevices(cmd, views, mode, format, target, elapsed)
}

func printDevices(cmd *cobra.Command, views []ui.DeviceView, mode discoveryMode, format, target string, elapsed time.Duration) error {
	out := cmd.OutOrStdout()

	switch format {
	case config.FormatJSON:
		data, err := ui.MarshalDevicesJSON(views)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))

	case config.FormatCompact:
		if mode == modeOne && len(views) == 0 {
			fmt.Fprintln(out, "No device found.")
			return nil
		}
		fmt.Fprintln(out, ui.RenderDevices(views, true, elapsed, ui.GetTerminalWidth()))

	default:
		if mode == modeOne && len(views) == 0 {
			fmt.Fprintln(out, ui.RenderWarning("No device found.",
				ui.Detail{Key: "Target", Value: displayTarget(target)},
				ui.Detail{Key: "Waited", Value: elapsed.Round(time.Millisecond).String()},
			))
			return nil
		}
		fmt.Fprintln(out, ui.RenderDevices(views, false, elapsed, ui.GetTerminalWidth()))
	}
	return nil
}

// hintLines turns a troubleshooting hint into bullet items for a failure box
func hintLines(err error) []string {
	var lines []string
	for _, line := range strings.Split(ssdp.TroubleshootingHint(err), "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "•"))
		if line == "" || line == "Troubleshooting:" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func displayTarget(target string) string {
	if target == "" {
		return "all devices"
	}
	return target
}

func portLabel(port int) string {
	if port == 0 {
		return "any"
	}
	return strconv.Itoa(port)
}
