package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/muurk/ssdpscan/internal/ssdp"
)

// CurrentVersion is the config file format version
const CurrentVersion = 1

// Output formats
const (
	FormatDetailed = "detailed"
	FormatCompact  = "compact"
	FormatJSON     = "json"
)

// Config represents the entire user configuration file.
// It holds search defaults and preferences only; discovered devices are never stored.
type Config struct {
	Version   int               `yaml:"version"`
	Discovery *DiscoveryPrefs   `yaml:"discovery,omitempty"`
	Aliases   map[string]string `yaml:"aliases,omitempty"` // Short name -> search target
	Output    *OutputPrefs      `yaml:"output,omitempty"`
}

// DiscoveryPrefs holds the defaults for a search window
type DiscoveryPrefs struct {
	TimeoutMillis int    `yaml:"timeout_ms"`              // Search window per receive, in milliseconds
	SearchTarget  string `yaml:"search_target,omitempty"` // Default target (alias or literal), empty for all
	AllPort       int    `yaml:"all_port"`                // Local port for discover-all (0: OS chooses)
	OnePort       int    `yaml:"one_port"`                // Local port for discover-one (0: OS chooses)
	GroupAddress  string `yaml:"group_address"`           // Destination host:port of M-SEARCH
	Interface     string `yaml:"interface,omitempty"`     // Outgoing multicast interface
	MulticastTTL  int    `yaml:"multicast_ttl"`           // IP TTL for multicast requests
	MatchPolicy   string `yaml:"match_policy"`            // "substring" or "header"
	ParseErrors   string `yaml:"parse_errors"`            // "skip" or "abort"
}

// OutputPrefs controls how results are printed
type OutputPrefs struct {
	Format   string `yaml:"format"`   // "detailed", "compact" or "json"
	Describe bool   `yaml:"describe"` // Fetch device descriptions from LOCATION
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Version:   CurrentVersion,
		Discovery: defaultDiscoveryPrefs(),
		Aliases:   defaultAliases(),
		Output:    defaultOutputPrefs(),
	}
}

func defaultDiscoveryPrefs() *DiscoveryPrefs {
	return &DiscoveryPrefs{
		TimeoutMillis: int(ssdp.DefaultTimeout / time.Millisecond),
		AllPort:       ssdp.DefaultAllPort,
		OnePort:       ssdp.DefaultOnePort,
		GroupAddress:  ssdp.MulticastAddress,
		MulticastTTL:  ssdp.DefaultMulticastTTL,
		MatchPolicy:   ssdp.MatchPolicySubstring,
		ParseErrors:   ssdp.SkipInvalid.String(),
	}
}

func defaultOutputPrefs() *OutputPrefs {
	return &OutputPrefs{Format: FormatDetailed}
}

func defaultAliases() map[string]string {
	return map[string]string{
		"all":      ssdp.SearchAll,
		"root":     "upnp:rootdevice",
		"igd":      "urn:schemas-upnp-org:device:InternetGatewayDevice:1",
		"renderer": "urn:schemas-upnp-org:device:MediaRenderer:1",
		"server":   "urn:schemas-upnp-org:device:MediaServer:1",
	}
}

// fillDefaults replaces missing sections with defaults
func (c *Config) fillDefaults() {
	if c.Discovery == nil {
		c.Discovery = defaultDiscoveryPrefs()
	}
	if c.Output == nil {
		c.Output = defaultOutputPrefs()
	}
	if c.Aliases == nil {
		c.Aliases = make(map[string]string)
	}
}

// Timeout returns the configured search window as a duration
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Discovery.TimeoutMillis) * time.Millisecond
}

// Validate checks every preference and returns the first problem found
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion)
	}
	c.fillDefaults()

	d := c.Discovery
	if d.TimeoutMillis < 0 {
		return fmt.Errorf("discovery.timeout_ms must not be negative, got %d", d.TimeoutMillis)
	}
	if err := validatePort("discovery.all_port", d.AllPort); err != nil {
		return err
	}
	if err := validatePort("discovery.one_port", d.OnePort); err != nil {
		return err
	}
	if d.AllPort != 0 && d.AllPort == d.OnePort {
		return fmt.Errorf("discovery.all_port and discovery.one_port must differ, both are %d", d.AllPort)
	}
	if _, _, err := net.SplitHostPort(d.GroupAddress); err != nil {
		return fmt.Errorf("discovery.group_address %q: %w", d.GroupAddress, err)
	}
	if d.MulticastTTL < 0 || d.MulticastTTL > 255 {
		return fmt.Errorf("discovery.multicast_ttl must be between 0 and 255, got %d", d.MulticastTTL)
	}
	if _, err := ssdp.MatchPolicyByName(d.MatchPolicy); err != nil {
		return err
	}
	if _, err := ssdp.ParseErrorPolicyByName(d.ParseErrors); err != nil {
		return err
	}

	switch c.Output.Format {
	case "", FormatDetailed, FormatCompact, FormatJSON:
	default:
		return fmt.Errorf("output.format %q is not one of %s, %s, %s", c.Output.Format, FormatDetailed, FormatCompact, FormatJSON)
	}

	for name, target := range c.Aliases {
		if strings.TrimSpace(target) == "" {
			return fmt.Errorf("alias %q has an empty search target", name)
		}
	}
	return nil
}

func validatePort(field string, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%s must be between 0 and 65535, got %d", field, port)
	}
	return nil
}

// ResolveSearchTarget maps an alias to its search target. Anything that is
// not an alias is returned unchanged; an empty value falls back to the
// configured default target. ssdp:all resolves to the empty target: devices
// answer it with their own ST, so it must not be used as a response filter.
// The request still carries ST: ssdp:all.
func (c *Config) ResolveSearchTarget(aliasOrTarget string) string {
	if aliasOrTarget == "" && c.Discovery != nil {
		aliasOrTarget = c.Discovery.SearchTarget
	}
	target := aliasOrTarget
	if aliased, ok := c.Aliases[aliasOrTarget]; ok {
		target = aliased
	}
	if target == ssdp.SearchAll {
		return ""
	}
	return target
}

// NewClient builds a discovery client from the discovery preferences
func (c *Config) NewClient() (*ssdp.Client, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	d := c.Discovery

	match, err := ssdp.MatchPolicyByName(d.MatchPolicy)
	if err != nil {
		return nil, err
	}
	onParseError, err := ssdp.ParseErrorPolicyByName(d.ParseErrors)
	if err != nil {
		return nil, err
	}

	transport := ssdp.NewUDPTransport()
	transport.GroupAddress = d.GroupAddress
	transport.Interface = d.Interface
	transport.MulticastTTL = d.MulticastTTL

	client := ssdp.NewClient()
	client.Transport = transport
	client.AllPort = d.AllPort
	client.OnePort = d.OnePort
	client.Match = match
	client.OnParseError = onParseError
	return client, nil
}
